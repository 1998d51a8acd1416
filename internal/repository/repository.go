// Package repository defines the domain model and data access interface for
// conversation history.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Turn is one question/answer exchange appended to a session's ordered log.
type Turn struct {
	ID        uuid.UUID
	SessionID string
	UserID    string
	Question  string
	Answer    string
	Sources   []string // source document IDs backing the answer
	CreatedAt time.Time
}

// ConversationRepository defines operations for conversation persistence.
// The pipeline only appends; history is read back solely to include prior
// turns in the generation prompt.
type ConversationRepository interface {
	// Append adds a turn to the session log.
	Append(ctx context.Context, turn *Turn) error

	// History returns the most recent limit turns for a session in
	// chronological order. An unknown session yields an empty slice.
	History(ctx context.Context, sessionID string, limit int) ([]*Turn, error)
}
