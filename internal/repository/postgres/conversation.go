package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okrdocs/docqa/internal/repository"
)

// ConversationRepo implements repository.ConversationRepository
type ConversationRepo struct {
	db *DB
}

// NewConversationRepo creates a new conversation repository
func NewConversationRepo(db *DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Append adds a turn to the session log.
func (r *ConversationRepo) Append(ctx context.Context, turn *repository.Turn) error {
	sourcesJSON, err := json.Marshal(turn.Sources)
	if err != nil {
		return fmt.Errorf("failed to marshal sources: %w", err)
	}

	query := `
		INSERT INTO conversation_turns (id, session_id, user_id, question, answer, sources, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Pool.Exec(ctx, query,
		turn.ID, turn.SessionID, turn.UserID, turn.Question, turn.Answer,
		sourcesJSON, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// History returns the most recent limit turns in chronological order.
func (r *ConversationRepo) History(ctx context.Context, sessionID string, limit int) ([]*repository.Turn, error) {
	query := `
		SELECT id, session_id, user_id, question, answer, sources, created_at
		FROM (
			SELECT id, session_id, user_id, question, answer, sources, created_at
			FROM conversation_turns
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC
	`
	rows, err := r.db.Pool.Query(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var turns []*repository.Turn
	for rows.Next() {
		var turn repository.Turn
		var sourcesJSON []byte

		if err := rows.Scan(
			&turn.ID, &turn.SessionID, &turn.UserID, &turn.Question,
			&turn.Answer, &sourcesJSON, &turn.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}

		if len(sourcesJSON) > 0 {
			if err := json.Unmarshal(sourcesJSON, &turn.Sources); err != nil {
				return nil, fmt.Errorf("failed to unmarshal sources: %w", err)
			}
		}

		turns = append(turns, &turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	return turns, nil
}

// Ensure ConversationRepo implements ConversationRepository.
var _ repository.ConversationRepository = (*ConversationRepo)(nil)
