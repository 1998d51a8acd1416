// Package vectorstore provides interfaces and implementations for vector similarity search.
package vectorstore

import (
	"context"
)

// Passage represents a stored document passage with its embedding.
type Passage struct {
	ID       string
	UserID   string
	SourceID string // originating document, e.g. a PDF filename
	Content  string
	Vector   []float32
	Metadata map[string]string
}

// SearchResult is a single nearest-neighbor match. Results are returned in
// ascending distance order; the caller derives candidate ranks from position.
type SearchResult struct {
	ID       string
	SourceID string
	Content  string
	Distance float32
	Metadata map[string]string
}

// VectorStore defines the interface for vector storage operations
type VectorStore interface {
	// EnsureCollection creates the passage collection if it does not exist.
	EnsureCollection(ctx context.Context, dimension int) error

	// Upsert inserts or updates passages in the vector store
	Upsert(ctx context.Context, passages []Passage) error

	// Search returns the topK nearest passages for the given user, ordered
	// ascending by distance.
	Search(ctx context.Context, userID string, vector []float32, topK int) ([]SearchResult, error)

	// Delete removes all passages belonging to a source document.
	Delete(ctx context.Context, userID, sourceID string) error

	// Close releases the underlying connection.
	Close() error
}
