// Package reranker provides two-stage re-ranking for retrieval results.
//
// Re-ranking refines the vector store's distance ordering with a
// cross-encoder model that scores query-document pairs jointly. The model
// call is 2-4 orders of magnitude slower than the vector search it refines,
// so it runs under its own timeout and any failure degrades to a positional
// scorer derived from the retrieval order. A ranked result is always
// produced; the caller never sees a scorer error.
package reranker

import (
	"context"
	"errors"
)

// Candidate is a passage returned by vector similarity search, prior to
// reranking. Rank is the 0-based position in the store's ascending-distance
// ordering (rank 0 is the nearest neighbor).
type Candidate struct {
	Content  string
	SourceID string
	Rank     int
	Distance float32
}

// ScoreSource records the provenance of a relevance score. Batches are
// uniformly tagged: fallback scoring is all-or-nothing for a request.
type ScoreSource string

const (
	// SourceSemantic marks scores produced by the cross-encoder model.
	SourceSemantic ScoreSource = "semantic"

	// SourceFallback marks scores derived from the retrieval rank.
	SourceFallback ScoreSource = "fallback"
)

// ScoredCandidate is a Candidate with an attached relevance score in [0,1].
type ScoredCandidate struct {
	Candidate
	RelevanceScore float64
	Source         ScoreSource
}

// Scorer errors, classified so the orchestrator can account for them.
// All three trigger the same fallback path.
var (
	// ErrScorerUnavailable is returned when the scoring model is not loaded
	// or the service is known to be down.
	ErrScorerUnavailable = errors.New("scorer unavailable")

	// ErrScorerTimeout is returned when inference exceeds its deadline.
	ErrScorerTimeout = errors.New("scorer timeout")

	// ErrScorerInference is returned for any other scoring failure.
	ErrScorerInference = errors.New("scorer inference error")
)

// Scorer scores a set of documents against a query. The returned slice has
// the same length as documents, the i-th value being the relevance of the
// i-th document, each in [0,1]. Output order carries no ranking; callers
// sort.
type Scorer interface {
	Score(ctx context.Context, query string, documents []string) ([]float64, error)
}
