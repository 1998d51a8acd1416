package reranker

import "context"

// DefaultDecay is the per-rank score decay of the positional scorer.
// Override via config.
const DefaultDecay = 0.05

// PositionalScorer derives relevance from a document's position in the
// candidate list, reusing the vector store's distance ordering as a
// relevance proxy. It is pure, never blocks, and never fails: the document
// at rank i scores max(0, 1 - i*decay).
type PositionalScorer struct {
	decay float64
}

// NewPositionalScorer creates a positional scorer with the given decay.
// A non-positive decay falls back to DefaultDecay.
func NewPositionalScorer(decay float64) *PositionalScorer {
	if decay <= 0 {
		decay = DefaultDecay
	}
	return &PositionalScorer{decay: decay}
}

// Score assigns linearly decaying scores by input position. The error is
// always nil; the signature exists to satisfy Scorer.
func (s *PositionalScorer) Score(_ context.Context, _ string, documents []string) ([]float64, error) {
	scores := make([]float64, len(documents))
	for i := range documents {
		score := 1 - float64(i)*s.decay
		if score < 0 {
			score = 0
		}
		scores[i] = score
	}
	return scores, nil
}

// Ensure PositionalScorer implements Scorer interface.
var _ Scorer = (*PositionalScorer)(nil)
