package reranker

import (
	"context"
	"log/slog"
	"sort"
	"time"
)

// Orchestrator runs the semantic scorer under a bounded timeout and
// substitutes the positional fallback on any failure, so reranking always
// yields a fully ordered result. The semantic scorer gets exactly one
// attempt per request: a transient error is traded away for a bounded
// worst-case latency.
type Orchestrator struct {
	semantic Scorer
	fallback *PositionalScorer
	timeout  time.Duration
	logger   *slog.Logger
}

// NewOrchestrator creates a rerank orchestrator. timeout bounds the
// semantic scorer call and must be configured independently of the other
// pipeline timeouts; it is the sole trigger of the fallback path.
func NewOrchestrator(semantic Scorer, fallback *PositionalScorer, timeout time.Duration, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		semantic: semantic,
		fallback: fallback,
		timeout:  timeout,
		logger:   logger,
	}
}

// Rerank scores the candidates against the query and returns them sorted
// descending by relevance, together with the uniform score source of the
// batch. It never fails: scorer errors are absorbed here and degrade the
// batch to positional scores over the same ascending-distance candidate
// order. Ties are broken by the original candidate rank so the result is
// deterministic.
func (o *Orchestrator) Rerank(ctx context.Context, query string, candidates []Candidate) ([]ScoredCandidate, ScoreSource) {
	if len(candidates) == 0 {
		return nil, SourceFallback
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Content
	}

	scoreCtx, cancel := context.WithTimeout(ctx, o.timeout)
	scores, err := o.semantic.Score(scoreCtx, query, documents)
	cancel()

	source := SourceSemantic
	if err != nil {
		o.logger.Warn("semantic scorer failed, using positional fallback",
			"error", err,
			"candidates", len(candidates),
		)
		// The fallback scorer cannot fail.
		scores, _ = o.fallback.Score(ctx, query, documents)
		source = SourceFallback
	}

	scored := make([]ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = ScoredCandidate{
			Candidate:      c,
			RelevanceScore: scores[i],
			Source:         source,
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].RelevanceScore != scored[j].RelevanceScore {
			return scored[i].RelevanceScore > scored[j].RelevanceScore
		}
		return scored[i].Rank < scored[j].Rank
	})

	return scored, source
}
