// Package selector bounds the final context set while guaranteeing source
// coverage: every distinct source document contributes at least one passage
// when capacity allows.
package selector

import (
	"github.com/okrdocs/docqa/internal/reranker"
)

// Select picks at most maxTotal candidates from ranked, which must already
// be in descending relevance order. Two greedy passes preserve that order:
// the first accepts up to minPerSource candidates per distinct source so
// every source gets represented, the second fills remaining capacity in
// score order regardless of source. If distinct sources outnumber maxTotal,
// the budget is spent on the highest-scoring sources and the rest get none;
// that is an accepted trade-off, not an error.
func Select(ranked []reranker.ScoredCandidate, maxTotal, minPerSource int) []reranker.ScoredCandidate {
	if len(ranked) == 0 || maxTotal <= 0 {
		return nil
	}
	if minPerSource <= 0 {
		minPerSource = 1
	}

	taken := make([]bool, len(ranked))
	perSource := make(map[string]int)
	count := 0

	// Pass 1: source coverage.
	for i, c := range ranked {
		if count >= maxTotal {
			break
		}
		if perSource[c.SourceID] >= minPerSource {
			continue
		}
		taken[i] = true
		perSource[c.SourceID]++
		count++
	}

	// Pass 2: fill remaining capacity in score order.
	for i := range ranked {
		if count >= maxTotal {
			break
		}
		if taken[i] {
			continue
		}
		taken[i] = true
		count++
	}

	selection := make([]reranker.ScoredCandidate, 0, count)
	for i, c := range ranked {
		if taken[i] {
			selection = append(selection, c)
		}
	}
	return selection
}
