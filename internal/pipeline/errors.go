package pipeline

import "errors"

// Client input errors: surfaced to the caller immediately, never retried.
var (
	// ErrEmptyQuery is returned when the query text is empty.
	ErrEmptyQuery = errors.New("query is required")

	// ErrMissingSession is returned when no session ID is supplied.
	ErrMissingSession = errors.New("session_id is required")
)

// Fatal upstream errors: a dependency outage aborts the pipeline. Scorer
// errors never appear here; the rerank orchestrator absorbs them, and
// persistence failures degrade to a response warning.
var (
	// ErrEmbeddingUnavailable is returned when the embedding provider fails.
	// There is no fallback embedding path.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")

	// ErrRetrievalUnavailable is returned when the vector store fails.
	ErrRetrievalUnavailable = errors.New("vector store unavailable")

	// ErrGenerationUnavailable is returned when the generation model fails.
	ErrGenerationUnavailable = errors.New("generation model unavailable")
)

// IsClientError reports whether err is a client input error.
func IsClientError(err error) bool {
	return errors.Is(err, ErrEmptyQuery) || errors.Is(err, ErrMissingSession)
}

// IsUpstreamError reports whether err is a fatal upstream-dependency outage.
func IsUpstreamError(err error) bool {
	return errors.Is(err, ErrEmbeddingUnavailable) ||
		errors.Is(err, ErrRetrievalUnavailable) ||
		errors.Is(err, ErrGenerationUnavailable)
}
