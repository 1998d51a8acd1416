// Package pipeline sequences a query through the retrieve-rerank-generate
// flow: embed query, retrieve candidates, rerank, select a diversified
// context set, build the prompt, generate, persist the turn, respond. Each
// request is an independent sequential unit of work; the only shared
// resources are read-only configuration and the long-lived clients.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/okrdocs/docqa/internal/embedder"
	"github.com/okrdocs/docqa/internal/llm"
	"github.com/okrdocs/docqa/internal/repository"
	"github.com/okrdocs/docqa/internal/reranker"
	"github.com/okrdocs/docqa/internal/selector"
	"github.com/okrdocs/docqa/internal/vectorstore"
)

// NoResultsAnswer is returned when the vector store has nothing for the
// query; the pipeline short-circuits without calling the generator.
const NoResultsAnswer = "No information about this was found in your documents."

// persistWarning is surfaced when the turn could not be saved. The answer
// is still returned.
const persistWarning = "answer returned, conversation history not saved"

// Request is one caller query. Immutable once received.
type Request struct {
	Text      string
	SessionID string
	UserID    string
}

// Latency is the per-stage latency breakdown in milliseconds.
type Latency struct {
	EmbedMS    int64 `json:"embed_ms"`
	RetrieveMS int64 `json:"retrieve_ms"`
	RerankMS   int64 `json:"rerank_ms"`
	GenerateMS int64 `json:"generate_ms"`
	PersistMS  int64 `json:"persist_ms"`
	TotalMS    int64 `json:"total_ms"`
}

// Response is the pipeline result for one request.
type Response struct {
	Answer      string
	Sources     []string // distinct source document IDs, selection order
	ScoreSource reranker.ScoreSource
	Latency     Latency
	Warning     string // set when persistence failed
}

// Options holds the resolved pipeline configuration. All values are
// read-only after construction and shared across concurrent requests.
type Options struct {
	TopK            int
	MaxSelected     int
	MinPerSource    int
	MaxExcerptChars int
	HistoryTurns    int

	Model        string
	SystemPrompt string
	Temperature  float32
	MaxTokens    int

	EmbedTimeout    time.Duration
	RetrieveTimeout time.Duration
	GenerateTimeout time.Duration
	PersistTimeout  time.Duration
}

func (o *Options) applyDefaults() {
	if o.TopK <= 0 {
		o.TopK = 10
	}
	if o.MaxSelected <= 0 {
		o.MaxSelected = 10
	}
	if o.MinPerSource <= 0 {
		o.MinPerSource = 1
	}
	if o.MaxExcerptChars <= 0 {
		o.MaxExcerptChars = 2000
	}
	if o.HistoryTurns <= 0 {
		o.HistoryTurns = 5
	}
	if o.SystemPrompt == "" {
		o.SystemPrompt = defaultSystemPrompt
	}
	if o.Temperature <= 0 {
		o.Temperature = 0.1 // low temperature for answers grounded in the passages
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 2048
	}
	if o.EmbedTimeout <= 0 {
		o.EmbedTimeout = 10 * time.Second
	}
	if o.RetrieveTimeout <= 0 {
		o.RetrieveTimeout = 2 * time.Second
	}
	if o.GenerateTimeout <= 0 {
		o.GenerateTimeout = 2 * time.Minute
	}
	if o.PersistTimeout <= 0 {
		o.PersistTimeout = 3 * time.Second
	}
}

// Controller owns a request's in-flight data end to end and the error
// classification between stages.
type Controller struct {
	embedder     embedder.Embedder
	vectorDB     vectorstore.VectorStore
	orchestrator *reranker.Orchestrator
	llmClient    llm.LLM
	history      repository.ConversationRepository
	opts         Options
	logger       *slog.Logger
}

// NewController creates a pipeline controller.
func NewController(
	emb embedder.Embedder,
	vectorDB vectorstore.VectorStore,
	orchestrator *reranker.Orchestrator,
	llmClient llm.LLM,
	history repository.ConversationRepository,
	opts Options,
	logger *slog.Logger,
) *Controller {
	opts.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		embedder:     emb,
		vectorDB:     vectorDB,
		orchestrator: orchestrator,
		llmClient:    llmClient,
		history:      history,
		opts:         opts,
		logger:       logger,
	}
}

// Query runs one request through the full pipeline. Embedding, retrieval
// and generation failures are fatal; scorer failures are absorbed by the
// rerank orchestrator; a persistence failure degrades to a warning on an
// otherwise complete response.
func (c *Controller) Query(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyQuery
	}
	if req.SessionID == "" {
		return nil, ErrMissingSession
	}

	var lat Latency

	// Embed the query. No fallback path exists for this stage.
	embedStart := time.Now()
	embedCtx, cancel := context.WithTimeout(ctx, c.opts.EmbedTimeout)
	vector, err := c.embedder.Embed(embedCtx, req.Text)
	cancel()
	lat.EmbedMS = time.Since(embedStart).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}

	// Retrieve the nearest candidates, ascending by distance.
	retrieveStart := time.Now()
	retrieveCtx, cancel := context.WithTimeout(ctx, c.opts.RetrieveTimeout)
	results, err := c.vectorDB.Search(retrieveCtx, req.UserID, vector, c.opts.TopK)
	cancel()
	lat.RetrieveMS = time.Since(retrieveStart).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
	}

	if len(results) == 0 {
		lat.TotalMS = time.Since(start).Milliseconds()
		return &Response{
			Answer:      NoResultsAnswer,
			Sources:     []string{},
			ScoreSource: reranker.SourceFallback,
			Latency:     lat,
		}, nil
	}

	candidates := make([]reranker.Candidate, len(results))
	for i, r := range results {
		candidates[i] = reranker.Candidate{
			Content:  r.Content,
			SourceID: r.SourceID,
			Rank:     i,
			Distance: r.Distance,
		}
	}

	// Rerank; this stage cannot fail.
	rerankStart := time.Now()
	ranked, scoreSource := c.orchestrator.Rerank(ctx, req.Text, candidates)
	lat.RerankMS = time.Since(rerankStart).Milliseconds()

	selection := selector.Select(ranked, c.opts.MaxSelected, c.opts.MinPerSource)

	// Prior turns feed the prompt; a read failure is not worth failing the
	// request over.
	history, err := c.history.History(ctx, req.SessionID, c.opts.HistoryTurns)
	if err != nil {
		c.logger.Warn("failed to read conversation history", "session_id", req.SessionID, "error", err)
		history = nil
	}

	prompt := buildPrompt(req.Text, selection, history, c.opts.MaxExcerptChars)

	generateStart := time.Now()
	generateCtx, cancel := context.WithTimeout(ctx, c.opts.GenerateTimeout)
	answer, err := c.llmClient.Generate(generateCtx, prompt, llm.GenerateOptions{
		Model:        c.opts.Model,
		SystemPrompt: c.opts.SystemPrompt,
		Temperature:  c.opts.Temperature,
		MaxTokens:    c.opts.MaxTokens,
	})
	cancel()
	lat.GenerateMS = time.Since(generateStart).Milliseconds()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
	}

	sources := sourceIDs(selection)

	// A cancelled request must not leave a partial turn behind.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	warning := ""
	persistStart := time.Now()
	persistCtx, cancel := context.WithTimeout(ctx, c.opts.PersistTimeout)
	err = c.history.Append(persistCtx, &repository.Turn{
		ID:        uuid.New(),
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Question:  req.Text,
		Answer:    answer,
		Sources:   sources,
		CreatedAt: time.Now().UTC(),
	})
	cancel()
	lat.PersistMS = time.Since(persistStart).Milliseconds()
	if err != nil {
		c.logger.Warn("failed to persist conversation turn", "session_id", req.SessionID, "error", err)
		warning = persistWarning
	}

	lat.TotalMS = time.Since(start).Milliseconds()

	c.logger.Info("query completed",
		"session_id", req.SessionID,
		"candidates", len(candidates),
		"selected", len(selection),
		"score_source", scoreSource,
		"total_ms", lat.TotalMS,
	)

	return &Response{
		Answer:      answer,
		Sources:     sources,
		ScoreSource: scoreSource,
		Latency:     lat,
		Warning:     warning,
	}, nil
}

// sourceIDs lists the distinct source documents of a selection in order.
func sourceIDs(selection []reranker.ScoredCandidate) []string {
	seen := make(map[string]struct{}, len(selection))
	ids := make([]string, 0, len(selection))
	for _, c := range selection {
		if _, ok := seen[c.SourceID]; ok {
			continue
		}
		seen[c.SourceID] = struct{}{}
		ids = append(ids, c.SourceID)
	}
	return ids
}
