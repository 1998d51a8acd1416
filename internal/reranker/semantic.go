package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// DefaultRerankerBaseURL is the default reranker service endpoint.
	DefaultRerankerBaseURL = "http://localhost:8000"

	// DefaultProbeInterval is the default health re-probe period.
	DefaultProbeInterval = 30 * time.Second

	// probeTimeout bounds a single health probe request.
	probeTimeout = 5 * time.Second
)

// SemanticConfig holds configuration for the semantic scorer.
type SemanticConfig struct {
	// BaseURL is the reranker service base URL (default: http://localhost:8000).
	BaseURL string

	// ProbeInterval is how often the health endpoint is re-probed once the
	// service is ready.
	ProbeInterval time.Duration

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client

	// Logger is an optional structured logger.
	Logger *slog.Logger
}

// SemanticScorer scores query-document pairs through an external
// cross-encoder service. Readiness is tracked out-of-band: the /health
// endpoint is probed at startup (with exponential backoff until it
// succeeds) and periodically afterwards, never on the request path. While
// the model is not known to be loaded, Score fails fast with
// ErrScorerUnavailable.
type SemanticScorer struct {
	baseURL       string
	client        *http.Client
	probeInterval time.Duration
	logger        *slog.Logger

	mu    sync.RWMutex
	ready bool
}

// NewSemanticScorer creates a semantic scorer for the given service.
func NewSemanticScorer(cfg SemanticConfig) *SemanticScorer {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultRerankerBaseURL
	}

	probeInterval := cfg.ProbeInterval
	if probeInterval <= 0 {
		probeInterval = DefaultProbeInterval
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &SemanticScorer{
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		client:        client,
		probeInterval: probeInterval,
		logger:        logger,
	}
}

// rerankRequest is the request body for the reranker service.
type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k"`
}

// rankedDocument is one entry of the service response; Index refers to the
// position in the submitted documents list.
type rankedDocument struct {
	Index    int     `json:"index"`
	Document string  `json:"document"`
	Score    float64 `json:"score"`
}

// rerankResponse is the response body from the reranker service.
type rerankResponse struct {
	Query           string           `json:"query"`
	RankedDocuments []rankedDocument `json:"ranked_documents"`
	TotalDocuments  int              `json:"total_documents"`
}

// healthResponse is the /health endpoint response.
type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Score scores every document against the query in a single service call.
// top_k is always the full document count so each submitted document comes
// back; scores are mapped to submission order by index and clamped to [0,1].
func (s *SemanticScorer) Score(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return []float64{}, nil
	}

	if !s.Ready() {
		return nil, fmt.Errorf("%w: model not loaded", ErrScorerUnavailable)
	}

	body, err := json.Marshal(rerankRequest{
		Query:     query,
		Documents: documents,
		TopK:      len(documents),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", ErrScorerInference, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrScorerInference, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %v", ErrScorerTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrScorerInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: reranker status %d: %s", ErrScorerInference, resp.StatusCode, string(detail))
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrScorerInference, err)
	}

	scores := make([]float64, len(documents))
	for _, rd := range parsed.RankedDocuments {
		if rd.Index < 0 || rd.Index >= len(documents) {
			return nil, fmt.Errorf("%w: index %d out of range for %d documents", ErrScorerInference, rd.Index, len(documents))
		}
		scores[rd.Index] = clamp01(rd.Score)
	}

	return scores, nil
}

// Ready reports whether the last health probe saw a loaded model.
func (s *SemanticScorer) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

func (s *SemanticScorer) setReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// StartHealthProbe launches the out-of-band readiness loop: probe with
// exponential backoff until the model reports loaded, then re-probe every
// ProbeInterval. A failed re-probe marks the scorer unavailable and returns
// to the backoff loop. The goroutine exits when ctx is cancelled.
func (s *SemanticScorer) StartHealthProbe(ctx context.Context) {
	go func() {
		for {
			b := backoff.NewExponentialBackOff()
			b.MaxInterval = s.probeInterval
			b.MaxElapsedTime = 0 // retry until cancelled

			err := backoff.Retry(func() error {
				return s.probe(ctx)
			}, backoff.WithContext(b, ctx))
			if err != nil {
				return // context cancelled
			}

			s.setReady(true)
			s.logger.Info("reranker ready", "url", s.baseURL)

			if !s.watch(ctx) {
				return
			}
			s.setReady(false)
		}
	}()
}

// watch re-probes periodically; returns false when ctx is cancelled and
// true when a probe failed and the backoff loop should resume.
func (s *SemanticScorer) watch(ctx context.Context) bool {
	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			if err := s.probe(ctx); err != nil {
				s.logger.Warn("reranker health probe failed", "error", err)
				return true
			}
		}
	}
}

// probe checks the /health endpoint once.
func (s *SemanticScorer) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating health request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health status %d", resp.StatusCode)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decoding health response: %w", err)
	}

	if !health.ModelLoaded {
		return fmt.Errorf("model not loaded (status %q)", health.Status)
	}

	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Ensure SemanticScorer implements Scorer interface.
var _ Scorer = (*SemanticScorer)(nil)
