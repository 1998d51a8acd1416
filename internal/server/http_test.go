package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/okrdocs/docqa/internal/auth"
	"github.com/okrdocs/docqa/internal/llm"
	"github.com/okrdocs/docqa/internal/memory"
	"github.com/okrdocs/docqa/internal/pipeline"
	"github.com/okrdocs/docqa/internal/reranker"
	"github.com/okrdocs/docqa/internal/vectorstore"
)

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2}, nil
}

func (s *stubEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, nil
}

func (s *stubEmbedder) Dimension() int    { return 2 }
func (s *stubEmbedder) ModelName() string { return "stub" }

type stubStore struct {
	results []vectorstore.SearchResult
}

func (s *stubStore) EnsureCollection(context.Context, int) error         { return nil }
func (s *stubStore) Upsert(context.Context, []vectorstore.Passage) error { return nil }
func (s *stubStore) Delete(context.Context, string, string) error        { return nil }
func (s *stubStore) Close() error                                        { return nil }

func (s *stubStore) Search(context.Context, string, []float32, int) ([]vectorstore.SearchResult, error) {
	return s.results, nil
}

type stubLLM struct{}

func (stubLLM) Generate(context.Context, string, llm.GenerateOptions) (string, error) {
	return "generated answer", nil
}

type failingScorer struct{}

func (failingScorer) Score(context.Context, string, []string) ([]float64, error) {
	return nil, reranker.ErrScorerUnavailable
}

type serverOverrides struct {
	embedder *stubEmbedder
	apiKey   string
}

func newTestServer(t *testing.T, o serverOverrides) *HTTPServer {
	t.Helper()

	emb := o.embedder
	if emb == nil {
		emb = &stubEmbedder{}
	}
	apiKey := o.apiKey
	if apiKey == "" {
		apiKey = "test-key"
	}

	store := &stubStore{results: []vectorstore.SearchResult{
		{ID: "p-1", SourceID: "doc-a", Content: "first passage"},
		{ID: "p-2", SourceID: "doc-b", Content: "second passage"},
	}}
	orch := reranker.NewOrchestrator(
		failingScorer{},
		reranker.NewPositionalScorer(0.05),
		time.Second,
		slog.Default(),
	)
	ctrl := pipeline.NewController(emb, store, orch, stubLLM{}, memory.DefaultStore(), pipeline.Options{}, slog.Default())

	return NewHTTPServer(HTTPServerConfig{
		Port:     0,
		Logger:   slog.Default(),
		Auth:     auth.NewMiddleware(auth.NewJWTManager(auth.DefaultJWTConfig("test-secret")), apiKey),
		Pipeline: ctrl,
	})
}

func doQuery(t *testing.T, s *HTTPServer, body map[string]string, authed bool) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshaling body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set(auth.APIKeyHeader, "test-key")
		req.Header.Set("X-User-ID", "user-1")
	}

	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestQueryEndpointSuccess(t *testing.T) {
	s := newTestServer(t, serverOverrides{})

	rec := doQuery(t, s, map[string]string{"query": "what is this?", "session_id": "sess-1"}, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp queryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Answer != "generated answer" {
		t.Errorf("expected generated answer, got %q", resp.Answer)
	}
	if resp.ScoreSource != "fallback" {
		t.Errorf("expected fallback score source, got %q", resp.ScoreSource)
	}
	if len(resp.Sources) != 2 {
		t.Errorf("expected 2 sources, got %v", resp.Sources)
	}
	if resp.Latency.TotalMS < 0 {
		t.Errorf("negative total latency: %d", resp.Latency.TotalMS)
	}
}

func TestQueryEndpointUnauthenticated(t *testing.T) {
	s := newTestServer(t, serverOverrides{})

	rec := doQuery(t, s, map[string]string{"query": "q", "session_id": "s"}, false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestQueryEndpointEmptyQuery(t *testing.T) {
	s := newTestServer(t, serverOverrides{})

	rec := doQuery(t, s, map[string]string{"query": "", "session_id": "s"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Code != "invalid_argument" {
		t.Errorf("expected invalid_argument code, got %q", resp.Code)
	}
}

func TestQueryEndpointMissingSession(t *testing.T) {
	s := newTestServer(t, serverOverrides{})

	rec := doQuery(t, s, map[string]string{"query": "q"}, true)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryEndpointMalformedBody(t *testing.T) {
	s := newTestServer(t, serverOverrides{})

	req := httptest.NewRequest(http.MethodPost, "/v1/query", bytes.NewReader([]byte("{not json")))
	req.Header.Set(auth.APIKeyHeader, "test-key")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestQueryEndpointUpstreamOutage(t *testing.T) {
	s := newTestServer(t, serverOverrides{
		embedder: &stubEmbedder{err: errors.New("connection refused")},
	})

	rec := doQuery(t, s, map[string]string{"query": "q", "session_id": "s"}, true)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Code != "unavailable" {
		t.Errorf("expected unavailable code, got %q", resp.Code)
	}
	// Dependency detail stays out of the response body.
	if resp.Error != pipeline.ErrEmbeddingUnavailable.Error() {
		t.Errorf("expected sentinel message only, got %q", resp.Error)
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, serverOverrides{})

	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Router().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}
