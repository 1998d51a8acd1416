package reranker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newReadyScorer(url string) *SemanticScorer {
	s := NewSemanticScorer(SemanticConfig{BaseURL: url})
	s.setReady(true)
	return s
}

func TestSemanticScoreMapsByIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rerank" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		var req rerankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.TopK != len(req.Documents) {
			t.Errorf("expected top_k=%d, got %d", len(req.Documents), req.TopK)
		}

		// Return documents out of order; the scorer must map by index.
		json.NewEncoder(w).Encode(rerankResponse{
			Query: req.Query,
			RankedDocuments: []rankedDocument{
				{Index: 2, Document: req.Documents[2], Score: 0.9},
				{Index: 0, Document: req.Documents[0], Score: 0.4},
				{Index: 1, Document: req.Documents[1], Score: 0.1},
			},
			TotalDocuments: len(req.Documents),
		})
	}))
	defer server.Close()

	s := newReadyScorer(server.URL)
	scores, err := s.Score(context.Background(), "query", []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}

	want := []float64{0.4, 0.1, 0.9}
	for i, w := range want {
		if scores[i] != w {
			t.Errorf("index %d: expected %.2f, got %.4f", i, w, scores[i])
		}
	}
}

func TestSemanticScoreClampsScores(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Raw cross-encoder logits can fall outside [0,1].
		json.NewEncoder(w).Encode(rerankResponse{
			RankedDocuments: []rankedDocument{
				{Index: 0, Score: 7.3},
				{Index: 1, Score: -2.1},
			},
		})
	}))
	defer server.Close()

	s := newReadyScorer(server.URL)
	scores, err := s.Score(context.Background(), "query", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if scores[0] != 1 {
		t.Errorf("expected score clamped to 1, got %v", scores[0])
	}
	if scores[1] != 0 {
		t.Errorf("expected score clamped to 0, got %v", scores[1])
	}
}

func TestSemanticScoreNotReady(t *testing.T) {
	s := NewSemanticScorer(SemanticConfig{BaseURL: "http://localhost:1"})

	_, err := s.Score(context.Background(), "query", []string{"a"})
	if !errors.Is(err, ErrScorerUnavailable) {
		t.Fatalf("expected ErrScorerUnavailable, got %v", err)
	}
}

func TestSemanticScoreServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	s := newReadyScorer(server.URL)
	_, err := s.Score(context.Background(), "query", []string{"a"})
	if !errors.Is(err, ErrScorerInference) {
		t.Fatalf("expected ErrScorerInference, got %v", err)
	}
}

func TestSemanticScoreTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	s := newReadyScorer(server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := s.Score(ctx, "query", []string{"a"})
	if !errors.Is(err, ErrScorerTimeout) {
		t.Fatalf("expected ErrScorerTimeout, got %v", err)
	}
}

func TestSemanticScoreBadIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(rerankResponse{
			RankedDocuments: []rankedDocument{{Index: 5, Score: 0.5}},
		})
	}))
	defer server.Close()

	s := newReadyScorer(server.URL)
	_, err := s.Score(context.Background(), "query", []string{"a"})
	if !errors.Is(err, ErrScorerInference) {
		t.Fatalf("expected ErrScorerInference for out-of-range index, got %v", err)
	}
}

func TestSemanticScoreEmptyDocuments(t *testing.T) {
	s := NewSemanticScorer(SemanticConfig{BaseURL: "http://localhost:1"})

	scores, err := s.Score(context.Background(), "query", nil)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	if len(scores) != 0 {
		t.Errorf("expected no scores, got %d", len(scores))
	}
}

func TestHealthProbeMarksReady(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		json.NewEncoder(w).Encode(healthResponse{Status: "healthy", ModelLoaded: true})
	}))
	defer server.Close()

	s := NewSemanticScorer(SemanticConfig{BaseURL: server.URL, ProbeInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartHealthProbe(ctx)

	deadline := time.After(2 * time.Second)
	for !s.Ready() {
		select {
		case <-deadline:
			t.Fatal("scorer never became ready")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHealthProbeModelNotLoaded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(healthResponse{Status: "loading", ModelLoaded: false})
	}))
	defer server.Close()

	s := NewSemanticScorer(SemanticConfig{BaseURL: server.URL})
	if err := s.probe(context.Background()); err == nil {
		t.Fatal("expected probe to fail while model is loading")
	}
	if s.Ready() {
		t.Fatal("scorer must not be ready while model is loading")
	}
}
