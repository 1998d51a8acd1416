package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/okrdocs/docqa/internal/auth"
	"github.com/okrdocs/docqa/internal/pipeline"
)

// queryRequest is the body of POST /v1/query.
type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// queryResponse is the success body of POST /v1/query.
type queryResponse struct {
	Answer      string           `json:"answer"`
	Sources     []string         `json:"sources"`
	ScoreSource string           `json:"score_source"`
	Latency     pipeline.Latency `json:"latency"`
	Warning     string           `json:"warning,omitempty"`
}

// errorResponse is the error body for all endpoints. It distinguishes bad
// input from dependency outages without leaking internal detail.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func queryHandler(ctrl *pipeline.Controller, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "missing or invalid credentials", "unauthenticated")
			return
		}

		var req queryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body", "invalid_argument")
			return
		}

		resp, err := ctrl.Query(r.Context(), pipeline.Request{
			Text:      req.Query,
			SessionID: req.SessionID,
			UserID:    userID,
		})
		if err != nil {
			writeQueryError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, queryResponse{
			Answer:      resp.Answer,
			Sources:     resp.Sources,
			ScoreSource: string(resp.ScoreSource),
			Latency:     resp.Latency,
			Warning:     resp.Warning,
		})
	}
}

// writeQueryError maps the pipeline error taxonomy to HTTP statuses:
// client input errors to 400, upstream-dependency outages to 503, and
// everything else (including caller disconnects) to 500.
func writeQueryError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case pipeline.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), "invalid_argument")
	case pipeline.IsUpstreamError(err):
		logger.Error("upstream dependency failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, unwrapMessage(err), "unavailable")
	default:
		logger.Error("query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", "internal")
	}
}

// unwrapMessage returns only the taxonomy sentinel text, keeping dependency
// error detail out of caller-visible responses.
func unwrapMessage(err error) string {
	for _, sentinel := range []error{
		pipeline.ErrEmbeddingUnavailable,
		pipeline.ErrRetrievalUnavailable,
		pipeline.ErrGenerationUnavailable,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "service unavailable"
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
