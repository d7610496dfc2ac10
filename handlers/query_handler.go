package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/serisow/docqa/orchestrator"
	"github.com/serisow/docqa/qa_types"
)

// QueryService answers a question against the ingested corpus.
type QueryService interface {
	Query(ctx context.Context, p orchestrator.QueryParams) (*qa_types.QueryResponse, error)
}

type QueryRequest struct {
	Query               string  `json:"query"`
	TopK                int     `json:"top_k"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	IncludeCitations    *bool   `json:"include_citations"`
	MaxRetries          int     `json:"max_retries"`
}

type QueryHandler struct {
	service QueryService
	logger  *slog.Logger
}

func NewQueryHandler(service QueryService, logger *slog.Logger) *QueryHandler {
	return &QueryHandler{service: service, logger: logger}
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode query request",
			slog.String("error", err.Error()))
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Query == "" {
		writeJSONError(w, "Query cannot be empty", http.StatusBadRequest)
		return
	}
	if req.TopK < 0 || req.TopK > 100 {
		writeJSONError(w, "top_k must be between 1 and 100", http.StatusBadRequest)
		return
	}
	if req.ConfidenceThreshold < 0 || req.ConfidenceThreshold > 1 {
		writeJSONError(w, "confidence_threshold must be between 0 and 1", http.StatusBadRequest)
		return
	}

	// Citations are included unless the caller opts out.
	includeCitations := true
	if req.IncludeCitations != nil {
		includeCitations = *req.IncludeCitations
	}

	resp, err := h.service.Query(r.Context(), orchestrator.QueryParams{
		Query:               req.Query,
		TopK:                req.TopK,
		ConfidenceThreshold: req.ConfidenceThreshold,
		IncludeCitations:    includeCitations,
		MaxRetries:          req.MaxRetries,
	})
	if err != nil {
		h.logger.Error("Query failed",
			slog.String("query", req.Query),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to process query", http.StatusInternalServerError)
		return
	}

	if resp.RetrievalMetadata.LowConfidence {
		h.logger.Warn("Low confidence answer returned",
			slog.String("query", req.Query),
			slog.Float64("confidence", resp.ConfidenceScore))
	}

	writeJSON(w, http.StatusOK, resp)
}
