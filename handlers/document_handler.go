package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/serisow/docqa/qa_types"
	"github.com/serisow/docqa/services/document_service"
)

// DocumentReader exposes document status lookup and deletion.
type DocumentReader interface {
	GetStatus(ctx context.Context, documentID string) (qa_types.Document, error)
	Delete(ctx context.Context, documentID string) error
}

type DocumentHandler struct {
	service DocumentReader
	logger  *slog.Logger
}

func NewDocumentHandler(service DocumentReader, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{service: service, logger: logger}
}

func (h *DocumentHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["id"]

	doc, err := h.service.GetStatus(r.Context(), documentID)
	if errors.Is(err, document_service.ErrNotFound) {
		writeJSONError(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to fetch document status",
			slog.String("document_id", documentID),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to fetch document status", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	documentID := mux.Vars(r)["id"]

	err := h.service.Delete(r.Context(), documentID)
	if errors.Is(err, document_service.ErrNotFound) {
		writeJSONError(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to delete document",
			slog.String("document_id", documentID),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to delete document", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": documentID,
		"message":     "Document deleted",
	})
}
