package handlers

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/serisow/docqa/qa_types"
)

// maxUploadSize bounds the multipart form parse.
const maxUploadSize = 10 << 20 // 10 MB

// DocumentIngester runs the ingestion pipeline on an uploaded file.
type DocumentIngester interface {
	IngestFile(ctx context.Context, filename string, content []byte) (qa_types.IngestResult, error)
}

type IngestHandler struct {
	service DocumentIngester
	logger  *slog.Logger
}

func NewIngestHandler(service DocumentIngester, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{service: service, logger: logger}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("Received document upload request")

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSONError(w, "Failed to parse multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, "Failed to get file from form", http.StatusBadRequest)
		return
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(header.Filename)) {
	case ".pdf", ".doc", ".docx", ".txt", ".md":
	default:
		h.logger.Error("Unsupported file type",
			slog.String("filename", header.Filename))
		writeJSONError(w, "Unsupported file type", http.StatusBadRequest)
		return
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		writeJSONError(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	h.logger.Debug("Starting document ingestion",
		slog.String("filename", header.Filename),
		slog.String("content_type", header.Header.Get("Content-Type")),
		slog.Int64("size", header.Size))

	result, err := h.service.IngestFile(r.Context(), header.Filename, buf.Bytes())
	if err != nil {
		h.logger.Error("Document ingestion failed",
			slog.String("filename", header.Filename),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to ingest document", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}
