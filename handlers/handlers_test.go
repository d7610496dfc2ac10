package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/serisow/docqa/orchestrator"
	"github.com/serisow/docqa/qa_types"
	"github.com/serisow/docqa/services/document_service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeQueryService struct {
	lastParams orchestrator.QueryParams
	resp       *qa_types.QueryResponse
	err        error
}

func (f *fakeQueryService) Query(ctx context.Context, p orchestrator.QueryParams) (*qa_types.QueryResponse, error) {
	f.lastParams = p
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

type fakeDocService struct {
	ingestResult qa_types.IngestResult
	ingestErr    error
	doc          qa_types.Document
	getErr       error
	deleteErr    error
	deletedID    string
}

func (f *fakeDocService) IngestFile(ctx context.Context, filename string, content []byte) (qa_types.IngestResult, error) {
	return f.ingestResult, f.ingestErr
}

func (f *fakeDocService) GetStatus(ctx context.Context, documentID string) (qa_types.Document, error) {
	return f.doc, f.getErr
}

func (f *fakeDocService) Delete(ctx context.Context, documentID string) error {
	f.deletedID = documentID
	return f.deleteErr
}

func TestQueryHandler(t *testing.T) {
	okResp := &qa_types.QueryResponse{
		Query:           "what is in the report?",
		Answer:          "The report covers revenue.",
		Citations:       []qa_types.Citation{},
		ConfidenceScore: 0.82,
	}

	tests := []struct {
		name       string
		body       string
		service    *fakeQueryService
		wantStatus int
	}{
		{"valid query", `{"query":"what is in the report?"}`, &fakeQueryService{resp: okResp}, http.StatusOK},
		{"empty query", `{"query":""}`, &fakeQueryService{resp: okResp}, http.StatusBadRequest},
		{"malformed json", `{"query":`, &fakeQueryService{resp: okResp}, http.StatusBadRequest},
		{"top_k out of range", `{"query":"q","top_k":500}`, &fakeQueryService{resp: okResp}, http.StatusBadRequest},
		{"threshold out of range", `{"query":"q","confidence_threshold":1.5}`, &fakeQueryService{resp: okResp}, http.StatusBadRequest},
		{"service failure", `{"query":"q"}`, &fakeQueryService{err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewQueryHandler(tt.service, testLogger())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestQueryHandlerCitationsDefaultOn(t *testing.T) {
	svc := &fakeQueryService{resp: &qa_types.QueryResponse{}}
	h := NewQueryHandler(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"query":"q"}`))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if !svc.lastParams.IncludeCitations {
		t.Error("citations should default to included")
	}

	req = httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"query":"q","include_citations":false}`))
	h.ServeHTTP(httptest.NewRecorder(), req)
	if svc.lastParams.IncludeCitations {
		t.Error("explicit opt-out ignored")
	}
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestIngestHandler(t *testing.T) {
	tests := []struct {
		name       string
		filename   string
		service    *fakeDocService
		wantStatus int
	}{
		{"text file accepted", "notes.txt", &fakeDocService{ingestResult: qa_types.IngestResult{DocumentID: "d1", Status: qa_types.StatusProcessed, ChunksCreated: 3}}, http.StatusCreated},
		{"unsupported extension", "image.png", &fakeDocService{}, http.StatusBadRequest},
		{"ingestion failure", "notes.txt", &fakeDocService{ingestErr: errors.New("extract failed")}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, contentType := multipartBody(t, tt.filename, "Some document content here.")
			h := NewIngestHandler(tt.service, testLogger())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
			req.Header.Set("Content-Type", contentType)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestIngestHandlerResponseBody(t *testing.T) {
	svc := &fakeDocService{ingestResult: qa_types.IngestResult{
		DocumentID:    "d1",
		Status:        qa_types.StatusProcessed,
		ChunksCreated: 5,
	}}
	body, contentType := multipartBody(t, "report.pdf", "content")
	h := NewIngestHandler(svc, testLogger())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var res qa_types.IngestResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.DocumentID != "d1" || res.ChunksCreated != 5 {
		t.Errorf("response = %+v", res)
	}
}

func documentRouter(h *DocumentHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/documents/{id}", h.GetStatus).Methods("GET")
	r.HandleFunc("/api/v1/documents/{id}", h.Delete).Methods("DELETE")
	return r
}

func TestDocumentStatus(t *testing.T) {
	svc := &fakeDocService{doc: qa_types.Document{
		ID:         "d1",
		Filename:   "report.pdf",
		Status:     qa_types.StatusProcessed,
		ChunkCount: 7,
	}}
	r := documentRouter(NewDocumentHandler(svc, testLogger()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents/d1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var doc qa_types.Document
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.ChunkCount != 7 {
		t.Errorf("chunk count = %d", doc.ChunkCount)
	}
}

func TestDocumentStatusNotFound(t *testing.T) {
	svc := &fakeDocService{getErr: document_service.ErrNotFound}
	r := documentRouter(NewDocumentHandler(svc, testLogger()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/documents/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDocumentDelete(t *testing.T) {
	svc := &fakeDocService{}
	r := documentRouter(NewDocumentHandler(svc, testLogger()))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/d1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if svc.deletedID != "d1" {
		t.Errorf("deleted id = %q", svc.deletedID)
	}
}

func TestHealthHandlerWithoutDB(t *testing.T) {
	h := NewHealthHandler(nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d", rec.Code)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestHealthHandlerDegraded(t *testing.T) {
	h := NewHealthHandler(failingPinger{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
