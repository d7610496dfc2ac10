package document_service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/serisow/docqa/qa_types"
)

// ErrNotFound is returned when a document id is unknown.
var ErrNotFound = fmt.Errorf("document not found")

// DocumentStore persists document metadata and status transitions.
type DocumentStore interface {
	Create(ctx context.Context, doc qa_types.Document) error
	UpdateStatus(ctx context.Context, documentID, status string, chunkCount int) error
	Get(ctx context.Context, documentID string) (qa_types.Document, error)
	Delete(ctx context.Context, documentID string) error
}

// MemoryStore keeps document metadata in process memory. It pairs with the
// in-memory vector index for index-less deployments and tests.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]qa_types.Document
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]qa_types.Document)}
}

func (s *MemoryStore) Create(ctx context.Context, doc qa_types.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, documentID, status string, chunkCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return ErrNotFound
	}
	doc.Status = status
	doc.ChunkCount = chunkCount
	s.docs[documentID] = doc
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, documentID string) (qa_types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return qa_types.Document{}, ErrNotFound
	}
	return doc, nil
}

func (s *MemoryStore) Delete(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[documentID]; !ok {
		return ErrNotFound
	}
	delete(s.docs, documentID)
	return nil
}
