package index_service

import (
	"context"
	"fmt"

	"github.com/serisow/docqa/qa_types"
)

// Entry is one vector with its chunk metadata snapshot, as stored in the
// index.
type Entry struct {
	ChunkID  string
	Vector   []float32
	Metadata qa_types.ChunkMetadata
}

// Filter narrows a similarity query. A zero filter matches everything.
type Filter struct {
	DocumentID string
}

// VectorIndex abstracts the nearest-neighbor store. The orchestrator does
// not assume exclusive access: other callers may interleave traffic against
// the same index.
type VectorIndex interface {
	Upsert(ctx context.Context, entries []Entry) error
	Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]qa_types.RetrievalMatch, error)
	DeleteDocument(ctx context.Context, documentID string) error
	// Scale names the similarity scale of Query results so the scorer can
	// normalize them.
	Scale() string
}

// ServiceError wraps a failure at the vector index boundary.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("index service: %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }
