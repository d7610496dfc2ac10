package embedding_service

import (
	"context"
	"fmt"
)

// Embedder turns text into a fixed-length vector. Implementations are
// swappable provider adapters selected by configuration; the core never
// branches on the concrete provider.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ServiceError wraps a transport or provider failure at the embedding
// boundary.
type ServiceError struct {
	Provider string
	Err      error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("embedding service (%s): %v", e.Provider, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// DimensionMismatchError reports a vector whose dimension does not match
// the configured embedding dimension. Mismatches are rejected, never
// truncated or padded.
type DimensionMismatchError struct {
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: got %d, configured %d", e.Got, e.Want)
}
