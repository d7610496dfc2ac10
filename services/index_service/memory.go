package index_service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/serisow/docqa/qa_types"
	"github.com/serisow/docqa/scoring"
)

// MemoryIndex is a brute-force cosine similarity store. It backs index-less
// deployments and tests; behavior matches the pgvector store's cosine
// ranking.
type MemoryIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]Entry
}

func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		entries:   make(map[string]Entry),
	}
}

func (x *MemoryIndex) Scale() string { return scoring.ScaleCosine }

func (x *MemoryIndex) Upsert(ctx context.Context, entries []Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, e := range entries {
		if len(e.Vector) != x.dimension {
			return &ServiceError{
				Op:  "upsert",
				Err: fmt.Errorf("vector for chunk %s has dimension %d, index expects %d", e.ChunkID, len(e.Vector), x.dimension),
			}
		}
		x.entries[e.ChunkID] = e
	}
	return nil
}

func (x *MemoryIndex) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]qa_types.RetrievalMatch, error) {
	if len(vector) != x.dimension {
		return nil, &ServiceError{
			Op:  "query",
			Err: fmt.Errorf("query vector has dimension %d, index expects %d", len(vector), x.dimension),
		}
	}
	if topK <= 0 {
		return nil, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	type scored struct {
		entry      Entry
		similarity float64
	}
	candidates := make([]scored, 0, len(x.entries))
	for _, e := range x.entries {
		if filter != nil && filter.DocumentID != "" && e.Metadata.DocumentID != filter.DocumentID {
			continue
		}
		candidates = append(candidates, scored{entry: e, similarity: cosineSimilarity(vector, e.Vector)})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].similarity != candidates[j].similarity {
			return candidates[i].similarity > candidates[j].similarity
		}
		return candidates[i].entry.ChunkID < candidates[j].entry.ChunkID
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	matches := make([]qa_types.RetrievalMatch, 0, topK)
	for i := 0; i < topK; i++ {
		matches = append(matches, qa_types.RetrievalMatch{
			ChunkID:    candidates[i].entry.ChunkID,
			Similarity: candidates[i].similarity,
			Rank:       i,
			Metadata:   candidates[i].entry.Metadata,
		})
	}
	return matches, nil
}

func (x *MemoryIndex) DeleteDocument(ctx context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	for id, e := range x.entries {
		if e.Metadata.DocumentID == documentID {
			delete(x.entries, id)
		}
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
