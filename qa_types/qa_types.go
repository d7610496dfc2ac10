package qa_types

import "time"

// Document processing statuses.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusProcessed  = "processed"
	StatusFailed     = "failed"
)

// Document is an ingested unit of content. Immutable once processed,
// except for status transitions.
type Document struct {
	ID         string    `json:"document_id"`
	Filename   string    `json:"filename"`
	ByteSize   int64     `json:"byte_size"`
	Status     string    `json:"status"`
	ChunkCount int       `json:"chunks_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// Chunk is a contiguous span of a document's normalized text. Never
// mutated after creation; removed only when the parent document is deleted.
type Chunk struct {
	ChunkID     string `json:"chunk_id"`
	DocumentID  string `json:"document_id"`
	Index       int    `json:"chunk_index"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// ChunkMetadata is the metadata snapshot stored alongside a vector and
// returned with every retrieval match.
type ChunkMetadata struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id"`
	ChunkIndex int    `json:"chunk_index"`
	Filename   string `json:"filename"`
	Text       string `json:"text"`
}

// RetrievalMatch is the ephemeral result of a similarity search. The raw
// similarity is on the provider's scale; Rank is the position in the
// index's own similarity-descending ordering.
type RetrievalMatch struct {
	ChunkID    string
	Similarity float64
	Rank       int
	Metadata   ChunkMetadata
}

// ScoredMatch is a retrieval match with its similarity normalized to [0,1].
type ScoredMatch struct {
	RetrievalMatch
	Confidence float64
}

// Citation links an answer back to a source chunk.
type Citation struct {
	DocumentID      string  `json:"document_id"`
	ChunkID         string  `json:"chunk_id"`
	Text            string  `json:"text"`
	ConfidenceScore float64 `json:"confidence_score"`
	Position        int     `json:"position"`
	Filename        string  `json:"filename,omitempty"`
	ChunkIndex      int     `json:"chunk_index"`
}

// AttemptRecord captures one retrieval round for the audit trace.
type AttemptRecord struct {
	AttemptNumber     int     `json:"attempt_number"`
	TopKUsed          int     `json:"top_k_used"`
	ThresholdUsed     float64 `json:"threshold_used"`
	OverallConfidence float64 `json:"overall_confidence"`
}

// RetrievalMetadata describes how the final match set was obtained.
type RetrievalMetadata struct {
	Attempts         []AttemptRecord `json:"attempts"`
	FinalTopK        int             `json:"final_top_k"`
	ThresholdUsed    float64         `json:"threshold_used"`
	TotalRetrieved   int             `json:"total_retrieved"`
	AcceptedCount    int             `json:"accepted_count"`
	LowConfidence    bool            `json:"low_confidence"`
	CitationsDropped int             `json:"citations_dropped,omitempty"`
}

// QueryResponse is the final answer envelope.
type QueryResponse struct {
	Query             string            `json:"query"`
	Answer            string            `json:"answer"`
	AnswerUnavailable bool              `json:"answer_unavailable,omitempty"`
	Citations         []Citation        `json:"citations"`
	ConfidenceScore   float64           `json:"confidence_score"`
	RetrievalMetadata RetrievalMetadata `json:"retrieval_metadata"`
	Timestamp         time.Time         `json:"timestamp"`
}

// IngestResult reports the outcome of a document ingestion.
type IngestResult struct {
	DocumentID    string `json:"document_id"`
	Status        string `json:"status"`
	ChunksCreated int    `json:"chunks_created"`
	Message       string `json:"message"`
}
