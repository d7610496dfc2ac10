package document_service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/serisow/docqa/chunker"
	"github.com/serisow/docqa/qa_types"
	"github.com/serisow/docqa/services/embedding_service"
	"github.com/serisow/docqa/services/index_service"
)

// Service runs the ingestion pipeline: extract, chunk, embed, upsert. It
// also owns document status bookkeeping and deletion.
type Service struct {
	extractor   *DocumentExtractor
	chunker     *chunker.SentenceChunker
	embedder    embedding_service.Embedder
	index       index_service.VectorIndex
	store       DocumentStore
	logger      *slog.Logger
	parallelism int
}

func NewService(
	chk *chunker.SentenceChunker,
	embedder embedding_service.Embedder,
	index index_service.VectorIndex,
	store DocumentStore,
	parallelism int,
	logger *slog.Logger,
) *Service {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Service{
		extractor:   NewDocumentExtractor(logger),
		chunker:     chk,
		embedder:    embedder,
		index:       index,
		store:       store,
		logger:      logger,
		parallelism: parallelism,
	}
}

// IngestFile extracts text from an uploaded file and runs IngestText.
func (s *Service) IngestFile(ctx context.Context, filename string, content []byte) (qa_types.IngestResult, error) {
	text, err := s.extractor.Extract(filename, content)
	if err != nil {
		return qa_types.IngestResult{}, err
	}
	return s.IngestText(ctx, filename, int64(len(content)), text)
}

// IngestText chunks the text, embeds every chunk and upserts the vectors.
// Chunk embeddings run concurrently up to the configured parallelism;
// results are reassembled by chunk ordinal, not completion order, so the
// stored ordering is deterministic.
func (s *Service) IngestText(ctx context.Context, filename string, byteSize int64, text string) (qa_types.IngestResult, error) {
	documentID := uuid.New().String()

	doc := qa_types.Document{
		ID:       documentID,
		Filename: filename,
		ByteSize: byteSize,
		Status:   qa_types.StatusProcessing,
	}
	if err := s.store.Create(ctx, doc); err != nil {
		return qa_types.IngestResult{}, fmt.Errorf("failed to register document: %w", err)
	}

	chunks, err := s.chunker.Split(documentID, text)
	if err != nil {
		s.markFailed(ctx, documentID)
		return qa_types.IngestResult{}, err
	}
	if len(chunks) == 0 {
		s.markFailed(ctx, documentID)
		return qa_types.IngestResult{}, fmt.Errorf("no chunks created from document %s", filename)
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for i, ch := range chunks {
		i, ch := i, ch
		g.Go(func() error {
			vector, err := s.embedder.Embed(gctx, ch.Text)
			if err != nil {
				return err
			}
			vectors[i] = vector
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.markFailed(ctx, documentID)
		return qa_types.IngestResult{}, err
	}

	entries := make([]index_service.Entry, len(chunks))
	for i, ch := range chunks {
		entries[i] = index_service.Entry{
			ChunkID: ch.ChunkID,
			Vector:  vectors[i],
			Metadata: qa_types.ChunkMetadata{
				DocumentID: documentID,
				ChunkID:    ch.ChunkID,
				ChunkIndex: ch.Index,
				Filename:   filename,
				Text:       ch.Text,
			},
		}
	}
	if err := s.index.Upsert(ctx, entries); err != nil {
		s.markFailed(ctx, documentID)
		return qa_types.IngestResult{}, err
	}

	if err := s.store.UpdateStatus(ctx, documentID, qa_types.StatusProcessed, len(chunks)); err != nil {
		return qa_types.IngestResult{}, fmt.Errorf("failed to finalize document status: %w", err)
	}

	s.logger.Info("Document ingested",
		slog.String("document_id", documentID),
		slog.String("filename", filename),
		slog.Int("chunks_created", len(chunks)))

	return qa_types.IngestResult{
		DocumentID:    documentID,
		Status:        qa_types.StatusProcessed,
		ChunksCreated: len(chunks),
		Message:       fmt.Sprintf("Document ingested successfully with %d chunks", len(chunks)),
	}, nil
}

// GetStatus returns the document's processing status and chunk count.
func (s *Service) GetStatus(ctx context.Context, documentID string) (qa_types.Document, error) {
	return s.store.Get(ctx, documentID)
}

// Delete removes a document and cascades to its chunks and vectors.
func (s *Service) Delete(ctx context.Context, documentID string) error {
	if _, err := s.store.Get(ctx, documentID); err != nil {
		return err
	}
	if err := s.index.DeleteDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, documentID); err != nil {
		return err
	}
	s.logger.Info("Document deleted", slog.String("document_id", documentID))
	return nil
}

func (s *Service) markFailed(ctx context.Context, documentID string) {
	if err := s.store.UpdateStatus(ctx, documentID, qa_types.StatusFailed, 0); err != nil {
		s.logger.Error("Failed to mark document as failed",
			slog.String("document_id", documentID),
			slog.String("error", err.Error()))
	}
}
