package document_service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/serisow/docqa/qa_types"
)

// PostgresStore persists document metadata in the documents table.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the documents table if missing. It must run before
// the chunks table schema, which references it.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS documents (
            document_id TEXT PRIMARY KEY,
            filename    TEXT NOT NULL,
            byte_size   BIGINT NOT NULL DEFAULT 0,
            status      TEXT NOT NULL,
            chunk_count INT NOT NULL DEFAULT 0,
            created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
        )`)
	return err
}

func (s *PostgresStore) Create(ctx context.Context, doc qa_types.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
        INSERT INTO documents (document_id, filename, byte_size, status, chunk_count, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		doc.ID, doc.Filename, doc.ByteSize, doc.Status, doc.ChunkCount, doc.CreatedAt)
	return err
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, documentID, status string, chunkCount int) error {
	tag, err := s.db.Exec(ctx, `
        UPDATE documents SET status = $2, chunk_count = $3 WHERE document_id = $1`,
		documentID, status, chunkCount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, documentID string) (qa_types.Document, error) {
	var doc qa_types.Document
	err := s.db.QueryRow(ctx, `
        SELECT document_id, filename, byte_size, status, chunk_count, created_at
        FROM documents WHERE document_id = $1`, documentID).
		Scan(&doc.ID, &doc.Filename, &doc.ByteSize, &doc.Status, &doc.ChunkCount, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return qa_types.Document{}, ErrNotFound
	}
	if err != nil {
		return qa_types.Document{}, err
	}
	return doc, nil
}

func (s *PostgresStore) Delete(ctx context.Context, documentID string) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM documents WHERE document_id = $1", documentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
