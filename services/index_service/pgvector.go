package index_service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/serisow/docqa/qa_types"
	"github.com/serisow/docqa/scoring"
)

// PgVectorIndex stores chunk vectors in PostgreSQL with the pgvector
// extension. Query similarity is cosine: 1 - (embedding <=> query).
type PgVectorIndex struct {
	db        *pgxpool.Pool
	logger    *slog.Logger
	dimension int
}

func NewPgVectorIndex(db *pgxpool.Pool, dimension int, logger *slog.Logger) *PgVectorIndex {
	return &PgVectorIndex{db: db, logger: logger, dimension: dimension}
}

func (x *PgVectorIndex) Scale() string { return scoring.ScaleCosine }

// EnsureSchema creates the chunks table if missing. Chunks cascade on
// document deletion.
func (x *PgVectorIndex) EnsureSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS chunks (
            chunk_id     TEXT PRIMARY KEY,
            document_id  TEXT NOT NULL REFERENCES documents(document_id) ON DELETE CASCADE,
            chunk_index  INT NOT NULL,
            filename     TEXT NOT NULL DEFAULT '',
            content      TEXT NOT NULL,
            embedding    vector(%d) NOT NULL
        )`, x.dimension)
	if _, err := x.db.Exec(ctx, schema); err != nil {
		return &ServiceError{Op: "ensure schema", Err: err}
	}
	return nil
}

func (x *PgVectorIndex) Upsert(ctx context.Context, entries []Entry) error {
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
            INSERT INTO chunks (chunk_id, document_id, chunk_index, filename, content, embedding)
            VALUES ($1, $2, $3, $4, $5, $6)
            ON CONFLICT (chunk_id) DO UPDATE SET
                document_id = EXCLUDED.document_id,
                chunk_index = EXCLUDED.chunk_index,
                filename    = EXCLUDED.filename,
                content     = EXCLUDED.content,
                embedding   = EXCLUDED.embedding`,
			e.ChunkID, e.Metadata.DocumentID, e.Metadata.ChunkIndex,
			e.Metadata.Filename, e.Metadata.Text, pgvector.NewVector(e.Vector))
	}

	results := x.db.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return &ServiceError{Op: "upsert", Err: err}
		}
	}

	x.logger.Debug("Upserted vectors", slog.Int("count", len(entries)))
	return nil
}

func (x *PgVectorIndex) Query(ctx context.Context, vector []float32, topK int, filter *Filter) ([]qa_types.RetrievalMatch, error) {
	query := `
        WITH scored_chunks AS (
            SELECT
                c.chunk_id,
                c.document_id,
                c.chunk_index,
                c.filename,
                c.content,
                1 - (c.embedding <=> $1) AS similarity
            FROM chunks c
            WHERE ($2::text = '' OR c.document_id = $2)
        )
        SELECT chunk_id, document_id, chunk_index, filename, content, similarity
        FROM scored_chunks
        ORDER BY similarity DESC
        LIMIT $3`

	documentID := ""
	if filter != nil {
		documentID = filter.DocumentID
	}

	rows, err := x.db.Query(ctx, query, pgvector.NewVector(vector), documentID, topK)
	if err != nil {
		return nil, &ServiceError{Op: "query", Err: err}
	}
	defer rows.Close()

	var matches []qa_types.RetrievalMatch
	for rows.Next() {
		var m qa_types.RetrievalMatch
		if err := rows.Scan(&m.ChunkID, &m.Metadata.DocumentID, &m.Metadata.ChunkIndex,
			&m.Metadata.Filename, &m.Metadata.Text, &m.Similarity); err != nil {
			return nil, &ServiceError{Op: "query scan", Err: err}
		}
		m.Rank = len(matches)
		m.Metadata.ChunkID = m.ChunkID
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, &ServiceError{Op: "query rows", Err: err}
	}
	return matches, nil
}

func (x *PgVectorIndex) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := x.db.Exec(ctx, "DELETE FROM chunks WHERE document_id = $1", documentID); err != nil {
		return &ServiceError{Op: "delete document", Err: err}
	}
	return nil
}

// ReindexIfNeeded keeps an ivfflat index over the embeddings sized to the
// corpus: lists = max(100, sqrt(row count)), rebuilt when the current value
// drifts more than 50% from optimal.
func (x *PgVectorIndex) ReindexIfNeeded(ctx context.Context) error {
	var currentLists int
	err := x.db.QueryRow(ctx, `
        SELECT reloptions[1]::text::int
        FROM pg_class c
        LEFT JOIN pg_index i ON c.oid = i.indexrelid
        WHERE c.relname = 'idx_chunks_embedding'
        AND reloptions IS NOT NULL
    `).Scan(&currentLists)
	if err != nil {
		return x.rebuildIndex(ctx)
	}

	optimal, err := x.optimalLists(ctx)
	if err != nil {
		return err
	}
	if math.Abs(float64(currentLists-optimal)) > float64(optimal)*0.5 {
		x.logger.Info("Rebuilding vector index due to significant size change",
			slog.Int("current_lists", currentLists),
			slog.Int("optimal_lists", optimal))
		return x.rebuildIndex(ctx)
	}
	return nil
}

func (x *PgVectorIndex) rebuildIndex(ctx context.Context) error {
	lists, err := x.optimalLists(ctx)
	if err != nil {
		return err
	}

	if _, err := x.db.Exec(ctx, "DROP INDEX IF EXISTS idx_chunks_embedding"); err != nil {
		return &ServiceError{Op: "drop index", Err: err}
	}

	createIndexSQL := fmt.Sprintf(`
        CREATE INDEX idx_chunks_embedding
        ON chunks
        USING ivfflat (embedding vector_cosine_ops)
        WITH (lists = %d)
    `, lists)
	if _, err := x.db.Exec(ctx, createIndexSQL); err != nil {
		return &ServiceError{Op: "create index", Err: err}
	}

	x.logger.Info("Vector index created", slog.Int("list_count", lists))
	return nil
}

func (x *PgVectorIndex) optimalLists(ctx context.Context) (int, error) {
	var count int
	if err := x.db.QueryRow(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, &ServiceError{Op: "count chunks", Err: err}
	}
	lists := int(math.Sqrt(float64(count)))
	if lists < 100 {
		lists = 100
	}
	return lists, nil
}
