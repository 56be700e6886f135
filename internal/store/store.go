package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/docchat/docchat/pkg/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Store provides methods to interact with the database.
type Store struct {
	pool *pgxpool.Pool
}

// DocumentStore defines the methods that the Store must implement.
type DocumentStore interface {
	Migrate(ctx context.Context, embedDim int) error
	CreateDocument(ctx context.Context, d models.Document) error
	ReplaceDocumentByFilename(ctx context.Context, d models.Document) error
	DeleteDocument(ctx context.Context, id string) (bool, error)
	GetDocument(ctx context.Context, id string) (models.Document, bool, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	InsertChunks(ctx context.Context, chunks []models.Chunk, vecs [][]float32) error
	Nearest(ctx context.Context, vec []float32, k int, opt QueryOpts) ([]models.ScoredChunk, error)
	GetRange(ctx context.Context, documentID string, lo, hi int) ([]models.Chunk, error)
	Ping(ctx context.Context) error
}

// New creates a new Store instance connected to the given database URL.
func New(ctx context.Context, url string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, err
	}
	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p}, nil
}

func (s *Store) Close() { s.pool.Close() }

// Migrate applies necessary database migrations and schema setup.
func (s *Store) Migrate(ctx context.Context, embedDim int) error {
	q := `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
  id          TEXT PRIMARY KEY,
  filename    TEXT NOT NULL UNIQUE,
  format      TEXT NOT NULL,
  ingested_at TIMESTAMP WITH TIME ZONE DEFAULT now()
);

CREATE TABLE IF NOT EXISTS chunks (
  id          TEXT PRIMARY KEY,
  document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
  seq         INT NOT NULL,
  content     TEXT NOT NULL,
  token_count INT NOT NULL DEFAULT 0,
  embedding   vector(%d),
  created_at  TIMESTAMP WITH TIME ZONE DEFAULT now(),
  ts_content  tsvector GENERATED ALWAYS AS (
    to_tsvector('english', coalesce(content,''))
  ) STORED
);

CREATE UNIQUE INDEX IF NOT EXISTS chunks_document_seq_uidx
  ON chunks (document_id, seq);

CREATE INDEX IF NOT EXISTS chunks_document_idx
  ON chunks (document_id);

CREATE INDEX IF NOT EXISTS chunks_ts_content_gin
  ON chunks USING GIN (ts_content);

CREATE INDEX IF NOT EXISTS chunks_embedding_idx
  ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);
`
	_, err := s.pool.Exec(ctx, fmt.Sprintf(q, embedDim))
	return err
}

// CreateDocument inserts a new document row. A duplicate filename is an error;
// use ReplaceDocumentByFilename for upsert semantics.
func (s *Store) CreateDocument(ctx context.Context, d models.Document) error {
	const q = `
		INSERT INTO documents (id, filename, format, ingested_at)
		VALUES ($1, $2, $3, now())`
	_, err := s.pool.Exec(ctx, q, d.ID, d.Filename, d.Format)
	return err
}

// ReplaceDocumentByFilename removes any previous document with the same
// filename (its chunks cascade away) and inserts the new row, atomically.
func (s *Store) ReplaceDocumentByFilename(ctx context.Context, d models.Document) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM documents WHERE filename = $1 AND id <> $2`, d.Filename, d.ID); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO documents (id, filename, format, ingested_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (id) DO UPDATE SET
				filename    = EXCLUDED.filename,
				format      = EXCLUDED.format,
				ingested_at = now()`,
			d.ID, d.Filename, d.Format)
		return err
	})
}

// DeleteDocument removes a document and, via cascade, all its chunks.
// Returns false when no document with that id exists.
func (s *Store) DeleteDocument(ctx context.Context, id string) (bool, error) {
	ct, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

// GetDocument retrieves a document by id, with its chunk count.
func (s *Store) GetDocument(ctx context.Context, id string) (models.Document, bool, error) {
	const q = `
		SELECT d.id, d.filename, d.format, d.ingested_at,
		       (SELECT count(*) FROM chunks c WHERE c.document_id = d.id)
		FROM documents d
		WHERE d.id = $1`
	var d models.Document
	err := s.pool.QueryRow(ctx, q, id).
		Scan(&d.ID, &d.Filename, &d.Format, &d.IngestedAt, &d.ChunkCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Document{}, false, nil
		}
		return models.Document{}, false, err
	}
	return d, true, nil
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]models.Document, error) {
	const q = `
		SELECT d.id, d.filename, d.format, d.ingested_at, count(c.id)
		FROM documents d
		LEFT JOIN chunks c ON c.document_id = d.id
		GROUP BY d.id, d.filename, d.format, d.ingested_at
		ORDER BY d.ingested_at DESC, d.filename`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.Format, &d.IngestedAt, &d.ChunkCount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// InsertChunks writes a document's chunks with their embeddings in one batch.
// chunks and vecs must be the same length; vecs[i] may be nil for a chunk
// whose embedding is still pending.
func (s *Store) InsertChunks(ctx context.Context, chunks []models.Chunk, vecs [][]float32) error {
	if len(chunks) != len(vecs) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vecs))
	}
	if len(chunks) == 0 {
		return nil
	}

	const q = `
		INSERT INTO chunks (id, document_id, seq, content, token_count, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (document_id, seq) DO UPDATE SET
			id          = EXCLUDED.id,
			content     = EXCLUDED.content,
			token_count = EXCLUDED.token_count,
			embedding   = COALESCE(EXCLUDED.embedding, chunks.embedding),
			created_at  = chunks.created_at`

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for i, c := range chunks {
			var ev any
			if vecs[i] != nil {
				ev = pgvector.NewVector(vecs[i])
			} else {
				ev = (*pgvector.Vector)(nil)
			}
			b.Queue(q, c.ID, c.DocumentID, c.Seq, c.Content, c.TokenCount, ev)
		}
		br := tx.SendBatch(ctx, b)
		defer br.Close()
		for range chunks {
			if _, err := br.Exec(); err != nil {
				return err
			}
		}
		return br.Close()
	})
}

// QueryOpts narrows and tunes a Nearest search.
type QueryOpts struct {
	DocumentID string // optional: restrict to a single document
	QueryText  string // when set, blend a lexical ts_rank signal into the score
}

// Nearest returns the k chunks most similar to vec, highest score first.
// Score is cosine similarity in [0,1]; with QueryText set it is a normalized
// blend of 0.85 semantic and 0.15 lexical rank.
func (s *Store) Nearest(ctx context.Context, vec []float32, k int, opt QueryOpts) ([]models.ScoredChunk, error) {
	qv := pgvector.NewVector(vec)

	args := []any{qv}
	ai := 2
	where := "c.embedding IS NOT NULL"
	qtext := strings.TrimSpace(opt.QueryText)
	if qtext != "" {
		args = append(args, qtext)
		ai++
	}
	if opt.DocumentID != "" {
		where += fmt.Sprintf(" AND c.document_id = $%d", ai)
		args = append(args, opt.DocumentID)
	}

	var q string
	if qtext == "" {
		q = fmt.Sprintf(`
SELECT c.id, c.document_id, c.seq, c.content, c.token_count, c.created_at,
       d.filename,
       1.0 - (c.embedding <=> $1) AS score
FROM chunks c
JOIN documents d ON d.id = c.document_id
WHERE %s
ORDER BY c.embedding <=> $1
LIMIT %d;
`, where, k)
	} else {
		q = fmt.Sprintf(`
WITH cand AS (
  SELECT
    c.id, c.document_id, c.seq, c.content, c.token_count, c.created_at,
    d.filename,
    LEAST(GREATEST(1.0 - (c.embedding <=> $1), 0), 1) AS sem_sim,
    LEAST(GREATEST(ts_rank_cd(c.ts_content, plainto_tsquery('english', $2)), 0), 1) AS lex_sim
  FROM chunks c
  JOIN documents d ON d.id = c.document_id
  WHERE %s
),
ranked AS (
  SELECT *,
         MAX(sem_sim) OVER() AS max_sem,
         MAX(lex_sim) OVER() AS max_lex
  FROM cand
)
SELECT
  id, document_id, seq, content, token_count, created_at, filename,
  (
      0.85 * COALESCE(sem_sim / NULLIF(max_sem,0), 0) +
      0.15 * COALESCE(lex_sim / NULLIF(max_lex,0), 0)
  ) AS score
FROM ranked
ORDER BY score DESC
LIMIT %d;
`, where, k)
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ScoredChunk
	for rows.Next() {
		var c models.Chunk
		var filename string
		var score float64
		if err := rows.Scan(
			&c.ID, &c.DocumentID, &c.Seq, &c.Content, &c.TokenCount, &c.CreatedAt,
			&filename, &score,
		); err != nil {
			return nil, err
		}
		out = append(out, models.ScoredChunk{Chunk: c, Filename: filename, Score: score})
	}
	return out, rows.Err()
}

// GetRange returns the chunks of one document with seq in [lo, hi], ascending.
// lo is clamped at 0; rows that do not exist are simply absent from the result.
func (s *Store) GetRange(ctx context.Context, documentID string, lo, hi int) ([]models.Chunk, error) {
	if lo < 0 {
		lo = 0
	}
	if hi < lo {
		return nil, nil
	}

	const q = `
		SELECT id, document_id, seq, content, token_count, created_at
		FROM chunks
		WHERE document_id = $1 AND seq BETWEEN $2 AND $3
		ORDER BY seq`
	rows, err := s.pool.Query(ctx, q, documentID, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Chunk
	for rows.Next() {
		var c models.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Seq, &c.Content, &c.TokenCount, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Ping checks the database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return s.pool.Ping(ctx)
}
