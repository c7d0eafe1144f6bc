package rag

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"support_worker/core/port/out"
)

// SchemaSQL creates the knowledge table used by the pgvector backend.
const SchemaSQL = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS knowledge_documents (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	chunk      INT NOT NULL,
	content    TEXT NOT NULL,
	tags       TEXT[] NOT NULL DEFAULT '{}',
	embedding  vector NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS knowledge_documents_source_idx ON knowledge_documents (source);
`

// VectorStore searches knowledge chunks stored in PostgreSQL with pgvector.
type VectorStore struct {
	db *pgxpool.Pool
}

func NewVectorStore(db *pgxpool.Pool) *VectorStore {
	return &VectorStore{db: db}
}

// EnsureSchema creates the knowledge table if it is missing.
func (s *VectorStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, SchemaSQL)
	return err
}

// Search performs cosine similarity search over knowledge chunks.
func (s *VectorStore) Search(ctx context.Context, embedding []float32, topK int, minScore float64) ([]out.VectorSearchResult, error) {
	if topK <= 0 {
		topK = 3
	}

	query := `
		SELECT id, 1 - (embedding <=> $1::vector) AS score, source, content
		FROM knowledge_documents
	`
	if minScore > 0 {
		query += ` WHERE 1 - (embedding <=> $1::vector) >= ` + strconv.FormatFloat(minScore, 'f', 2, 64)
	}
	query += ` ORDER BY embedding <=> $1::vector LIMIT $2`

	rows, err := s.db.Query(ctx, query, pgVector(embedding), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []out.VectorSearchResult
	for rows.Next() {
		var r out.VectorSearchResult
		if err := rows.Scan(&r.ID, &r.Score, &r.Source, &r.Content); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// pgVector converts float32 slice to pgvector format string
func pgVector(v []float32) string {
	if len(v) == 0 {
		return "[0]"
	}

	buf := make([]byte, 0, len(v)*13+2)
	buf = append(buf, '[')

	for i, f := range v {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = strconv.AppendFloat(buf, float64(f), 'f', 6, 32)
	}

	buf = append(buf, ']')
	return string(buf)
}
