package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// PgVectorStore persists frame embeddings in Postgres with the pgvector
// extension. One row per frame; upserts overwrite in place.
type PgVectorStore struct {
	conn *pgx.Conn
	dim  int
}

func NewPgVectorStore(ctx context.Context, dbURL string, dim int) (*PgVectorStore, error) {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PgVectorStore{conn: conn, dim: dim}
	if err := s.ensureTable(ctx); err != nil {
		conn.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) Close(ctx context.Context) error { return s.conn.Close(ctx) }

func (s *PgVectorStore) ensureTable(ctx context.Context) error {
	if _, err := s.conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector;"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS frame_embeddings (
			video_id VARCHAR(255) NOT NULL,
			ts FLOAT NOT NULL,
			embedding vector(%d) NOT NULL,
			PRIMARY KEY (video_id, ts)
		);
	`, s.dim)
	if _, err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("create frame_embeddings table: %w", err)
	}
	if _, err := s.conn.Exec(ctx,
		"CREATE INDEX IF NOT EXISTS idx_frame_embeddings_video ON frame_embeddings(video_id);"); err != nil {
		return fmt.Errorf("create video index: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Upsert(ctx context.Context, videoID string, timestamp float64, vec []float32) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO frame_embeddings (video_id, ts, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (video_id, ts)
		DO UPDATE SET embedding = EXCLUDED.embedding
	`, videoID, timestamp, pgvector.NewVector(vec))
	if err != nil {
		return fmt.Errorf("upsert embedding: %w", err)
	}
	return nil
}

func (s *PgVectorStore) Search(ctx context.Context, videoID string, vec []float32, topK int) ([]Hit, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT ts, 1 - (embedding <=> $1) AS similarity
		FROM frame_embeddings
		WHERE video_id = $2
		ORDER BY embedding <=> $1, ts
		LIMIT $3
	`, pgvector.NewVector(vec), videoID, topK)
	if err != nil {
		return nil, fmt.Errorf("search embeddings: %w", err)
	}
	defer rows.Close()
	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.Timestamp, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *PgVectorStore) IndexedTimestamps(ctx context.Context, videoID string) ([]float64, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT ts FROM frame_embeddings WHERE video_id = $1 ORDER BY ts`, videoID)
	if err != nil {
		return nil, fmt.Errorf("query timestamps: %w", err)
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var ts float64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan timestamp: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (s *PgVectorStore) DeleteVideo(ctx context.Context, videoID string) error {
	if _, err := s.conn.Exec(ctx,
		`DELETE FROM frame_embeddings WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("delete video embeddings: %w", err)
	}
	return nil
}
