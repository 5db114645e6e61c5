package chunkstore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a durable Store backed by a single "chunks" table, with its
// schema created by Init.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an already-connected pool. Call Init once before use.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Postgres) Init(ctx context.Context) error {
	if s.pool == nil {
		return errors.New("postgres chunk store requires pool")
	}
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS chunks (
    chunk_id      TEXT PRIMARY KEY,
    session_id    TEXT NOT NULL,
    full_text     TEXT NOT NULL,
    summary       TEXT NOT NULL DEFAULT '',
    token_count   INTEGER NOT NULL DEFAULT 0,
    message_count INTEGER NOT NULL DEFAULT 0,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS chunks_session_created_idx ON chunks(session_id, created_at DESC);
CREATE INDEX IF NOT EXISTS chunks_created_idx ON chunks(created_at DESC);
`)
	return err
}

func (s *Postgres) Put(ctx context.Context, c Chunk) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO chunks (chunk_id, session_id, full_text, summary, token_count, message_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (chunk_id) DO UPDATE SET
    full_text     = EXCLUDED.full_text,
    summary       = EXCLUDED.summary,
    token_count   = EXCLUDED.token_count,
    message_count = EXCLUDED.message_count
`, c.ChunkID, c.SessionID, c.FullText, c.Summary, c.TokenCount, c.MessageCount, c.CreatedAt)
	return err
}

func (s *Postgres) Get(ctx context.Context, chunkID string) (Chunk, bool, error) {
	var c Chunk
	row := s.pool.QueryRow(ctx, `
SELECT chunk_id, session_id, full_text, summary, token_count, message_count, created_at
FROM chunks WHERE chunk_id = $1`, chunkID)
	err := row.Scan(&c.ChunkID, &c.SessionID, &c.FullText, &c.Summary, &c.TokenCount, &c.MessageCount, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Chunk{}, false, nil
	}
	if err != nil {
		return Chunk{}, false, err
	}
	return c, true, nil
}

func (s *Postgres) GetSummaries(ctx context.Context, chunkIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(chunkIDs))
	if len(chunkIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT chunk_id, summary FROM chunks WHERE chunk_id = ANY($1)`, chunkIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, summary string
		if err := rows.Scan(&id, &summary); err != nil {
			return nil, err
		}
		out[id] = summary
	}
	return out, rows.Err()
}

func (s *Postgres) ListByCreatedAt(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT chunk_id FROM chunks ORDER BY created_at DESC`
	var rows pgx.Rows
	var err error
	if limit > 0 {
		query += ` LIMIT $1`
		rows, err = s.pool.Query(ctx, query, limit)
	} else {
		rows, err = s.pool.Query(ctx, query)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
