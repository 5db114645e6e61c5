package graphstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres is a durable Graph backed by generic nodes/edges tables plus a
// dedicated states table, since the state machine's query pattern (by
// namespace+type+status, most-recently-updated first) doesn't fit a JSONB
// node scan efficiently.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (g *Postgres) Close() {
	if g.pool != nil {
		g.pool.Close()
	}
}

func (g *Postgres) Init(ctx context.Context) error {
	if g.pool == nil {
		return errors.New("postgres graph requires pool")
	}
	_, err := g.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS nodes (
    id TEXT PRIMARY KEY,
    labels TEXT[] NOT NULL DEFAULT '{}',
    props JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE TABLE IF NOT EXISTS edges (
    id BIGSERIAL PRIMARY KEY,
    source TEXT NOT NULL,
    rel TEXT NOT NULL,
    target TEXT NOT NULL,
    props JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS edges_src_rel ON edges(source, rel);
CREATE INDEX IF NOT EXISTS edges_dst_rel ON edges(target, rel);
CREATE UNIQUE INDEX IF NOT EXISTS edges_src_rel_dst ON edges(source, rel, target);

CREATE TABLE IF NOT EXISTS states (
    state_id      TEXT PRIMARY KEY,
    namespace     TEXT NOT NULL,
    state_type    TEXT NOT NULL,
    description   TEXT NOT NULL,
    status        TEXT NOT NULL,
    visit_count   INTEGER NOT NULL DEFAULT 0,
    last_visited  TIMESTAMPTZ,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS states_ns_type_status_idx ON states(namespace, state_type, status);
`)
	return err
}

func (g *Postgres) UpsertNode(ctx context.Context, id string, labels []string, props map[string]any) error {
	if props == nil {
		props = map[string]any{}
	}
	_, err := g.pool.Exec(ctx, `
INSERT INTO nodes(id, labels, props) VALUES($1,$2,$3)
ON CONFLICT (id) DO UPDATE SET labels=EXCLUDED.labels, props=EXCLUDED.props
`, id, labels, props)
	return err
}

func (g *Postgres) UpsertEdge(ctx context.Context, srcID, rel, dstID string, props map[string]any) error {
	if props == nil {
		props = map[string]any{}
	}
	_, err := g.pool.Exec(ctx, `
INSERT INTO edges(source, rel, target, props) VALUES($1,$2,$3,$4)
ON CONFLICT DO NOTHING
`, srcID, rel, dstID, props)
	return err
}

func (g *Postgres) GetNode(ctx context.Context, id string) (Node, bool, error) {
	row := g.pool.QueryRow(ctx, `SELECT labels, props FROM nodes WHERE id=$1`, id)
	var labels []string
	var props map[string]any
	err := row.Scan(&labels, &props)
	if errors.Is(err, pgx.ErrNoRows) {
		return Node{}, false, nil
	}
	if err != nil {
		return Node{}, false, err
	}
	return Node{ID: id, Labels: labels, Props: props}, true, nil
}

// UpsertState runs the fuzzy-match-then-create-or-transition rule inside a
// transaction: fetch candidates sharing namespace+type, fuzzy-match in Go
// (the same normalizer
// and matcher as Memory, so behavior is identical across backends), then
// insert or transition.
func (g *Postgres) UpsertState(ctx context.Context, candidate State) (State, error) {
	tx, err := g.pool.Begin(ctx)
	if err != nil {
		return State{}, fmt.Errorf("begin upsert state: %w", err)
	}
	defer tx.Rollback(ctx)

	norm := Normalize(candidate.Description)
	now := time.Now()

	rows, err := tx.Query(ctx, `
SELECT state_id, description, status, visit_count
FROM states WHERE namespace=$1 AND state_type=$2 FOR UPDATE`,
		candidate.Namespace, candidate.StateType)
	if err != nil {
		return State{}, fmt.Errorf("query existing states: %w", err)
	}
	type cand struct {
		id, desc, status string
		visits           int
	}
	var existing []cand
	for rows.Next() {
		var c cand
		if err := rows.Scan(&c.id, &c.desc, &c.status, &c.visits); err != nil {
			rows.Close()
			return State{}, err
		}
		existing = append(existing, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return State{}, err
	}

	for _, c := range existing {
		if !FuzzyEqual(c.desc, norm) {
			continue
		}
		newStatus := c.status
		newVisits := c.visits
		if c.status == string(StatusActive) && (candidate.Status == StatusCompleted || candidate.Status == StatusInvalid) {
			newStatus = string(candidate.Status)
			newVisits = 0
		}
		_, err := tx.Exec(ctx, `
UPDATE states SET status=$1, visit_count=$2, updated_at=$3 WHERE state_id=$4`,
			newStatus, newVisits, now, c.id)
		if err != nil {
			return State{}, err
		}
		if err := tx.Commit(ctx); err != nil {
			return State{}, err
		}
		return State{
			StateID: c.id, Namespace: candidate.Namespace, StateType: candidate.StateType,
			Description: c.desc, Status: StateStatus(newStatus), VisitCount: newVisits, UpdatedAt: now,
		}, nil
	}

	id := candidate.StateID
	if id == "" {
		id = uuid.NewString()
	}
	_, err = tx.Exec(ctx, `
INSERT INTO states(state_id, namespace, state_type, description, status, visit_count, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,0,$6,$6)`,
		id, candidate.Namespace, candidate.StateType, norm, candidate.Status, now)
	if err != nil {
		return State{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return State{}, err
	}
	return State{
		StateID: id, Namespace: candidate.Namespace, StateType: candidate.StateType,
		Description: norm, Status: candidate.Status, VisitCount: 0, CreatedAt: now, UpdatedAt: now,
	}, nil
}

func (g *Postgres) QueryStates(ctx context.Context, filter StateFilter) ([]State, error) {
	query := strings.Builder{}
	query.WriteString(`SELECT state_id, namespace, state_type, description, status, visit_count, last_visited, created_at, updated_at FROM states WHERE 1=1`)
	var args []any
	n := 0
	addArg := func(v any) string {
		n++
		args = append(args, v)
		return fmt.Sprintf("$%d", n)
	}
	if filter.Namespace != "" {
		query.WriteString(" AND namespace=" + addArg(filter.Namespace))
	}
	if filter.StateType != "" {
		query.WriteString(" AND state_type=" + addArg(filter.StateType))
	}
	if filter.Status != "" {
		query.WriteString(" AND status=" + addArg(filter.Status))
	}
	query.WriteString(" ORDER BY updated_at DESC")
	if filter.Limit > 0 {
		query.WriteString(" LIMIT " + addArg(filter.Limit))
	}

	rows, err := g.pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []State
	for rows.Next() {
		var s State
		var lastVisited *time.Time
		if err := rows.Scan(&s.StateID, &s.Namespace, &s.StateType, &s.Description, &s.Status, &s.VisitCount, &lastVisited, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		if lastVisited != nil {
			s.LastVisited = *lastVisited
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (g *Postgres) IncrementVisit(ctx context.Context, stateID string) error {
	_, err := g.pool.Exec(ctx, `UPDATE states SET visit_count = visit_count + 1, last_visited = NOW() WHERE state_id=$1`, stateID)
	return err
}

// RelationalSearch matches query, case-insensitively, as a substring of
// edge source, relation and target only, newest edges first. Node
// properties (such as a Chunk node's summary) are not searched, so nodes
// without edges are never returned.
func (g *Postgres) RelationalSearch(ctx context.Context, query string, limit int) ([]Triple, error) {
	like := "%" + strings.ToLower(query) + "%"
	rows, err := g.pool.Query(ctx, `
SELECT source, rel, target
FROM edges
WHERE lower(source) LIKE $1 OR lower(rel) LIKE $1 OR lower(target) LIKE $1
ORDER BY id DESC
LIMIT $2`, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Triple
	for rows.Next() {
		var src, rel, dst string
		if err := rows.Scan(&src, &rel, &dst); err != nil {
			return nil, err
		}
		out = append(out, Triple{Text: fmt.Sprintf("(%s)-[:%s]->(%s)", src, rel, dst)})
	}
	return out, rows.Err()
}
