package journal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ABHI-11949/avatar/internal/events"
)

// PostgresStore persists the session journal in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session_events (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			type TEXT NOT NULL,
			detail JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			seq BIGSERIAL
		);`,
		// Tables created before seq existed.
		`ALTER TABLE session_events ADD COLUMN IF NOT EXISTS seq BIGSERIAL;`,
		`CREATE INDEX IF NOT EXISTS idx_session_events_session_order ON session_events (session_id, created_at, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Publish(ctx context.Context, e events.Event) error {
	detail := e.Detail
	if detail == nil {
		detail = map[string]string{}
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("marshal detail: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO session_events (id, session_id, type, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		e.ID,
		e.SessionID,
		string(e.Type),
		raw,
		e.At,
	)
	if err != nil {
		return fmt.Errorf("save session event: %w", err)
	}
	return nil
}

func (s *PostgresStore) History(ctx context.Context, sessionID string, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, type, detail, created_at
		 FROM session_events WHERE session_id=$1 ORDER BY created_at DESC, seq DESC LIMIT $2`,
		sessionID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query session history: %w", err)
	}
	defer rows.Close()

	items := make([]events.Event, 0, limit)
	for rows.Next() {
		var (
			e      events.Event
			typ    string
			detail []byte
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &typ, &detail, &e.At); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		e.Type = events.Type(typ)
		if len(detail) > 0 {
			if err := json.Unmarshal(detail, &e.Detail); err != nil {
				return nil, fmt.Errorf("decode history detail: %w", err)
			}
			if len(e.Detail) == 0 {
				e.Detail = nil
			}
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}

	// Reverse into chronological order; seq breaks created_at ties in insert order.
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}

	return items, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
