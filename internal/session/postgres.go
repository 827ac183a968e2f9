package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists session state as JSONB with a version column for
// optimistic concurrency.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings, and ensures the sessions table exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &PostgresStore{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS honeypot_sessions (
			session_id       text PRIMARY KEY,
			state            jsonb NOT NULL,
			version          bigint NOT NULL DEFAULT 1,
			last_activity_at timestamptz NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, sessionID string) (*State, error) {
	var raw []byte
	var version int64
	err := s.pool.QueryRow(ctx, `
		SELECT state, version FROM honeypot_sessions WHERE session_id = $1`,
		sessionID,
	).Scan(&raw, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select session: %w", err)
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	st.Version = version
	return &st, nil
}

func (s *PostgresStore) Put(ctx context.Context, st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	var version int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO honeypot_sessions (session_id, state, version, last_activity_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (session_id) DO UPDATE
			SET state = EXCLUDED.state,
			    version = honeypot_sessions.version + 1,
			    last_activity_at = EXCLUDED.last_activity_at
		RETURNING version`,
		st.SessionID, raw, st.LastActivityAt.UTC(),
	).Scan(&version)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	st.Version = version
	return nil
}

func (s *PostgresStore) CompareAndSet(ctx context.Context, st *State) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}

	if st.Version == 0 {
		tag, err := s.pool.Exec(ctx, `
			INSERT INTO honeypot_sessions (session_id, state, version, last_activity_at)
			VALUES ($1, $2, 1, $3)
			ON CONFLICT (session_id) DO NOTHING`,
			st.SessionID, raw, st.LastActivityAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		st.Version = 1
		return nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE honeypot_sessions
		SET state = $2, version = version + 1, last_activity_at = $3
		WHERE session_id = $1 AND version = $4`,
		st.SessionID, raw, st.LastActivityAt.UTC(), st.Version,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	st.Version++
	return nil
}

func (s *PostgresStore) Expire(ctx context.Context, ttl time.Duration) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM honeypot_sessions WHERE last_activity_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(ttl.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}
