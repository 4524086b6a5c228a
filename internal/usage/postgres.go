package usage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS usage_log (
	id UUID PRIMARY KEY,
	logged_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	demo_used VARCHAR(400) NOT NULL,
	steps_completed INTEGER NOT NULL DEFAULT 0,
	session_id VARCHAR(255) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_usage_logged_at ON usage_log(logged_at);
`

// PostgresStore keeps every entry in a usage_log table.
type PostgresStore struct {
	conn  *sql.DB
	clock func() time.Time
}

// OpenPostgres connects to dsn, verifies the connection and creates the
// schema when missing.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize usage schema: %w", err)
	}
	return &PostgresStore{conn: conn, clock: time.Now}, nil
}

func (s *PostgresStore) Log(ctx context.Context, e Entry) (Entry, int, error) {
	e, err := Normalize(e, s.clock(), uuid.NewString)
	if err != nil {
		return Entry{}, 0, err
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO usage_log (id, logged_at, demo_used, steps_completed, session_id) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.Timestamp, e.DemoUsed, e.StepsCompleted, e.SessionID)
	if err != nil {
		return Entry{}, 0, fmt.Errorf("insert usage entry: %w", err)
	}
	var total int
	if err := s.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM usage_log`).Scan(&total); err != nil {
		return Entry{}, 0, fmt.Errorf("count usage entries: %w", err)
	}
	return e, total, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var (
		st   Stats
		avg  sql.NullFloat64
		last sql.NullTime
	)
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*), AVG(steps_completed), MAX(logged_at) FROM usage_log`,
	).Scan(&st.TotalSessions, &avg, &last)
	if err != nil {
		return Stats{}, fmt.Errorf("query usage stats: %w", err)
	}
	if avg.Valid {
		st.AverageStepsCompleted = avg.Float64
	}
	if last.Valid {
		t := last.Time.UTC()
		st.LastActivity = &t
	}
	return st, nil
}

func (s *PostgresStore) Close() error {
	return s.conn.Close()
}
