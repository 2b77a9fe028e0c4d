package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/deepresearch/internal/session"
)

// Store persists run records in Postgres for the long-lived server mode.
// The CLI keeps its JSON session files; this is the durable, queryable copy.
type Store struct {
	db *sql.DB
}

// New opens and pings the database.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRecord inserts one run record under the given session.
func (s *Store) SaveRecord(ctx context.Context, sessionID string, r session.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO research_sessions (id, session_id, query, report_type, report_file, report_path, duration_seconds, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), sessionID, r.Query, r.ReportType, r.ReportFile, r.ReportPath, r.Duration, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting session record: %w", err)
	}
	return nil
}

// ListRecords returns the most recent run records, newest first.
func (s *Store) ListRecords(ctx context.Context, limit int) ([]session.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT query, report_type, report_file, report_path, duration_seconds, created_at
		FROM research_sessions
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying session records: %w", err)
	}
	defer rows.Close()

	var records []session.Record
	for rows.Next() {
		var r session.Record
		var created time.Time
		if err := rows.Scan(&r.Query, &r.ReportType, &r.ReportFile, &r.ReportPath, &r.Duration, &created); err != nil {
			return nil, fmt.Errorf("scanning session record: %w", err)
		}
		r.Timestamp = created
		records = append(records, r)
	}
	return records, rows.Err()
}
