// Package repository provides SQLite persistence for runs, progress events
// and blob payloads.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/framelens/orchestrator/internal/blobstore"
	"github.com/framelens/orchestrator/internal/domain"
)

// SQLiteStore implements run/event persistence and the blob store on SQLite.
type SQLiteStore struct {
	db *sql.DB
}

var _ blobstore.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (and migrates) a SQLite database.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			video_id TEXT NOT NULL,
			state TEXT NOT NULL,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_session ON runs(session_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS events (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			status TEXT NOT NULL,
			stage TEXT,
			thought TEXT,
			answer TEXT,
			confidence REAL,
			message TEXT,
			PRIMARY KEY (run_id, seq),
			FOREIGN KEY (run_id) REFERENCES runs(run_id)
		)`,
		`CREATE TABLE IF NOT EXISTS blobs (
			blob_key TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_blobs_expiry ON blobs(expires_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// CreateRun inserts a new run row.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, session_id, video_id, state, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.RunID, run.SessionID, run.VideoID, string(run.State), run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetRun returns a run by id, or nil when absent.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, session_id, video_id, state, started_at, ended_at, error FROM runs WHERE run_id = ?`,
		runID)

	var run domain.Run
	var state string
	var endedAt sql.NullTime
	var errData sql.NullString
	if err := row.Scan(&run.RunID, &run.SessionID, &run.VideoID, &state, &run.StartedAt, &endedAt, &errData); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.State = domain.RunState(state)
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	if errData.Valid {
		run.Error = []byte(errData.String)
	}
	return &run, nil
}

// UpdateRunState moves a run to a non-terminal state.
func (s *SQLiteStore) UpdateRunState(ctx context.Context, runID string, state domain.RunState) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ? WHERE run_id = ?`, string(state), runID); err != nil {
		return fmt.Errorf("failed to update run state: %w", err)
	}
	return nil
}

// UpdateRunCompleted moves a run to a terminal state with an optional error payload.
func (s *SQLiteStore) UpdateRunCompleted(ctx context.Context, runID string, state domain.RunState, errData []byte) error {
	var errText sql.NullString
	if len(errData) > 0 {
		errText = sql.NullString{String: string(errData), Valid: true}
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, ended_at = ?, error = ? WHERE run_id = ?`,
		string(state), time.Now(), errText, runID); err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// CreateEvent appends a progress event for a run.
func (s *SQLiteStore) CreateEvent(ctx context.Context, event *domain.ProgressEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (run_id, seq, ts, status, stage, thought, answer, confidence, message)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.RunID, event.Seq, event.Ts, string(event.Status), string(event.Stage),
		event.Thought, event.Answer, event.Confidence, event.Message)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// GetEvents returns events for a run with seq > afterSeq, ordered by seq.
func (s *SQLiteStore) GetEvents(ctx context.Context, runID string, afterSeq int64, limit int) ([]domain.ProgressEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, seq, ts, status, stage, thought, answer, confidence, message
		 FROM events WHERE run_id = ? AND seq > ? ORDER BY seq ASC LIMIT ?`,
		runID, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer rows.Close()

	var events []domain.ProgressEvent
	for rows.Next() {
		var ev domain.ProgressEvent
		var status, stage string
		if err := rows.Scan(&ev.RunID, &ev.Seq, &ev.Ts, &status, &stage, &ev.Thought, &ev.Answer, &ev.Confidence, &ev.Message); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Status = domain.EventStatus(status)
		ev.Stage = domain.StageID(stage)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Get implements blobstore.Store. Expired payloads read as not found even
// before the sweeper removes them.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM blobs WHERE blob_key = ?`, key)
	var payload []byte
	var expiresAt int64
	if err := row.Scan(&payload, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, blobstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get blob: %w", err)
	}
	if time.Now().UnixMilli() > expiresAt {
		return nil, blobstore.ErrNotFound
	}
	return payload, nil
}

// Set implements blobstore.Store.
func (s *SQLiteStore) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	expiresAt := time.Now().Add(ttl).UnixMilli()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO blobs (blob_key, payload, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(blob_key) DO UPDATE SET payload = excluded.payload, expires_at = excluded.expires_at`,
		key, data, expiresAt); err != nil {
		return fmt.Errorf("failed to set blob: %w", err)
	}
	return nil
}

// Delete implements blobstore.Store.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM blobs WHERE blob_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// SweepExpiredBlobs removes payloads past their expiry and returns how many
// rows were deleted.
func (s *SQLiteStore) SweepExpiredBlobs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM blobs WHERE expires_at < ?`, time.Now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep blobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
