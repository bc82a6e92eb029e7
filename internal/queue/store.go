package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"scribe/internal/config"
)

// Store manages the durable job ledger backed by SQLite. The ledger keeps
// the queued backlog across restarts; per-job JSON snapshots remain the
// source of truth for status reads.
type Store struct {
	db   *sql.DB
	path string
}

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database under the jobs directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.JobsDir, "queue.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Insert records a freshly enqueued job.
func (s *Store) Insert(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return errors.New("job with id required")
	}
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	return s.execWithoutResult(ctx,
		`INSERT INTO jobs (id, source_path, remote_uri, origin_url, params_json, status, result_path, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.SourcePath, job.RemoteURI, job.OriginURL, string(params),
		string(job.Status), job.ResultPath, job.ErrorMessage, job.CreatedAt, job.UpdatedAt,
	)
}

// Update persists the current state of a job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return errors.New("job with id required")
	}
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	job.UpdatedAt = time.Now().UTC()
	return s.execWithoutResult(ctx,
		`UPDATE jobs SET source_path = ?, remote_uri = ?, origin_url = ?, params_json = ?,
		 status = ?, result_path = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		job.SourcePath, job.RemoteURI, job.OriginURL, string(params),
		string(job.Status), job.ResultPath, job.ErrorMessage, job.UpdatedAt, job.ID,
	)
}

// GetByID fetches one job, or nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, selectJobSQL+" WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// NextQueued returns the oldest queued job, or nil when none is pending.
func (s *Store) NextQueued(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		selectJobSQL+" WHERE status = ? ORDER BY created_at ASC, id ASC LIMIT 1",
		string(StatusQueued),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// List returns jobs, newest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := selectJobSQL
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, string(status))
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// FailInterrupted marks jobs stuck in processing as failed. Called once at
// startup: status monotonicity forbids returning them to queued, and silent
// re-runs would hide the interruption from the caller.
func (s *Store) FailInterrupted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, result_path = '', updated_at = ? WHERE status = ?`,
		string(StatusError), InterruptedMessage, time.Now().UTC(), string(StatusProcessing),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Health returns aggregate job counts.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT status, COUNT(1) FROM jobs GROUP BY status")
	if err != nil {
		return HealthSummary{}, fmt.Errorf("aggregate jobs: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, err
		}
		summary.Total += count
		switch Status(status) {
		case StatusQueued:
			summary.Queued = count
		case StatusProcessing:
			summary.Processing = count
		case StatusDone:
			summary.Done = count
		case StatusError:
			summary.Error = count
		}
	}
	return summary, rows.Err()
}

const selectJobSQL = `SELECT id, source_path, remote_uri, origin_url, params_json, status, result_path, error_message, created_at, updated_at FROM jobs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var params string
	var status string
	if err := row.Scan(
		&job.ID, &job.SourcePath, &job.RemoteURI, &job.OriginURL, &params,
		&status, &job.ResultPath, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Status = Status(status)
	if params != "" {
		if err := json.Unmarshal([]byte(params), &job.Params); err != nil {
			return nil, fmt.Errorf("unmarshal params for job %s: %w", job.ID, err)
		}
	}
	return &job, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	delay := busyRetryInitialBackoff
	var (
		res     sql.Result
		lastErr error
	)
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		res, lastErr = s.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return res, nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return nil, lastErr
}

func (s *Store) execWithoutResult(ctx context.Context, query string, args ...any) error {
	_, err := s.execWithRetry(ctx, query, args...)
	return err
}
