package prefetch

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"vjcap/internal/config"
	"vjcap/internal/media"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale journals are cheap to rebuild, so mismatches just error.
const schemaVersion = 1

// ErrSchemaMismatch indicates the journal schema version is not the one
// this binary expects.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Status is the lifecycle of one warm job.
type Status string

const (
	StatusPending Status = "pending"
	StatusWorking Status = "working"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Job is one signature's warm state as journaled.
type Job struct {
	ID        int64
	Signature media.TrackSignature
	Status    Status
	Attempts  int
	ClipDir   string
	ClipCount int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store journals prefetch jobs in SQLite so warmed clips survive restarts
// and in-flight work is never double-scheduled.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore initializes or connects to the prefetch journal.
func OpenStore(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return openStoreAt(filepath.Join(cfg.Paths.StateDir, "prefetch.db"))
}

func openStoreAt(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
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

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("%w: journal has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the journal location.
func (s *Store) Path() string {
	return s.path
}

// Enqueue journals a signature for warming. Scheduling is idempotent by
// signature: pending, working, and ready rows are left alone; an errored
// row is reset to pending so the next metadata pass retries it. The return
// reports whether new work was scheduled.
func (s *Store) Enqueue(ctx context.Context, sig media.TrackSignature) (bool, error) {
	if sig.IsZero() {
		return false, nil
	}
	now := timestamp()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO prefetch_jobs (sig_key, artist, title, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)
         ON CONFLICT(sig_key) DO UPDATE SET
             status = ?, attempts = 0, error_message = NULL, updated_at = ?
         WHERE prefetch_jobs.status = ?`,
		sig.Key(), sig.Artist, sig.Title, StatusPending, now, now,
		StatusPending, now,
		StatusError,
	)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", sig, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("enqueue rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClaimPending atomically moves the oldest pending job to working and
// returns it. A nil job means the queue is drained.
func (s *Store) ClaimPending(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE prefetch_jobs
         SET status = ?, updated_at = ?
         WHERE id = (SELECT id FROM prefetch_jobs WHERE status = ? ORDER BY id LIMIT 1)
         RETURNING id, sig_key, artist, title, status, attempts, clip_dir, clip_count, error_message, created_at, updated_at`,
		StatusWorking, timestamp(), StatusPending,
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending: %w", err)
	}
	return job, nil
}

// MarkReady records a successful warm.
func (s *Store) MarkReady(ctx context.Context, id int64, clipDir string, clipCount int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE prefetch_jobs
         SET status = ?, clip_dir = ?, clip_count = ?, error_message = NULL, updated_at = ?
         WHERE id = ?`,
		StatusReady, clipDir, clipCount, timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	return nil
}

// MarkError records a permanently failed warm. The row stays until a later
// Enqueue for the same signature resets it.
func (s *Store) MarkError(ctx context.Context, id int64, attempts int, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE prefetch_jobs
         SET status = ?, attempts = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		StatusError, attempts, strings.TrimSpace(message), timestamp(), id,
	)
	if err != nil {
		return fmt.Errorf("mark error: %w", err)
	}
	return nil
}

// ResetStale returns crashed-over working rows to pending. Called once at
// startup before workers launch.
func (s *Store) ResetStale(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE prefetch_jobs SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending, timestamp(), StatusWorking,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stale rows affected: %w", err)
	}
	return n, nil
}

// Lookup returns the journaled job for a signature, or nil when the
// signature was never scheduled. It never blocks on in-flight work.
func (s *Store) Lookup(ctx context.Context, sig media.TrackSignature) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sig_key, artist, title, status, attempts, clip_dir, clip_count, error_message, created_at, updated_at
         FROM prefetch_jobs WHERE sig_key = ?`,
		sig.Key(),
	)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", sig, err)
	}
	return job, nil
}

// List returns all journaled jobs, newest first.
func (s *Store) List(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sig_key, artist, title, status, attempts, clip_dir, clip_count, error_message, created_at, updated_at
         FROM prefetch_jobs ORDER BY updated_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// CountByStatus reports queue depth per status.
func (s *Store) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM prefetch_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// DeleteOlderThan drops terminal rows not touched since cutoff, returning
// their clip directories so the caller can remove the files.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`DELETE FROM prefetch_jobs
         WHERE status IN (?, ?) AND updated_at < ?
         RETURNING clip_dir`,
		StatusReady, StatusError, cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("delete old jobs: %w", err)
	}
	defer rows.Close()

	var dirs []string
	for rows.Next() {
		var dir sql.NullString
		if err := rows.Scan(&dir); err != nil {
			return nil, fmt.Errorf("scan clip dir: %w", err)
		}
		if dir.Valid && dir.String != "" {
			dirs = append(dirs, dir.String)
		}
	}
	return dirs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job       Job
		sigKey    string
		clipDir   sql.NullString
		lastError sql.NullString
		createdAt string
		updatedAt string
	)
	err := row.Scan(&job.ID, &sigKey, &job.Signature.Artist, &job.Signature.Title,
		&job.Status, &job.Attempts, &clipDir, &job.ClipCount, &lastError, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	job.ClipDir = clipDir.String
	job.LastError = lastError.String
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &job, nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
