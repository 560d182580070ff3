// Package journal persists per-request history in SQLite so completed
// and failed acquisitions can be inspected after the fact.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when schema.sql changes; mismatched databases
// must be cleared rather than migrated in place.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different
// journal version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrNotFound indicates no journal row exists for the request ID.
var ErrNotFound = errors.New("request not found")

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("journal: database path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("journal: create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("journal: apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("journal: check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("journal: read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the journal database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("journal: begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("journal: create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("journal: record schema version: %w", err)
	}
	return tx.Commit()
}

// Record inserts a new row in the received state.
func (s *Store) Record(ctx context.Context, requestID, identity, url string) (*Request, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO requests (request_id, identity, url, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		requestID, identity, url, StatusReceived, timestamp, timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("journal: insert request: %w", err)
	}
	return s.Get(ctx, requestID)
}

// UpdateStatus moves the request to a non-terminal status.
func (s *Store) UpdateStatus(ctx context.Context, requestID string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("journal: unknown status %q", status)
	}
	return s.update(ctx, requestID,
		"UPDATE requests SET status = ?, updated_at = ? WHERE request_id = ?",
		status, nowStamp(), requestID)
}

// SetTrack records the resolved track on the request.
func (s *Store) SetTrack(ctx context.Context, requestID, platform, trackID, title, artist string) error {
	return s.update(ctx, requestID,
		`UPDATE requests SET platform = ?, track_id = ?, track_title = ?, track_artist = ?, updated_at = ?
         WHERE request_id = ?`,
		platform, trackID, nullableString(title), nullableString(artist), nowStamp(), requestID)
}

// MarkDone records a successful completion.
func (s *Store) MarkDone(ctx context.Context, requestID, filePath string, sizeBytes int64, fromCache bool) error {
	stamp := nowStamp()
	return s.update(ctx, requestID,
		`UPDATE requests SET status = ?, file_path = ?, size_bytes = ?, from_cache = ?,
         error_kind = NULL, error_message = NULL, updated_at = ?, completed_at = ?
         WHERE request_id = ?`,
		StatusCompleted, filePath, sizeBytes, boolInt(fromCache), stamp, stamp, requestID)
}

// MarkFailed records a terminal failure with its error classification.
func (s *Store) MarkFailed(ctx context.Context, requestID, kind, message string) error {
	stamp := nowStamp()
	return s.update(ctx, requestID,
		`UPDATE requests SET status = ?, error_kind = ?, error_message = ?, updated_at = ?, completed_at = ?
         WHERE request_id = ?`,
		StatusFailed, kind, message, stamp, stamp, requestID)
}

func (s *Store) update(ctx context.Context, requestID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("journal: update request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("journal: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("journal: %w: %s", ErrNotFound, requestID)
	}
	return nil
}

const selectColumns = `id, request_id, identity, url, platform, track_id, track_title, track_artist,
    status, error_kind, error_message, file_path, size_bytes, from_cache, created_at, updated_at, completed_at`

// Get fetches a single request by its public ID.
func (s *Store) Get(ctx context.Context, requestID string) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM requests WHERE request_id = ?", requestID)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("journal: %w: %s", ErrNotFound, requestID)
	}
	return req, err
}

// Recent returns the newest requests, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]*Request, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+selectColumns+" FROM requests ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query recent: %w", err)
	}
	defer rows.Close()

	var requests []*Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// Stats aggregates request counters.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx, `
        SELECT COUNT(*),
               COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN from_cache = 1 THEN 1 ELSE 0 END), 0)
        FROM requests`, StatusCompleted, StatusFailed,
	).Scan(&stats.Total, &stats.Completed, &stats.Failed, &stats.CacheHits)
	if err != nil {
		return Stats{}, fmt.Errorf("journal: aggregate stats: %w", err)
	}
	return stats, nil
}

// Health verifies the database answers queries.
func (s *Store) Health(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("journal: health probe: %w", err)
	}
	return nil
}

func scanRequest(scanner interface{ Scan(dest ...any) error }) (*Request, error) {
	var (
		req          Request
		platform     sql.NullString
		trackID      sql.NullString
		trackTitle   sql.NullString
		trackArtist  sql.NullString
		statusStr    string
		errorKind    sql.NullString
		errorMessage sql.NullString
		filePath     sql.NullString
		fromCache    int
		createdAt    string
		updatedAt    string
		completedAt  sql.NullString
	)
	err := scanner.Scan(
		&req.ID, &req.RequestID, &req.Identity, &req.URL,
		&platform, &trackID, &trackTitle, &trackArtist,
		&statusStr, &errorKind, &errorMessage, &filePath,
		&req.SizeBytes, &fromCache, &createdAt, &updatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Platform = platform.String
	req.TrackID = trackID.String
	req.TrackTitle = trackTitle.String
	req.TrackArtist = trackArtist.String
	req.Status = Status(statusStr)
	req.ErrorKind = errorKind.String
	req.ErrorMessage = errorMessage.String
	req.FilePath = filePath.String
	req.FromCache = fromCache != 0
	req.CreatedAt = parseStamp(createdAt)
	req.UpdatedAt = parseStamp(updatedAt)
	if completedAt.Valid {
		ts := parseStamp(completedAt.String)
		req.CompletedAt = &ts
	}
	return &req, nil
}

func parseStamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
