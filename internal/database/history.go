package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/canvasmirror/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "history.db"

var (
	// ErrRunNotFound is returned when no run matches an ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRunID is returned when an ID prefix matches several runs.
	ErrAmbiguousRunID = errors.New("run ID prefix matches more than one run")
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// HistoryDB stores finished runs and their per-file outcomes.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("no sync history at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw&_pragma=foreign_keys(1)"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	-- One row per finished run
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		canvas_url TEXT NOT NULL,
		destination TEXT NOT NULL,
		courses INTEGER NOT NULL DEFAULT 0,
		planned INTEGER NOT NULL DEFAULT 0,
		planned_bytes INTEGER NOT NULL DEFAULT 0,
		succeeded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		downloaded_bytes INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per attempted download
	CREATE TABLE IF NOT EXISTS synced_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		bytes INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_files_run ON synced_files(run_id);
	CREATE INDEX IF NOT EXISTS idx_files_path ON synced_files(path);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores report and its download results in one transaction.
// A report without a RunID is given one.
func (h *HistoryDB) SaveRun(ctx context.Context, report *model.SyncReport) error {
	if report.RunID == "" {
		report.RunID = NewRunID()
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, started_at, finished_at, canvas_url, destination, courses,
		planned, planned_bytes, succeeded, failed, downloaded_bytes, cancelled, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.RunID,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		report.CanvasURL,
		report.Destination,
		len(report.Courses),
		len(report.Planned),
		report.PlannedBytes(),
		report.Succeeded(),
		report.Failed(),
		report.DownloadedBytes(),
		report.Cancelled,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO synced_files (run_id, url, path, bytes, duration_ms, error)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare file insert: %w", err)
	}
	defer stmt.Close()

	for _, res := range report.Results {
		if _, err := stmt.ExecContext(ctx,
			report.RunID, res.URL, res.Path, res.Bytes, res.Duration.Milliseconds(), res.Error,
		); err != nil {
			return fmt.Errorf("failed to insert file %s: %w", res.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RunSummary is the listing view of a stored run.
type RunSummary struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	CanvasURL       string    `json:"canvas_url"`
	Destination     string    `json:"destination"`
	Courses         int       `json:"courses"`
	Planned         int       `json:"planned"`
	PlannedBytes    int64     `json:"planned_bytes"`
	Succeeded       int       `json:"succeeded"`
	Failed          int       `json:"failed"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	Cancelled       bool      `json:"cancelled"`
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, started_at, finished_at, canvas_url, destination, courses,
		planned, planned_bytes, succeeded, failed, downloaded_bytes, cancelled
	FROM runs
	ORDER BY started_at DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			run               RunSummary
			started, finished string
		)
		if err := rows.Scan(
			&run.ID,
			&started,
			&finished,
			&run.CanvasURL,
			&run.Destination,
			&run.Courses,
			&run.Planned,
			&run.PlannedBytes,
			&run.Succeeded,
			&run.Failed,
			&run.DownloadedBytes,
			&run.Cancelled,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.StartedAt = parseTimestamp(started)
		run.FinishedAt = parseTimestamp(finished)
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// ResolveRunID expands a full ID or unique prefix to the stored run ID.
func (h *HistoryDB) ResolveRunID(ctx context.Context, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", ErrRunNotFound
	}

	rows, err := h.db.QueryContext(ctx,
		`SELECT id FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("failed to look up run: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousRunID, prefix)
	}
}

// GetRun returns the stored report of the run with the given ID or prefix.
func (h *HistoryDB) GetRun(ctx context.Context, id string) (*model.SyncReport, error) {
	id, err := h.ResolveRunID(ctx, id)
	if err != nil {
		return nil, err
	}

	var reportJSON string
	err = h.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var report model.SyncReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// FileRecord is one attempted download.
type FileRecord struct {
	RunID    string        `json:"run_id"`
	URL      string        `json:"url"`
	Path     string        `json:"path"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// OK reports whether the download succeeded.
func (f FileRecord) OK() bool {
	return f.Error == ""
}

// RunFiles returns the downloads of one run in the order they finished.
func (h *HistoryDB) RunFiles(ctx context.Context, id string) ([]FileRecord, error) {
	id, err := h.ResolveRunID(ctx, id)
	if err != nil {
		return nil, err
	}
	return h.queryFiles(ctx, `
	SELECT run_id, url, path, bytes, duration_ms, error
	FROM synced_files
	WHERE run_id = ?
	ORDER BY id
	`, id)
}

// FileHistory returns every recorded download of path, newest first.
func (h *HistoryDB) FileHistory(ctx context.Context, path string) ([]FileRecord, error) {
	return h.queryFiles(ctx, `
	SELECT f.run_id, f.url, f.path, f.bytes, f.duration_ms, f.error
	FROM synced_files f
	JOIN runs r ON r.id = f.run_id
	WHERE f.path = ?
	ORDER BY r.started_at DESC, f.id DESC
	`, path)
}

func (h *HistoryDB) queryFiles(ctx context.Context, query string, args ...any) ([]FileRecord, error) {
	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var (
			f  FileRecord
			ms int64
		)
		if err := rows.Scan(&f.RunID, &f.URL, &f.Path, &f.Bytes, &ms, &f.Error); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		f.Duration = time.Duration(ms) * time.Millisecond
		files = append(files, f)
	}
	return files, rows.Err()
}

// DeleteRun removes a run and its file records.
func (h *HistoryDB) DeleteRun(ctx context.Context, id string) error {
	id, err := h.ResolveRunID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := h.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// storedTimeFormat is RFC 3339 with a fixed-width fraction, so stored
// values sort lexically in time order.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// formatTimestamp renders t in UTC with storedTimeFormat.
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimeFormat)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
