package blogsync

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested ledger record does not exist.
var ErrNotFound = sql.ErrNoRows

// ledgerTimeFormat is fixed width so stored timestamps sort as text.
const ledgerTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Run kinds recorded in the ledger.
const (
	RunKindSync  = "sync"
	RunKindCheck = "check"
)

// Ledger is a SQLite record of sync runs, uploaded objects and check
// results. It is optional; a run without a ledger keeps only its
// in-memory RunContext.
type Ledger struct {
	db *sql.DB
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	DryRun     bool            `json:"dryRun"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
	Summary    json.RawMessage `json:"summary,omitempty"`
}

// UploadRecord is one row of the uploads table.
type UploadRecord struct {
	Key         UploadKey `json:"key"`
	URL         string    `json:"url"`
	Slug        string    `json:"slug"`
	ContentType string    `json:"contentType"`
	Bytes       int       `json:"bytes"`
	RunID       string    `json:"runId"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

// NewLedger opens (or creates) the SQLite database at path, ensures the
// directory exists, and runs schema migrations.
func NewLedger(path string) (*Ledger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL lets the serve command read while a sync writes; the busy timeout
	// makes writers wait instead of failing with SQLITE_BUSY.
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA busy_timeout=5000;
		PRAGMA synchronous=NORMAL;
		PRAGMA foreign_keys=ON;
	`); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	l := &Ledger{db: db}
	if err := l.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) ensureSchema() error {
	_, err := l.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    dry_run INTEGER NOT NULL DEFAULT 0,
    started_at TEXT NOT NULL,
    finished_at TEXT,
    summary TEXT
);
CREATE TABLE IF NOT EXISTS uploads (
    key TEXT PRIMARY KEY,
    url TEXT NOT NULL,
    slug TEXT NOT NULL,
    content_type TEXT NOT NULL,
    bytes INTEGER NOT NULL,
    run_id TEXT NOT NULL,
    uploaded_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS checks (
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    locator TEXT NOT NULL,
    class TEXT NOT NULL,
    target TEXT NOT NULL,
    success INTEGER NOT NULL,
    status INTEGER NOT NULL DEFAULT 0,
    size INTEGER NOT NULL DEFAULT 0,
    content_type TEXT NOT NULL DEFAULT '',
    error_class TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    used_in TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (run_id, locator)
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(kind, started_at DESC);
`)
	return err
}

// BeginRun inserts a run row.
func (l *Ledger) BeginRun(ctx context.Context, id, kind string, dryRun bool, startedAt time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, dry_run, started_at) VALUES (?, ?, ?, ?)`,
		id, kind, boolInt(dryRun), startedAt.UTC().Format(ledgerTimeFormat))
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// FinishRun stamps a run as finished and stores its JSON summary.
func (l *Ledger) FinishRun(ctx context.Context, id string, finishedAt time.Time, summary any) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode run summary: %w", err)
	}
	_, err = l.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, summary = ? WHERE id = ?`,
		finishedAt.UTC().Format(ledgerTimeFormat), string(data), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordUpload upserts the object stored under key.
func (l *Ledger) RecordUpload(ctx context.Context, runID, slug string, key UploadKey, url, contentType string, size int) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO uploads (key, url, slug, content_type, bytes, run_id, uploaded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(key), url, slug, contentType, size, runID, time.Now().UTC().Format(ledgerTimeFormat))
	if err != nil {
		return fmt.Errorf("record upload: %w", err)
	}
	return nil
}

// HasUpload reports whether key was uploaded by any earlier run.
func (l *Ledger) HasUpload(ctx context.Context, key UploadKey) (bool, error) {
	var n int
	err := l.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM uploads WHERE key = ?`, string(key)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListUploads returns uploads for slug, or every upload when slug is empty.
func (l *Ledger) ListUploads(ctx context.Context, slug string) ([]UploadRecord, error) {
	query := `SELECT key, url, slug, content_type, bytes, run_id, uploaded_at FROM uploads`
	var args []any
	if slug != "" {
		query += ` WHERE slug = ?`
		args = append(args, slug)
	}
	query += ` ORDER BY uploaded_at DESC`
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UploadRecord
	for rows.Next() {
		var rec UploadRecord
		var key, uploadedAt string
		if err := rows.Scan(&key, &rec.URL, &rec.Slug, &rec.ContentType, &rec.Bytes, &rec.RunID, &uploadedAt); err != nil {
			return nil, err
		}
		rec.Key = UploadKey(key)
		rec.UploadedAt, _ = time.Parse(ledgerTimeFormat, uploadedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveCheckReport stores every result of a check run.
func (l *Ledger) SaveCheckReport(ctx context.Context, runID string, report *CheckReport) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO checks
		(run_id, locator, class, target, success, status, size, content_type, error_class, error, duration_ms, used_in)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range report.Results {
		if _, err := stmt.ExecContext(ctx, runID, r.Locator, string(r.Class), r.Target, boolInt(r.Success),
			r.Status, r.Size, r.ContentType, string(r.ErrorClass), r.Error, r.Duration.Milliseconds(),
			strings.Join(r.UsedIn, ",")); err != nil {
			return fmt.Errorf("save check %s: %w", r.Locator, err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs of kind (any kind when empty),
// newest first.
func (l *Ledger) ListRuns(ctx context.Context, kind string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, kind, dry_run, started_at, finished_at, summary FROM runs`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, kind)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

// LatestCheck returns the newest finished check run and its results.
func (l *Ledger) LatestCheck(ctx context.Context) (RunRecord, []CheckResult, error) {
	row := l.db.QueryRowContext(ctx, `SELECT id, kind, dry_run, started_at, finished_at, summary FROM runs
		WHERE kind = ? AND finished_at IS NOT NULL ORDER BY started_at DESC LIMIT 1`, RunKindCheck)
	rec, err := scanRun(row)
	if err != nil {
		return RunRecord{}, nil, err
	}

	rows, err := l.db.QueryContext(ctx, `SELECT locator, class, target, success, status, size, content_type, error_class, error, duration_ms, used_in
		FROM checks WHERE run_id = ? ORDER BY success ASC, locator ASC`, rec.ID)
	if err != nil {
		return rec, nil, err
	}
	defer rows.Close()

	var results []CheckResult
	for rows.Next() {
		var r CheckResult
		var class, errClass, usedIn string
		var success int
		var durationMS int64
		if err := rows.Scan(&r.Locator, &class, &r.Target, &success, &r.Status, &r.Size, &r.ContentType,
			&errClass, &r.Error, &durationMS, &usedIn); err != nil {
			return rec, nil, err
		}
		r.Class = SourceClass(class)
		r.Success = success == 1
		r.ErrorClass = ErrorClass(errClass)
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.SizeKnown = r.Size > 0
		if usedIn != "" {
			r.UsedIn = strings.Split(usedIn, ",")
		}
		results = append(results, r)
	}
	return rec, results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (RunRecord, error) {
	var rec RunRecord
	var dryRun int
	var started string
	var finished, summary sql.NullString
	if err := s.Scan(&rec.ID, &rec.Kind, &dryRun, &started, &finished, &summary); err != nil {
		return RunRecord{}, err
	}
	rec.DryRun = dryRun == 1
	rec.StartedAt, _ = time.Parse(ledgerTimeFormat, started)
	if finished.Valid {
		t, _ := time.Parse(ledgerTimeFormat, finished.String)
		rec.FinishedAt = &t
	}
	if summary.Valid {
		rec.Summary = json.RawMessage(summary.String)
	}
	return rec, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
