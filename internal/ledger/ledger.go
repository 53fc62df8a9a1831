// Package ledger persists a record of completed uploads in a local SQLite
// database. The ledger is provenance, not task state: nothing in the upload
// pipeline reads it back, it only feeds the counters reported by
// get_server_info and gives operators an audit trail.
package ledger

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spaolacci/murmur3"
)

// Entry is one completed upload.
type Entry struct {
	Key          string
	Bucket       string
	URL          string
	OriginalPath string
	Size         int64
	ContentType  string
	Fingerprint  string
	Optimized    bool
	BatchID      string
	UploadedAt   time.Time
}

// Totals aggregates the ledger for server info reporting.
type Totals struct {
	Uploads int64
	Bytes   int64
}

// Ledger records completed uploads.
type Ledger interface {
	// Record appends one completed upload.
	Record(ctx context.Context, e Entry) error

	// Totals returns the all-time upload count and byte total.
	Totals(ctx context.Context) (Totals, error)

	// Recent returns the most recent entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)

	// Close closes the underlying database.
	Close() error
}

// SQLiteLedger implements Ledger on a local SQLite file.
type SQLiteLedger struct {
	db *sql.DB
}

// Open opens (and initializes if needed) a ledger database at dbPath.
func Open(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &SQLiteLedger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: failed to initialize schema: %w", err)
	}
	return l, nil
}

func (l *SQLiteLedger) initSchema() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS uploads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			object_key TEXT NOT NULL,
			bucket TEXT NOT NULL,
			url TEXT NOT NULL,
			original_path TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			content_type TEXT NOT NULL,
			fingerprint TEXT NOT NULL,
			optimized INTEGER NOT NULL,
			batch_id TEXT,
			uploaded_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at);
		CREATE INDEX IF NOT EXISTS idx_uploads_fingerprint ON uploads(fingerprint);
	`)
	return err
}

// Record appends one completed upload.
func (l *SQLiteLedger) Record(ctx context.Context, e Entry) error {
	at := e.UploadedAt
	if at.IsZero() {
		at = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO uploads (
			object_key, bucket, url, original_path,
			size_bytes, content_type, fingerprint, optimized, batch_id, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Key, e.Bucket, e.URL, e.OriginalPath,
		e.Size, e.ContentType, e.Fingerprint, boolToInt(e.Optimized), e.BatchID, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("ledger: failed to record upload: %w", err)
	}
	return nil
}

// Totals returns the all-time upload count and byte total.
func (l *SQLiteLedger) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	row := l.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM uploads`)
	if err := row.Scan(&t.Uploads, &t.Bytes); err != nil {
		return Totals{}, fmt.Errorf("ledger: failed to read totals: %w", err)
	}
	return t, nil
}

// Recent returns the most recent entries, newest first.
func (l *SQLiteLedger) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT object_key, bucket, url, original_path,
		       size_bytes, content_type, fingerprint, optimized, COALESCE(batch_id, ''), uploaded_at
		FROM uploads ORDER BY uploaded_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: failed to query recent uploads: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var optimized int
		var at int64
		if err := rows.Scan(&e.Key, &e.Bucket, &e.URL, &e.OriginalPath,
			&e.Size, &e.ContentType, &e.Fingerprint, &optimized, &e.BatchID, &at); err != nil {
			return nil, fmt.Errorf("ledger: failed to scan row: %w", err)
		}
		e.Optimized = optimized != 0
		e.UploadedAt = time.UnixMilli(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Fingerprint computes a murmur3 content fingerprint of a file, hex encoded.
// An unreadable file yields an empty fingerprint rather than an error; the
// fingerprint is advisory.
func Fingerprint(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	h := murmur3.New128()
	if _, err := io.Copy(h, f); err != nil {
		return ""
	}
	return hex.EncodeToString(h.Sum(nil))
}

var _ Ledger = (*SQLiteLedger)(nil)
