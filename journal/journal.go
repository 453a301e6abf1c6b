// Package journal keeps an append-only SQLite log of every ingest attempt,
// accepted or rejected. It is an audit trail next to the JSON store, not a
// second copy of the records.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/larder/dbopen"
)

// Status is the outcome of an ingest attempt.
type Status string

const (
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
)

// Entry is one ingest attempt.
type Entry struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"request_id,omitempty"`
	Transport  string    `json:"transport,omitempty"`
	File       string    `json:"file"`
	Format     string    `json:"format,omitempty"`
	SHA256     string    `json:"sha256,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	Status     Status    `json:"status"`
	ImportID   string    `json:"import_id,omitempty"`
	Recipes    int       `json:"recipes"`
	Prices     int       `json:"prices"`
	Reason     string    `json:"reason,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Counts aggregates entries by status.
type Counts struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

const schema = `
CREATE TABLE IF NOT EXISTS ingest_journal (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id  TEXT NOT NULL DEFAULT '',
    transport   TEXT NOT NULL DEFAULT '',
    file        TEXT NOT NULL,
    format      TEXT NOT NULL DEFAULT '',
    sha256      TEXT NOT NULL DEFAULT '',
    size_bytes  INTEGER NOT NULL DEFAULT 0,
    status      TEXT NOT NULL CHECK (status IN ('accepted', 'rejected')),
    import_id   TEXT NOT NULL DEFAULT '',
    recipes     INTEGER NOT NULL DEFAULT 0,
    prices      INTEGER NOT NULL DEFAULT 0,
    reason      TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_journal_status ON ingest_journal(status);
CREATE INDEX IF NOT EXISTS idx_journal_sha    ON ingest_journal(sha256);
`

// Journal wraps the journal database.
type Journal struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(schema))
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	return &Journal{db: db, now: time.Now}, nil
}

// New wraps an already opened database and ensures the schema exists.
func New(db *sql.DB) (*Journal, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("journal: schema: %w", err)
	}
	return &Journal{db: db, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (j *Journal) Close() error { return j.db.Close() }

// Record appends an entry and returns its ID. A zero CreatedAt is set to now.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}
	res, err := dbopen.Exec(ctx, j.db,
		`INSERT INTO ingest_journal
		    (request_id, transport, file, format, sha256, size_bytes, status,
		     import_id, recipes, prices, reason, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RequestID, e.Transport, e.File, e.Format, e.SHA256, e.SizeBytes, string(e.Status),
		e.ImportID, e.Recipes, e.Prices, e.Reason, e.DurationMs,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("journal: record: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, request_id, transport, file, format, sha256, size_bytes, status,
		        import_id, recipes, prices, reason, duration_ms, created_at
		 FROM ingest_journal ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			status  string
			created string
		)
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Transport, &e.File, &e.Format, &e.SHA256,
			&e.SizeBytes, &status, &e.ImportID, &e.Recipes, &e.Prices, &e.Reason,
			&e.DurationMs, &created); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.Status = Status(status)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Counts returns the number of accepted and rejected attempts.
func (j *Journal) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := j.db.QueryRowContext(ctx,
		`SELECT
		    COALESCE(SUM(CASE WHEN status = 'accepted' THEN 1 ELSE 0 END), 0),
		    COALESCE(SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END), 0)
		 FROM ingest_journal`).Scan(&c.Accepted, &c.Rejected)
	if err != nil {
		return Counts{}, fmt.Errorf("journal: counts: %w", err)
	}
	return c, nil
}

// SeenSHA256 reports whether a file with this digest was already accepted.
func (j *Journal) SeenSHA256(ctx context.Context, sum string) (bool, error) {
	var n int
	err := j.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ingest_journal WHERE sha256 = ? AND status = 'accepted'`, sum).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("journal: lookup sha256: %w", err)
	}
	return n > 0, nil
}

// Prune keeps the newest keep entries and deletes the rest.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	var deleted int64
	err := dbopen.RunTx(ctx, j.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM ingest_journal WHERE id NOT IN (
			    SELECT id FROM ingest_journal ORDER BY id DESC LIMIT ?)`, keep)
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("journal: prune: %w", err)
	}
	return deleted, nil
}
