// Package journal keeps a SQLite record of every EEPROM write, with the
// value the cell held before, so a batch of writes can be undone.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"epsonconf/common/logger"
	"epsonconf/eeprom"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schemaVersion = 1

// ErrNotFound reports an unknown entry or batch id.
var ErrNotFound = errors.New("journal entry not found")

// Entry is one recorded write.
type Entry struct {
	ID        string    `json:"id"`
	Batch     string    `json:"batch"`
	Host      string    `json:"host"`
	Model     string    `json:"model"`
	Cell      int       `json:"cell"`
	Previous  *byte     `json:"previous,omitempty"`
	Value     byte      `json:"value"`
	DryRun    bool      `json:"dry_run"`
	OK        bool      `json:"ok"`
	CreatedAt time.Time `json:"created_at"`
}

// Journal is a SQLite-backed eeprom.Journal.
type Journal struct {
	db      *sql.DB
	path    string
	mu      sync.Mutex
	entropy io.Reader
}

var _ eeprom.Journal = (*Journal)(nil)

// Open opens or creates the journal database at path. An empty path uses
// an in-memory database.
func Open(path string) (*Journal, error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// A single connection keeps in-memory databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	j := &Journal{
		db:      db,
		path:    path,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
	}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize journal schema: %w", err)
	}
	if logger.Global != nil {
		logger.Global.Debug("Write journal opened", "path", dsn)
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version    INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS eeprom_writes (
		id         TEXT PRIMARY KEY,
		batch      TEXT NOT NULL,
		host       TEXT NOT NULL DEFAULT '',
		model      TEXT NOT NULL,
		cell       INTEGER NOT NULL,
		previous   INTEGER,
		value      INTEGER NOT NULL,
		dry_run    INTEGER NOT NULL DEFAULT 0,
		ok         INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_eeprom_writes_batch ON eeprom_writes(batch);
	CREATE INDEX IF NOT EXISTS idx_eeprom_writes_host ON eeprom_writes(host, id DESC);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return err
	}
	_, err := j.db.Exec(`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`,
		schemaVersion, time.Now().UTC().Format(time.RFC3339))
	return err
}

// NewID returns a fresh, time-ordered identifier. It is also suitable as a
// batch id for eeprom.WithBatch.
func (j *Journal) NewID() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), j.entropy).String()
}

// Record stores one write attempt. An entry without a batch starts its own
// batch named after the entry id.
func (j *Journal) Record(ctx context.Context, e eeprom.JournalEntry) error {
	id := j.NewID()
	batch := e.Batch
	if batch == "" {
		batch = id
	}
	var previous any
	if e.Previous != nil {
		previous = int(*e.Previous)
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO eeprom_writes (id, batch, host, model, cell, previous, value, dry_run, ok, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, batch, e.Host, e.Model, e.Cell, previous, int(e.Value), e.DryRun, e.OK,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("record write of cell %d: %w", e.Cell, err)
	}
	return nil
}

const selectColumns = `id, batch, host, model, cell, previous, value, dry_run, ok, created_at`

// List returns the newest entries first. An empty host lists every host; a
// non-positive limit lists everything.
func (j *Journal) List(ctx context.Context, host string, limit int) ([]Entry, error) {
	query := `SELECT ` + selectColumns + ` FROM eeprom_writes`
	var args []any
	if host != "" {
		query += ` WHERE host = ?`
		args = append(args, host)
	}
	query += ` ORDER BY id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return j.query(ctx, query, args...)
}

// Batch returns the entries of a batch, oldest first. id may also be the
// id of a single entry.
func (j *Journal) Batch(ctx context.Context, id string) ([]Entry, error) {
	entries, err := j.query(ctx, `SELECT `+selectColumns+` FROM eeprom_writes
		WHERE batch = ? OR id = ? ORDER BY id ASC`, id, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return entries, nil
}

// RestorePlan returns the cell values that undo a batch: for every cell
// written successfully (not in dry-run) the value it held before its first
// write in the batch.
func (j *Journal) RestorePlan(ctx context.Context, id string) (map[int]byte, error) {
	entries, err := j.Batch(ctx, id)
	if err != nil {
		return nil, err
	}
	plan := make(map[int]byte)
	for _, e := range entries {
		if !e.OK || e.DryRun || e.Previous == nil {
			continue
		}
		if _, seen := plan[e.Cell]; !seen {
			plan[e.Cell] = *e.Previous
		}
	}
	return plan, nil
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			previous  sql.NullInt64
			value     int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.Batch, &e.Host, &e.Model, &e.Cell, &previous, &value, &e.DryRun, &e.OK, &createdAt); err != nil {
			return nil, err
		}
		if previous.Valid {
			p := byte(previous.Int64)
			e.Previous = &p
		}
		e.Value = byte(value)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Path returns the database path, empty for in-memory journals.
func (j *Journal) Path() string { return j.path }

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
