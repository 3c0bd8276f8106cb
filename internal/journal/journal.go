// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package journal keeps a SQLite history of conversion attempts so a
// failure can be diagnosed after the fact.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/fsconvert/internal/session"
	"github.com/pdiddy/fsconvert/pkg/types"
)

const dbFile = "history.db"

// ErrNotFound is returned by Get for an unknown ID.
var ErrNotFound = errors.New("history entry not found")

// Store manages the history database.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens or creates dir/history.db and its schema.
func NewStore(cfg types.JournalConfig) (*Store, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal directory: %w", err)
	}

	path := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS conversions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			device TEXT NOT NULL,
			source TEXT,
			target TEXT NOT NULL,
			plan TEXT,
			status TEXT NOT NULL,
			error_kind TEXT,
			message TEXT,
			started TEXT NOT NULL,
			finished TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_device ON conversions(device)`,
		`CREATE INDEX IF NOT EXISTS idx_conversions_started ON conversions(started)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Add stores e, assigning a new ID when e.ID is empty, and returns the ID.
func (s *Store) Add(ctx context.Context, e types.HistoryEntry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversions (id, device, source, target, plan, status, error_kind, message, started, finished)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Device, string(e.Source), string(e.Target), string(e.Plan),
		string(e.Status), string(e.Kind), e.Message,
		formatTime(e.Started), formatTime(e.Finished),
	)
	if err != nil {
		return "", fmt.Errorf("inserting history entry: %w", err)
	}
	return e.ID, nil
}

// Record stores the outcome of a finished conversion.
func (s *Store) Record(ctx context.Context, res session.Result) error {
	_, err := s.Add(ctx, EntryFromResult(res))
	return err
}

// EntryFromResult converts a session outcome into a history entry.
func EntryFromResult(res session.Result) types.HistoryEntry {
	e := types.HistoryEntry{
		Device:   res.Request.Device,
		Source:   res.Decision.Source,
		Target:   res.Request.Target,
		Plan:     res.Decision.Plan,
		Status:   types.StatusSucceeded,
		Started:  res.Started,
		Finished: res.Finished,
	}
	if res.Err != nil {
		e.Kind = types.KindOf(res.Err)
		e.Message = res.Err.Error()
		e.Status = types.StatusFailed
		if e.Kind == types.KindCancelled {
			e.Status = types.StatusCancelled
		}
	}
	return e
}

// ListOptions filters List.
type ListOptions struct {
	// Device restricts results to one identifier ("E:").
	Device string
	// Limit caps the number of entries; 0 means 50.
	Limit int
}

// List returns entries newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]types.HistoryEntry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, device, source, target, plan, status, error_kind, message, started, finished
		FROM conversions`
	var args []any
	if opts.Device != "" {
		query += ` WHERE device = ?`
		args = append(args, opts.Device)
	}
	query += ` ORDER BY started DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var entries []types.HistoryEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the entry with the given ID.
func (s *Store) Get(ctx context.Context, id string) (types.HistoryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, device, source, target, plan, status, error_kind, message, started, finished
		 FROM conversions WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.HistoryEntry{}, fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	return e, err
}

// Prune deletes entries that started before cutoff and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM conversions WHERE started < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning history: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (types.HistoryEntry, error) {
	var (
		e                                       types.HistoryEntry
		source, plan, kind, message             sql.NullString
		target, status, startedStr, finishedStr string
	)
	if err := sc.Scan(&e.ID, &e.Device, &source, &target, &plan, &status, &kind, &message, &startedStr, &finishedStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("scanning history row: %w", err)
	}
	e.Source = types.Filesystem(source.String)
	e.Target = types.Filesystem(target)
	e.Plan = types.Plan(plan.String)
	e.Status = types.Status(status)
	e.Kind = types.ErrorKind(kind.String)
	e.Message = message.String
	e.Started = parseTime(startedStr)
	e.Finished = parseTime(finishedStr)
	return e, nil
}

// Times are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
