package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// timeLayout is fixed width so that lexical order of stored values matches
// chronological order; keyset pagination on closed_at relies on it.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps access to the SQLite database and exposes high level helpers.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
	policy BacklogPolicy
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces the wall clock used for every timestamp the store writes.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBacklogPolicy selects what happens to sprint memberships when a card
// enters the backlog column.
func WithBacklogPolicy(p BacklogPolicy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger *zap.Logger, opts ...Option) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	// _txlock=immediate takes the write lock at BEGIN, so check-then-write
	// sequences inside a transaction cannot interleave with another writer.
	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON&_txlock=immediate", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger, now: time.Now, policy: ClearAllMemberships}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Debug("sqlite store ready", zap.String("path", dbPath), zap.String("backlog_policy", string(s.policy)))
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Now returns the store clock reading in UTC.
func (s *Store) Now() time.Time {
	return s.now().UTC()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS boards (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            revision INTEGER NOT NULL DEFAULT 0,
            created_at TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS columns (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            board_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            position INTEGER NOT NULL DEFAULT 0,
            is_backlog INTEGER NOT NULL DEFAULT 0,
            is_done INTEGER NOT NULL DEFAULT 0,
            FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_columns_one_backlog ON columns(board_id) WHERE is_backlog = 1;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_columns_one_done ON columns(board_id) WHERE is_done = 1;`,
		`CREATE TABLE IF NOT EXISTS sprints (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            board_id INTEGER NOT NULL,
            name TEXT NOT NULL,
            goal TEXT,
            start_date TEXT,
            end_date TEXT,
            status TEXT NOT NULL DEFAULT 'future' CHECK (status IN ('future', 'active', 'closed')),
            created_at TEXT NOT NULL,
            started_at TEXT,
            closed_at TEXT,
            FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sprints_one_active ON sprints(board_id) WHERE status = 'active';`,
		`CREATE INDEX IF NOT EXISTS idx_sprints_board_closed ON sprints(board_id, status, closed_at, id);`,
		`CREATE TABLE IF NOT EXISTS cards (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            board_id INTEGER NOT NULL,
            column_id INTEGER NOT NULL,
            title TEXT NOT NULL,
            position INTEGER NOT NULL DEFAULT 0,
            story_points INTEGER CHECK (story_points IS NULL OR story_points >= 0),
            completed_at TEXT,
            created_at TEXT NOT NULL,
            updated_at TEXT NOT NULL,
            FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE,
            FOREIGN KEY(column_id) REFERENCES columns(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_cards_board ON cards(board_id);`,
		`CREATE INDEX IF NOT EXISTS idx_cards_column ON cards(column_id, position);`,
		`CREATE TABLE IF NOT EXISTS card_sprints (
            card_id INTEGER NOT NULL,
            sprint_id INTEGER NOT NULL,
            PRIMARY KEY (card_id, sprint_id),
            FOREIGN KEY(card_id) REFERENCES cards(id) ON DELETE CASCADE,
            FOREIGN KEY(sprint_id) REFERENCES sprints(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_card_sprints_sprint ON card_sprints(sprint_id);`,
		`CREATE TABLE IF NOT EXISTS flow_snapshots (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            board_id INTEGER NOT NULL,
            day TEXT NOT NULL,
            captured_at TEXT NOT NULL,
            columns TEXT NOT NULL,
            UNIQUE(board_id, day),
            FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
        );`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// withTx runs fn inside a single immediate transaction. The pool holds one
// connection, so fn must only use tx.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// bumpRevision marks the board as mutated; metrics cache keys include it.
func bumpRevision(ctx context.Context, q querier, boardID int64) error {
	if _, err := q.ExecContext(ctx, `UPDATE boards SET revision = revision + 1 WHERE id = ?`, boardID); err != nil {
		return fmt.Errorf("bump board revision: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", raw, err)
	}
	return t, nil
}

func parseNullTime(raw sql.NullString) (*time.Time, error) {
	if !raw.Valid {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}
