package diag

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tracedive/tracedive/migrations"

	_ "modernc.org/sqlite"
)

// SQLiteExecutor reads diagnostic tables from a local SQLite capture, for
// inspecting traces exported from a cluster or written by test fixtures.
type SQLiteExecutor struct {
	Path string
	db   *sql.DB
}

func NewSQLiteExecutor(path string) (*SQLiteExecutor, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory %q: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database %q: %w", path, err)
	}

	executor := &SQLiteExecutor{
		Path: path,
		db:   db,
	}
	if err := executor.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := executor.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return executor, nil
}

func (e *SQLiteExecutor) Close() error {
	if e == nil || e.db == nil {
		return nil
	}
	return e.db.Close()
}

// Query runs the statement against the capture. The statement's consistency
// level is ignored: a single-file database has no replicas to agree.
func (e *SQLiteExecutor) Query(ctx context.Context, stmt Statement) (RowSet, error) {
	if e == nil || e.db == nil {
		return RowSet{}, ErrExecutorClosed
	}
	return queryRowSet(ctx, e.db, stmt)
}

// DB exposes the underlying handle so callers (tests, import tooling) can
// seed the diagnostic tables.
func (e *SQLiteExecutor) DB() *sql.DB {
	if e == nil {
		return nil
	}
	return e.db
}

func (e *SQLiteExecutor) configure() error {
	if _, err := e.db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		return fmt.Errorf("enable sqlite WAL mode: %w", err)
	}
	if _, err := e.db.Exec(`PRAGMA busy_timeout = 5000;`); err != nil {
		return fmt.Errorf("set sqlite busy timeout: %w", err)
	}
	return nil
}

func (e *SQLiteExecutor) ensureSchema() error {
	if err := migrations.Apply(context.Background(), e.db, migrations.DriverSQLite); err != nil {
		return fmt.Errorf("ensure sqlite diagnostic schema: %w", err)
	}
	return nil
}
