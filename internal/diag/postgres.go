package diag

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tracedive/tracedive/migrations"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresExecutor reads diagnostic tables replicated into Postgres, the
// common setup when a cluster's trace tables are change-data-captured into a
// relational warehouse for inspection.
type PostgresExecutor struct {
	DSN string
	db  *sql.DB
}

func NewPostgresExecutor(dsn string) (*PostgresExecutor, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	executor := &PostgresExecutor{
		DSN: dsn,
		db:  db,
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

func (e *PostgresExecutor) Close() error {
	if e == nil || e.db == nil {
		return nil
	}
	return e.db.Close()
}

// Query runs the statement against the replica. The statement's consistency
// level is accepted for contract parity with cluster-native executors and
// otherwise ignored.
func (e *PostgresExecutor) Query(ctx context.Context, stmt Statement) (RowSet, error) {
	if e == nil || e.db == nil {
		return RowSet{}, ErrExecutorClosed
	}
	return queryRowSet(ctx, e.db, stmt)
}

// DB exposes the underlying handle so callers (tests, import tooling) can
// seed the diagnostic tables.
func (e *PostgresExecutor) DB() *sql.DB {
	if e == nil {
		return nil
	}
	return e.db
}

func (e *PostgresExecutor) configure() error {
	if e.db == nil {
		return fmt.Errorf("postgres database is not initialized")
	}

	e.db.SetMaxOpenConns(10)
	e.db.SetMaxIdleConns(5)
	e.db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (e *PostgresExecutor) ensureSchema() error {
	if err := migrations.Apply(context.Background(), e.db, migrations.DriverPostgres); err != nil {
		return fmt.Errorf("ensure postgres diagnostic schema: %w", err)
	}
	return nil
}
