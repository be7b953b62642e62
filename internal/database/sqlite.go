package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rickgao/routedb/internal/datasource"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens a SQLite database at the given path with WAL mode enabled.
// It creates the parent directory if it does not exist. maxConns <= 0 keeps a
// single writer connection.
func OpenSQLite(ctx context.Context, dbPath string, maxConns int) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if maxConns <= 0 {
		maxConns = 1
	}
	db.SetMaxOpenConns(maxConns)

	return db, nil
}

// SQL is a provider backed by a database/sql handle.
type SQL struct {
	db *sql.DB
}

// NewSQL wraps an open handle.
func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

// Acquire reserves a connection from the handle's pool.
func (s *SQL) Acquire(ctx context.Context) (datasource.Conn, error) {
	c, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire sql connection: %w", err)
	}
	return &sqlConn{conn: c}, nil
}

// AcquireWith is not supported; database/sql handles carry their own
// credentials.
func (s *SQL) AcquireWith(context.Context, datasource.Credentials) (datasource.Conn, error) {
	return nil, datasource.ErrCredentialsUnsupported
}

// Ping verifies the database is reachable.
func (s *SQL) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB returns the underlying handle.
func (s *SQL) DB() *sql.DB {
	return s.db
}

// Close closes the handle.
func (s *SQL) Close() error {
	return s.db.Close()
}

type sqlConn struct {
	conn *sql.Conn
}

func (c *sqlConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := c.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (c *sqlConn) QueryRow(ctx context.Context, query string, args []any, dest ...any) error {
	return c.conn.QueryRowContext(ctx, query, args...).Scan(dest...)
}

func (c *sqlConn) Ping(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

func (c *sqlConn) Release() {
	_ = c.conn.Close()
}
