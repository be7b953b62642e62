package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rickgao/routedb/internal/config"
	"github.com/rickgao/routedb/internal/datasource"
)

// Postgres is a provider backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Connect creates a single connection pool.
func Connect(ctx context.Context, cfg config.DBConfig) (*pgxpool.Pool, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Acquire checks a connection out of the pool.
func (p *Postgres) Acquire(ctx context.Context) (datasource.Conn, error) {
	c, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire postgres connection: %w", err)
	}
	return &pgxConn{conn: c.Conn(), release: c.Release}, nil
}

// AcquireWith dials a dedicated connection outside the pool, authenticated
// as creds. Releasing it closes it.
func (p *Postgres) AcquireWith(ctx context.Context, creds datasource.Credentials) (datasource.Conn, error) {
	connCfg := p.pool.Config().ConnConfig.Copy()
	connCfg.User = creds.User
	connCfg.Password = creds.Password

	c, err := pgx.ConnectConfig(ctx, connCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres as %s: %w", creds, err)
	}
	return &pgxConn{conn: c, release: func() {
		_ = c.Close(context.Background())
	}}, nil
}

// Ping verifies the pool can reach the server.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Pool returns the underlying pool.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

// Close closes the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

type pgxConn struct {
	conn    *pgx.Conn
	release func()
}

func (c *pgxConn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := c.conn.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *pgxConn) QueryRow(ctx context.Context, query string, args []any, dest ...any) error {
	return c.conn.QueryRow(ctx, query, args...).Scan(dest...)
}

func (c *pgxConn) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

func (c *pgxConn) Release() {
	c.release()
}

// Conn returns the underlying pgx connection. It is only valid until
// Release.
func (c *pgxConn) Conn() *pgx.Conn {
	return c.conn
}
