package datasource

import (
	"context"
	"errors"
)

// ErrCredentialsUnsupported is returned by providers that cannot authenticate
// a connection with caller-supplied credentials.
var ErrCredentialsUnsupported = errors.New("datasource: per-connection credentials not supported")

// Provider acquires connections to a single data source.
type Provider interface {
	// Acquire returns a connection using the provider's own credentials.
	Acquire(ctx context.Context) (Conn, error)

	// AcquireWith returns a connection authenticated as creds.
	AcquireWith(ctx context.Context, creds Credentials) (Conn, error)
}

// Conn is a connection checked out of a Provider. Release must be called
// exactly once when the caller is done with it.
type Conn interface {
	// Exec runs a statement and returns the number of rows affected.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// QueryRow runs a query expected to return at most one row and scans
	// it into dest.
	QueryRow(ctx context.Context, query string, args []any, dest ...any) error

	// Ping checks that the connection is still alive.
	Ping(ctx context.Context) error

	// Release returns the connection to its pool, or closes it.
	Release()
}

// Credentials override the user a connection is opened as.
type Credentials struct {
	User     string
	Password string
}

// String never includes the password.
func (c Credentials) String() string {
	return c.User
}

// Pinger is implemented by providers that can check their backend without
// handing out a connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks p, using its own Ping when it has one and otherwise acquiring
// and releasing a connection.
func Ping(ctx context.Context, p Provider) error {
	if pg, ok := p.(Pinger); ok {
		return pg.Ping(ctx)
	}
	conn, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()
	return conn.Ping(ctx)
}
