package router

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type contextKey int

const (
	lookupKeyCtx contextKey = iota
	readOnlyCtx
	isolationCtx
)

// WithKey returns a context carrying key as the routing lookup key.
func WithKey(ctx context.Context, key any) context.Context {
	return context.WithValue(ctx, lookupKeyCtx, key)
}

// KeyFromContext returns the lookup key set by WithKey, or nil.
func KeyFromContext(ctx context.Context) any {
	return ctx.Value(lookupKeyCtx)
}

// ContextKeys reads the key set by WithKey.
var ContextKeys KeySource = KeySourceFunc(KeyFromContext)

// WithReadOnly marks the work carried by ctx as read-only or read-write.
func WithReadOnly(ctx context.Context, readOnly bool) context.Context {
	return context.WithValue(ctx, readOnlyCtx, readOnly)
}

// IsReadOnly returns the flag set by WithReadOnly. ok is false when ctx was
// never marked.
func IsReadOnly(ctx context.Context) (readOnly, ok bool) {
	readOnly, ok = ctx.Value(readOnlyCtx).(bool)
	return readOnly, ok
}

// ReadOnlyKeys returns a KeySource yielding readKey for read-only contexts,
// writeKey for read-write ones and nil for unmarked ones.
func ReadOnlyKeys(readKey, writeKey any) KeySource {
	return KeySourceFunc(func(ctx context.Context) any {
		readOnly, ok := IsReadOnly(ctx)
		switch {
		case !ok:
			return nil
		case readOnly:
			return readKey
		default:
			return writeKey
		}
	})
}

// WithIsolation records the transaction isolation level for the work
// carried by ctx.
func WithIsolation(ctx context.Context, level pgx.TxIsoLevel) context.Context {
	return context.WithValue(ctx, isolationCtx, level)
}

// IsolationFromContext returns the level set by WithIsolation.
func IsolationFromContext(ctx context.Context) (pgx.TxIsoLevel, bool) {
	level, ok := ctx.Value(isolationCtx).(pgx.TxIsoLevel)
	return level, ok && level != ""
}

// IsolationKeySource yields the context's isolation level, or nil. Pair it
// with IsolationKeys so configured keys match.
var IsolationKeySource KeySource = KeySourceFunc(func(ctx context.Context) any {
	level, ok := IsolationFromContext(ctx)
	if !ok {
		return nil
	}
	return level
})
