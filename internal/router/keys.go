package router

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ErrUnknownIsolation is returned by IsolationKeys for values that do not
// name a transaction isolation level.
var ErrUnknownIsolation = errors.New("router: unknown isolation level")

// JDBC-style numeric isolation constants, accepted by IsolationKeys.
const (
	isolationReadUncommitted = 1
	isolationReadCommitted   = 2
	isolationRepeatableRead  = 4
	isolationSerializable    = 8
)

// IsolationKeys canonicalizes configured keys to pgx.TxIsoLevel. It accepts
// pgx.TxIsoLevel values, names such as "serializable", "REPEATABLE_READ" or
// "ISOLATION_READ_COMMITTED", and the numeric constants 1, 2, 4 and 8.
func IsolationKeys(raw any) (any, error) {
	switch v := raw.(type) {
	case pgx.TxIsoLevel:
		return ParseIsolation(string(v))
	case string:
		return ParseIsolation(v)
	case int:
		switch v {
		case isolationReadUncommitted:
			return pgx.ReadUncommitted, nil
		case isolationReadCommitted:
			return pgx.ReadCommitted, nil
		case isolationRepeatableRead:
			return pgx.RepeatableRead, nil
		case isolationSerializable:
			return pgx.Serializable, nil
		}
	}
	return nil, fmt.Errorf("%w: %#v", ErrUnknownIsolation, raw)
}

// ParseIsolation parses an isolation level name in any of the forms
// IsolationKeys accepts.
func ParseIsolation(s string) (pgx.TxIsoLevel, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.TrimPrefix(norm, "isolation_")
	norm = strings.ReplaceAll(norm, "_", " ")

	switch level := pgx.TxIsoLevel(norm); level {
	case pgx.Serializable, pgx.RepeatableRead, pgx.ReadCommitted, pgx.ReadUncommitted:
		return level, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownIsolation, s)
}

// StringKeys canonicalizes strings and fmt.Stringers to trimmed lower-case
// strings. The KeySource must produce keys in the same form.
func StringKeys(raw any) (any, error) {
	switch v := raw.(type) {
	case string:
		return NormalizeKey(v), nil
	case fmt.Stringer:
		return NormalizeKey(v.String()), nil
	}
	return nil, fmt.Errorf("%w: %T is not a string key", ErrInvalidKey, raw)
}

// NormalizeKey is the form StringKeys stores.
func NormalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
