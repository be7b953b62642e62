package datasource

import (
	"context"
	"errors"
	"fmt"
	"reflect"
)

// ErrNotWrapper is returned by As when neither p nor anything it wraps is of
// the requested type.
var ErrNotWrapper = errors.New("datasource: provider does not wrap requested type")

// maxUnwrap bounds wrapper chains so a cycle cannot loop forever.
const maxUnwrap = 32

// Wrapper is implemented by providers that delegate to another provider.
// The wrapped provider may depend on ctx (a router picks it per call).
type Wrapper interface {
	Unwrap(ctx context.Context) (Provider, error)
}

// As finds the first provider in p's wrapper chain that is a T, checking p
// itself first.
func As[T any](ctx context.Context, p Provider) (T, error) {
	var zero T
	cur := p
	for i := 0; i < maxUnwrap; i++ {
		if cur == nil {
			break
		}
		if t, ok := cur.(T); ok {
			return t, nil
		}
		w, ok := cur.(Wrapper)
		if !ok {
			break
		}
		next, err := w.Unwrap(ctx)
		if err != nil {
			return zero, err
		}
		cur = next
	}
	return zero, fmt.Errorf("%w: %v", ErrNotWrapper, reflect.TypeOf((*T)(nil)).Elem())
}

// IsWrapperFor reports whether p is, or wraps, a T. Errors from unwrapping
// (for example an unresolvable routing key) are returned rather than
// reported as false.
func IsWrapperFor[T any](ctx context.Context, p Provider) (bool, error) {
	_, err := As[T](ctx, p)
	if errors.Is(err, ErrNotWrapper) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
