// Package router routes connection requests to one of several data sources.
//
// A Router holds a table from lookup key to datasource.Provider that is
// built once by Initialize and never changes afterwards. Every Acquire asks
// the router's KeySource for the current key, usually carried on the
// context:
//
//	ctx = router.WithKey(ctx, "reporting")
//	conn, err := r.Acquire(ctx)
//
// The choice is made per call and never cached, so a caller may switch keys
// between acquisitions in the same unit of work.
//
// When the key has no entry the router falls back to its default target if
// lenient fallback is on or the key is nil. A nil key always falls back,
// regardless of the lenient setting.
package router
