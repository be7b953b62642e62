// Package datasource defines the connection-provider contracts shared by the
// router and the concrete database providers.
//
// A Provider hands out connections. A Lookup turns a symbolic data source
// name into a Provider:
//   - MapLookup: names registered explicitly, typically at startup
//   - SingleLookup: every name resolves to the same provider
//   - Registry: the process-wide registry used when nothing else is configured
//
// Providers that front other providers (the router, for example) implement
// Wrapper so callers can reach the underlying implementation with As.
package datasource
