// Package database provides the concrete data source providers routerd
// routes between.
//
// Supported drivers:
//   - postgres: a pgxpool.Pool; per-credential acquisition dials a
//     dedicated connection
//   - sqlite: a database/sql handle on modernc.org/sqlite, WAL mode
//
// OpenAll opens every configured data source concurrently and returns a Set
// whose Lookup feeds named routing targets.
package database
