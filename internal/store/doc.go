// Package store provides the SQLite-backed RecordStore for docindex.
//
// The database holds two tables:
//   - docs: one canonical record per document, with links, forks and
//     payload fields stored as canonical JSON TEXT
//   - backlinks: every version id some ingested version has linked
//
// Both are WITHOUT ROWID tables keyed by their id column. Table names are
// configurable so the store can share a database with other data.
//
// # Units of Work
//
// RunAtomic maps onto one SQLite transaction. Reads inside the transaction
// observe its own writes, and nothing is visible to other connections
// until commit.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - MaxOpenConns=1: One writer per process
//
// Query results that callers compare across replicas are ordered
// with COLLATE BINARY so every platform sorts identically.
package store
