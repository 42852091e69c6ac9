// Package store provides the SQLite-backed image store for the CM Story site.
//
// The store holds a single logical table, images, mapping a small fixed set of
// keys (logo, patent, boxing, football) to data-URI encoded image payloads.
// A put under an existing key replaces the prior value.
//
// # Connection Lifecycle
//
// A Store is created closed and opens lazily on the first Put or Get:
//
//	Closed → Opening → Open
//	Opening → Failed → Opening (next call retries)
//
// Concurrent callers that arrive while the store is opening share the same
// in-flight open. A handle that stops working (closed underneath the store, or
// the images table dropped) is discarded and reopened once per operation.
//
// # Schema
//
// Every open runs the upgrade step in one transaction. The images table is
// created if missing regardless of PRAGMA user_version, then version-keyed
// migrations run and user_version is set to the current schema version.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - single connection: SQLite has one writer
package store
