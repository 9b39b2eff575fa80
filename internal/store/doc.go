// Package store provides SQLite-backed durable storage for the offline sync engine.
//
// The store owns two independent collections:
//   - Request Queue: pending mutations keyed by an AUTOINCREMENT id, drained FIFO
//   - Cache: read results keyed by a caller-chosen string, bounded by expires_at
//
// # Critical Patterns
//
// Identity
//   - Queue ids come from SQLite AUTOINCREMENT and are never reused, not even
//     after the highest row is deleted or the process restarts
//
// Ordering
//   - ListQueued always uses ORDER BY id ASC (insertion order)
//
// Expiry
//   - GetCache filters on expires_at > now; the physical row may outlive its
//     logical lifetime until SweepExpiredCache removes it
//
// Idempotency
//   - RemoveQueued and IncrementRetry on a missing id are no-ops
//   - Migrations are keyed by PRAGMA user_version and every step may re-run
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Every failure that reaches a caller is a *StorageError.
package store
