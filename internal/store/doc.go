// Package store provides SQLite-backed durable storage for scenes.
//
// The store keeps two things per scene:
//   - Elements: the current authoritative collection, one row per element
//     id, upserted after every applied batch and never deleted (tombstones
//     are rows with is_deleted set)
//   - Batches: an append-only log of every remote batch applied, with the
//     snapshot hash of the collection it produced
//
// # Critical Patterns
//
// Batch-Level Idempotency
//   - UNIQUE(batch_id) constraint
//   - A batch delivered twice is applied once
//
// Logical Time
//   - Batches are ordered by seq INTEGER (logical clock), never timestamps
//   - Replay walks the log in seq order and must reproduce every result hash
//
// Deterministic Query Results
//   - Elements load ORDER BY fractional_index, id COLLATE BINARY
//   - Batches load ORDER BY seq ASC, batch_id COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Element bodies are stored as canonical JSON (see element.MarshalElement);
// batch payloads are wire-encoded messages.
package store
