// Package engine implements the scenesync batch engine.
//
// The engine owns the authoritative scenes of one replica. It receives
// element batches (from peers or from the local editor), reconciles each
// against the current scene, persists the batch and the resulting
// collection, and notifies listeners.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Batches are applied one at a time so two reconciliations never race
// over the same scene. This ensures:
// - Every batch sees the result of the previous one
// - The batch log replays to the same snapshots
// - Simple reasoning about which version won and why
//
// Batch Processing Flow:
// 1. Batches enqueued to FIFO queue (Enqueue), or applied directly (Apply)
// 2. Engine.Run() dequeues batches one at a time
// 3. Duplicate batch ids are skipped
// 4. The batch is reconciled against the current scene
// 5. Batch and result are written to SQLite in one transaction
// 6. OnApplied listeners receive the new snapshot
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Every applied batch is stamped with a monotonic seq from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
//
// Deterministic Replay:
// Replay rebuilds a scene from its batch log with a fresh reconciler and
// checks every step against the recorded snapshot hash.
package engine
