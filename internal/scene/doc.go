// Package scene holds one replica's authoritative element collection.
//
// A Scene wraps the ordered collection returned by reconciliation and the
// local edit operations that produce new versions (insert, mutate, delete,
// move). The non-deleted view used for rendering is memoised against a
// recomputation nonce that every write bumps.
package scene
