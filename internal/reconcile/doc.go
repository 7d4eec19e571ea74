// Package reconcile merges a remote element batch into a local collection.
//
// The merge is decided per element by ShouldDiscardRemote: an element under
// active local edit always keeps its local copy, otherwise the higher
// version wins and equal versions fall to the lower version nonce. The
// merged set is then ordered by fractional index, repaired, and validated.
//
// A Reconciler owns its validation Limiter, so independent reconcilers never
// share timing state. Reconcile never mutates its inputs and, for the same
// inputs and editing state, always returns the same collection.
package reconcile
