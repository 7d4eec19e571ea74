package testutil

import "sync"

// SequenceNonce is a deterministic element.NonceSource for tests.
//
// Unlike element.RandomNonce, SequenceNonce can be reset for test reuse, so
// the same scenario run twice produces identical version nonces.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequenceNonce struct {
	mu  sync.Mutex
	seq int64
}

// NewSequenceNonce creates a nonce source starting at 0.
//
// The first call to Next() returns 1.
func NewSequenceNonce() *SequenceNonce {
	return &SequenceNonce{}
}

// Next increments and returns the next nonce.
func (n *SequenceNonce) Next() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	return n.seq
}

// Current returns the last nonce handed out without incrementing.
func (n *SequenceNonce) Current() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seq
}

// Reset resets the source to 0.
func (n *SequenceNonce) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq = 0
}
