package element

import "math/rand/v2"

// NonceSource produces version nonces.
type NonceSource interface {
	Next() int64
}

// RandomNonce draws nonces uniformly from [0, 2^31).
//
// Thread-safety: safe for concurrent use (math/rand/v2 global source).
type RandomNonce struct{}

// Next returns a fresh random nonce.
func (RandomNonce) Next() int64 {
	return int64(rand.Int32())
}
