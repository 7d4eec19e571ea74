package testutil

import "github.com/roach88/scenesync/internal/element"

// Element builds a rectangle with the given identity, version, nonce and
// order key.
func Element(id string, version, nonce int64, index string) element.Element {
	return element.Element{
		ID:           id,
		Type:         "rectangle",
		Version:      version,
		VersionNonce: nonce,
		Index:        index,
	}
}

// Deleted returns e as a tombstone.
func Deleted(e element.Element) element.Element {
	e.IsDeleted = true
	return e
}

// IDs lists element ids in collection order.
func IDs(elements []element.Element) []string {
	out := make([]string, len(elements))
	for i, e := range elements {
		out[i] = e.ID
	}
	return out
}

// Versions maps each id to its version.
func Versions(elements []element.Element) map[string]int64 {
	out := make(map[string]int64, len(elements))
	for _, e := range elements {
		out[e.ID] = e.Version
	}
	return out
}
