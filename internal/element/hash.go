package element

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainSnapshot prefixes snapshot hashes. The version suffix allows the
// encoding to change without colliding with old hashes.
const DomainSnapshot = "scenesync/snapshot/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// canonicalMap returns the element in the shape hashed and stored.
// Optional fields are omitted when empty, same as the JSON tags.
func (e Element) canonicalMap() map[string]any {
	m := map[string]any{
		"id":            e.ID,
		"type":          e.Type,
		"version":       e.Version,
		"version_nonce": e.VersionNonce,
		"is_deleted":    e.IsDeleted,
	}
	if e.Index != "" {
		m["index"] = e.Index
	}
	if e.ContainerID != "" {
		m["container_id"] = e.ContainerID
	}
	if len(e.BoundElements) > 0 {
		bound := make([]any, len(e.BoundElements))
		for i, b := range e.BoundElements {
			bound[i] = map[string]any{"id": b.ID, "type": b.Type}
		}
		m["bound_elements"] = bound
	}
	if e.Updated != 0 {
		m["updated"] = e.Updated
	}
	if len(e.Attrs) > 0 {
		m["attrs"] = e.Attrs
	}
	return m
}

// MarshalElement encodes one element as canonical JSON.
func MarshalElement(e Element) ([]byte, error) {
	data, err := MarshalCanonical(e.canonicalMap())
	if err != nil {
		return nil, fmt.Errorf("element %q: %w", e.ID, err)
	}
	return data, nil
}

// MarshalElements encodes an ordered collection as a canonical JSON array.
// Collection order is significant and preserved.
func MarshalElements(elements []Element) ([]byte, error) {
	list := make([]any, len(elements))
	for i, e := range elements {
		list[i] = e.canonicalMap()
	}
	data, err := MarshalCanonical(list)
	if err != nil {
		return nil, fmt.Errorf("marshal elements: %w", err)
	}
	return data, nil
}

// SnapshotHash is the content hash of an ordered collection. Two replicas
// hold byte-identical scenes iff their snapshot hashes match.
func SnapshotHash(elements []Element) (string, error) {
	data, err := MarshalElements(elements)
	if err != nil {
		return "", fmt.Errorf("SnapshotHash: %w", err)
	}
	return hashWithDomain(DomainSnapshot, data), nil
}

// MustSnapshotHash is like SnapshotHash but panics on error.
// Use only in tests or when attributes are known to be valid.
func MustSnapshotHash(elements []Element) string {
	h, err := SnapshotHash(elements)
	if err != nil {
		panic(err)
	}
	return h
}
