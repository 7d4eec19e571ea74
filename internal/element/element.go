package element

import (
	"time"
)

// Element is the atomic drawable unit of a scene.
//
// ID is immutable across replicas. Version is incremented on every local
// mutation and VersionNonce re-randomised; together they decide which of two
// copies of the same element survives a reconciliation. Index is the
// fractional order key; an empty Index means the element has not been
// assigned a position yet.
type Element struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Version       int64          `json:"version"`
	VersionNonce  int64          `json:"version_nonce"`
	Index         string         `json:"index,omitempty"`
	IsDeleted     bool           `json:"is_deleted"`
	ContainerID   string         `json:"container_id,omitempty"`
	BoundElements []BoundElement `json:"bound_elements,omitempty"`
	Updated       int64          `json:"updated,omitempty"` // epoch millis, breaks key ties
	Attrs         Object         `json:"attrs,omitempty"`
}

// BoundElement references an element bound to another (a label inside a
// container, an arrow attached to a shape).
type BoundElement struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// TypeText is the element type of text elements, the only kind that can be
// bound inside a container.
const TypeText = "text"

// EditingState carries the ids of elements currently being mutated by the
// local user. Any of them may be empty.
type EditingState struct {
	EditingTextElementID string `json:"editing_text_element_id,omitempty" yaml:"editing_text_element_id,omitempty"`
	ResizingElementID    string `json:"resizing_element_id,omitempty" yaml:"resizing_element_id,omitempty"`
	NewElementID         string `json:"new_element_id,omitempty" yaml:"new_element_id,omitempty"`
}

// IsEditing reports whether id is under active local mutation.
func (s EditingState) IsEditing(id string) bool {
	if id == "" {
		return false
	}
	return id == s.EditingTextElementID || id == s.ResizingElementID || id == s.NewElementID
}

// Clone returns a deep copy of the element.
func (e Element) Clone() Element {
	out := e
	if e.BoundElements != nil {
		out.BoundElements = append([]BoundElement(nil), e.BoundElements...)
	}
	out.Attrs = e.Attrs.Clone()
	return out
}

// BoundTextID returns the id of the text element bound to this container,
// or "" if there is none.
func (e Element) BoundTextID() string {
	for _, b := range e.BoundElements {
		if b.Type == TypeText {
			return b.ID
		}
	}
	return ""
}

// Bump records a local mutation: version+1, the given nonce, and the
// update timestamp. The receiver is not modified.
func Bump(e Element, nonce int64, now time.Time) Element {
	out := e.Clone()
	out.Version++
	out.VersionNonce = nonce
	out.Updated = now.UnixMilli()
	return out
}

// Clone deep-copies a collection.
func Clone(elements []Element) []Element {
	if elements == nil {
		return nil
	}
	out := make([]Element, len(elements))
	for i, e := range elements {
		out[i] = e.Clone()
	}
	return out
}

// NonDeleted filters out tombstones. The result shares no backing array
// with the input.
func NonDeleted(elements []Element) []Element {
	out := make([]Element, 0, len(elements))
	for _, e := range elements {
		if !e.IsDeleted {
			out = append(out, e)
		}
	}
	return out
}

// ByID indexes a collection by id. For duplicate ids the first one wins.
func ByID(elements []Element) map[string]Element {
	m := make(map[string]Element, len(elements))
	for _, e := range elements {
		if _, ok := m[e.ID]; !ok {
			m[e.ID] = e
		}
	}
	return m
}

// SceneVersion sums element versions. It changes whenever any element is
// mutated and is used to skip broadcasting unchanged scenes.
func SceneVersion(elements []Element) int64 {
	var v int64
	for _, e := range elements {
		v += e.Version
	}
	return v
}

// HashVersions folds version nonces with djb2. Unlike SceneVersion it also
// changes when two elements swap versions.
func HashVersions(elements []Element) uint32 {
	h := uint32(5381)
	for _, e := range elements {
		h = h*33 + uint32(e.VersionNonce)
	}
	return h
}
