package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/scenesync/internal/element"
)

// marshalElement converts an element to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON for deterministic serialization.
func marshalElement(e element.Element) (string, error) {
	data, err := element.MarshalElement(e)
	if err != nil {
		return "", fmt.Errorf("marshal element: %w", err)
	}
	return string(data), nil
}

// unmarshalElement parses a stored element body.
// Attribute numbers are decoded via json.Number so large integers survive.
func unmarshalElement(body string) (element.Element, error) {
	var e element.Element
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		return element.Element{}, fmt.Errorf("unmarshal element: %w", err)
	}
	return e, nil
}

// marshalEditing converts an editing state to JSON TEXT with sorted keys.
// Empty markers are omitted so an idle editor stores "{}".
func marshalEditing(s element.EditingState) (string, error) {
	m := map[string]string{}
	if s.EditingTextElementID != "" {
		m["editing_text_element_id"] = s.EditingTextElementID
	}
	if s.NewElementID != "" {
		m["new_element_id"] = s.NewElementID
	}
	if s.ResizingElementID != "" {
		m["resizing_element_id"] = s.ResizingElementID
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return "", fmt.Errorf("marshal editing state: %w", err)
	}
	// Encoder adds a trailing newline
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalEditing parses JSON TEXT to an editing state.
func unmarshalEditing(data string) (element.EditingState, error) {
	var s element.EditingState
	if data == "" || data == "{}" {
		return s, nil
	}
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return element.EditingState{}, fmt.Errorf("unmarshal editing state: %w", err)
	}
	return s, nil
}
