// Package wire encodes scene messages exchanged between replicas.
//
// Messages are msgpack envelopes. Element attributes travel as canonical
// JSON bytes so a decoded element hashes identically to the one that was
// encoded.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/scenesync/internal/element"
)

// MessageType identifies the kind of scene message.
type MessageType string

const (
	// TypeSceneInit carries a full scene to a newly joined peer.
	TypeSceneInit MessageType = "SCENE_INIT"

	// TypeSceneUpdate carries a batch of changed elements.
	TypeSceneUpdate MessageType = "SCENE_UPDATE"
)

// ErrUnknownType is returned for envelopes with an unrecognised type.
var ErrUnknownType = errors.New("unknown message type")

// Message is a decoded scene message.
type Message struct {
	Type     MessageType
	SceneID  string
	BatchID  string
	Source   string
	Elements []element.Element
}

type envelope struct {
	Type     MessageType   `msgpack:"type"`
	SceneID  string        `msgpack:"scene_id"`
	BatchID  string        `msgpack:"batch_id,omitempty"`
	Source   string        `msgpack:"source,omitempty"`
	Elements []wireElement `msgpack:"elements"`
}

type wireElement struct {
	ID            string      `msgpack:"id"`
	Type          string      `msgpack:"type"`
	Version       int64       `msgpack:"version"`
	VersionNonce  int64       `msgpack:"version_nonce"`
	Index         string      `msgpack:"index,omitempty"`
	IsDeleted     bool        `msgpack:"is_deleted"`
	ContainerID   string      `msgpack:"container_id,omitempty"`
	BoundElements []wireBound `msgpack:"bound_elements,omitempty"`
	Updated       int64       `msgpack:"updated,omitempty"`
	Attrs         []byte      `msgpack:"attrs,omitempty"`
}

type wireBound struct {
	ID   string `msgpack:"id"`
	Type string `msgpack:"type"`
}

// Encode serialises a message.
func Encode(m Message) ([]byte, error) {
	if err := checkType(m.Type); err != nil {
		return nil, err
	}
	env := envelope{
		Type:     m.Type,
		SceneID:  m.SceneID,
		BatchID:  m.BatchID,
		Source:   m.Source,
		Elements: make([]wireElement, 0, len(m.Elements)),
	}
	for _, e := range m.Elements {
		we, err := toWire(e)
		if err != nil {
			return nil, fmt.Errorf("encode element %q: %w", e.ID, err)
		}
		env.Elements = append(env.Elements, we)
	}
	return msgpack.Marshal(env)
}

// Decode parses a message produced by Encode.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}
	if err := checkType(env.Type); err != nil {
		return Message{}, err
	}
	m := Message{
		Type:     env.Type,
		SceneID:  env.SceneID,
		BatchID:  env.BatchID,
		Source:   env.Source,
		Elements: make([]element.Element, 0, len(env.Elements)),
	}
	for _, we := range env.Elements {
		e, err := fromWire(we)
		if err != nil {
			return Message{}, fmt.Errorf("decode element %q: %w", we.ID, err)
		}
		m.Elements = append(m.Elements, e)
	}
	return m, nil
}

func checkType(t MessageType) error {
	switch t {
	case TypeSceneInit, TypeSceneUpdate:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

func toWire(e element.Element) (wireElement, error) {
	we := wireElement{
		ID:           e.ID,
		Type:         e.Type,
		Version:      e.Version,
		VersionNonce: e.VersionNonce,
		Index:        e.Index,
		IsDeleted:    e.IsDeleted,
		ContainerID:  e.ContainerID,
		Updated:      e.Updated,
	}
	for _, b := range e.BoundElements {
		we.BoundElements = append(we.BoundElements, wireBound{ID: b.ID, Type: b.Type})
	}
	if len(e.Attrs) > 0 {
		attrs, err := element.MarshalCanonical(e.Attrs)
		if err != nil {
			return wireElement{}, err
		}
		we.Attrs = attrs
	}
	return we, nil
}

func fromWire(we wireElement) (element.Element, error) {
	e := element.Element{
		ID:           we.ID,
		Type:         we.Type,
		Version:      we.Version,
		VersionNonce: we.VersionNonce,
		Index:        we.Index,
		IsDeleted:    we.IsDeleted,
		ContainerID:  we.ContainerID,
		Updated:      we.Updated,
	}
	for _, b := range we.BoundElements {
		e.BoundElements = append(e.BoundElements, element.BoundElement{ID: b.ID, Type: b.Type})
	}
	if len(we.Attrs) > 0 {
		if err := json.Unmarshal(we.Attrs, &e.Attrs); err != nil {
			return element.Element{}, err
		}
	}
	return e, nil
}
