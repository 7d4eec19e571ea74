package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/scenesync/internal/element"
)

func sampleElements() []element.Element {
	box := element.Element{
		ID:            "box",
		Type:          "rectangle",
		Version:       3,
		VersionNonce:  -17,
		Index:         "a0",
		BoundElements: []element.BoundElement{{ID: "label", Type: element.TypeText}},
		Updated:       1700000000000,
		Attrs: element.Object{
			"x":      element.Int(10),
			"y":      element.Float(12.75),
			"points": element.Array{element.Int(0), element.Float(5.5)},
			"style":  element.Object{"stroke": element.String("#000"), "dashed": element.Bool(false)},
			"link":   element.Null{},
		},
	}
	label := element.Element{
		ID:           "label",
		Type:         element.TypeText,
		Version:      1,
		VersionNonce: 4,
		Index:        "a1",
		ContainerID:  "box",
		IsDeleted:    true,
	}
	return []element.Element{box, label}
}

func TestEncodeDecode_PreservesSnapshotHash(t *testing.T) {
	msg := Message{
		Type:     TypeSceneUpdate,
		SceneID:  "scene-1",
		BatchID:  "batch-1",
		Source:   "peer-a",
		Elements: sampleElements(),
	}

	data, err := Encode(msg)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, msg.Type, got.Type)
	assert.Equal(t, msg.SceneID, got.SceneID)
	assert.Equal(t, msg.BatchID, got.BatchID)
	assert.Equal(t, msg.Source, got.Source)
	assert.Equal(t, element.MustSnapshotHash(msg.Elements), element.MustSnapshotHash(got.Elements))
	assert.Equal(t, msg.Elements[1], got.Elements[1])
	assert.Equal(t, element.Float(12.75), got.Elements[0].Attrs["y"])
}

func TestEncode_EmptyScene(t *testing.T) {
	data, err := Encode(Message{Type: TypeSceneInit, SceneID: "s"})
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, TypeSceneInit, got.Type)
	assert.NotNil(t, got.Elements)
	assert.Empty(t, got.Elements)
}

func TestEncode_UnknownType(t *testing.T) {
	_, err := Encode(Message{Type: "MOUSE_LOCATION"})
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestDecode_UnknownType(t *testing.T) {
	data, err := msgpack.Marshal(map[string]any{"type": "IDLE_STATUS", "scene_id": "s"})
	require.NoError(t, err)

	_, err = Decode(data)
	assert.True(t, errors.Is(err, ErrUnknownType))
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode([]byte{0xc1})
	assert.Error(t, err)
}

func TestDecode_BadAttrs(t *testing.T) {
	data, err := msgpack.Marshal(envelope{
		Type:     TypeSceneUpdate,
		SceneID:  "s",
		Elements: []wireElement{{ID: "a", Type: "rectangle", Version: 1, Attrs: []byte(`{"x":1.5}`)}},
	})
	require.NoError(t, err)

	_, err = Decode(data)
	assert.Error(t, err)
}
