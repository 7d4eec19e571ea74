package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scenesync/internal/element"
)

func TestValidate_Elements(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "minimal",
			input: `[{"id":"a","type":"rectangle","version":1,"version_nonce":7,"is_deleted":false}]`,
		},
		{
			name: "full",
			input: `[{"id":"box","type":"rectangle","version":3,"version_nonce":-4,"index":"a0","is_deleted":false,
				"bound_elements":[{"id":"label","type":"text"}],"updated":1700000000000,
				"attrs":{"x":10,"y":-20,"stroke":"#000","points":[[0,0],[5,5]],"locked":null}}]`,
		},
		{
			name:  "empty array",
			input: `[]`,
		},
		{
			name:    "missing version",
			input:   `[{"id":"a","type":"rectangle","version_nonce":7,"is_deleted":false}]`,
			wantErr: true,
		},
		{
			name:    "version zero",
			input:   `[{"id":"a","type":"rectangle","version":0,"version_nonce":7,"is_deleted":false}]`,
			wantErr: true,
		},
		{
			name:    "empty id",
			input:   `[{"id":"","type":"rectangle","version":1,"version_nonce":7,"is_deleted":false}]`,
			wantErr: true,
		},
		{
			name:    "unknown field",
			input:   `[{"id":"a","type":"rectangle","version":1,"versionNonce":7,"is_deleted":false}]`,
			wantErr: true,
		},
		{
			name:    "fractional version",
			input:   `[{"id":"a","type":"rectangle","version":1.5,"version_nonce":7,"is_deleted":false}]`,
			wantErr: true,
		},
		{
			name:    "not an array",
			input:   `{"id":"a"}`,
			wantErr: true,
		},
		{
			name:    "malformed json",
			input:   `[{"id":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(DefElements, []byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				var ve *ValidationError
				assert.True(t, errors.As(err, &ve), "got %T: %v", err, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidate_UnknownDefinition(t *testing.T) {
	err := Validate("#Nope", []byte(`[]`))
	assert.Error(t, err)
}

func TestDecodeElements(t *testing.T) {
	data := []byte(`[{"id":"a","type":"text","version":2,"version_nonce":9,"index":"a0","is_deleted":true,"container_id":"box","attrs":{"text":"hi"}}]`)

	got, err := DecodeElements(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, element.Element{
		ID:           "a",
		Type:         "text",
		Version:      2,
		VersionNonce: 9,
		Index:        "a0",
		IsDeleted:    true,
		ContainerID:  "box",
		Attrs:        element.Object{"text": element.String("hi")},
	}, got[0])
}

func TestDecodeElements_FloatAttrs(t *testing.T) {
	data := []byte(`[{"id":"a","type":"rectangle","version":1,"version_nonce":1,"is_deleted":false,"attrs":{"x":1.5,"y":2.0}}]`)
	got, err := DecodeElements(data)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, element.Float(1.5), got[0].Attrs["x"])
	assert.Equal(t, element.Int(2), got[0].Attrs["y"])
}

func TestDecodeElements_Empty(t *testing.T) {
	got, err := DecodeElements([]byte(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDecodeBatch(t *testing.T) {
	data := []byte(`{"scene_id":"s1","source":"peer-1","editing":{"editing_text_element_id":"a"},
		"elements":[{"id":"a","type":"text","version":1,"version_nonce":1,"is_deleted":false}]}`)

	b, err := DecodeBatch(data)
	require.NoError(t, err)
	assert.Equal(t, "s1", b.SceneID)
	assert.Equal(t, "peer-1", b.Source)
	assert.Equal(t, "a", b.Editing.EditingTextElementID)
	assert.Len(t, b.Elements, 1)
}

func TestDecodeBatch_MissingScene(t *testing.T) {
	_, err := DecodeBatch([]byte(`{"elements":[]}`))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
}

func TestValidationError_Format(t *testing.T) {
	err := &ValidationError{Path: "0.version", Message: "invalid value 0"}
	assert.Equal(t, "0.version: invalid value 0", err.Error())
}
