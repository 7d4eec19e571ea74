package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scenesync/internal/order"
	"github.com/roach88/scenesync/internal/schema"
)

const outOfOrderScene = `[
	{"id":"a","type":"rectangle","version":1,"version_nonce":1,"index":"a1","is_deleted":false},
	{"id":"b","type":"rectangle","version":4,"version_nonce":2,"index":"a0","is_deleted":false}
]`

func TestValidateValidScene(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scene.json", `[
		{"id":"a","type":"rectangle","version":1,"version_nonce":1,"index":"a0","is_deleted":false},
		{"id":"b","type":"rectangle","version":1,"version_nonce":2,"index":"a1","is_deleted":false}
	]`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ 2 element(s), all indices valid")
}

func TestValidateValidSceneJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scene.json", `[]`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
}

func TestValidateOutOfOrder(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scene.json", outOfOrderScene)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "ordering invariant broken")
}

func TestValidateOutOfOrderJSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scene.json", outOfOrderScene)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), path)
	require.Error(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidIndices, resp.Error.Code)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateFix(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scene.json", outOfOrderScene)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "json"}), "--fix", path)
	require.NoError(t, err)

	var result ValidationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Positive(t, result.Repaired)
	assert.NotEmpty(t, result.Errors, "violations found before repair are reported")

	repaired, err := schema.DecodeElements(result.Elements)
	require.NoError(t, err)
	require.Len(t, repaired, 2)
	assert.Equal(t, "a", repaired[0].ID)
	assert.Equal(t, "b", repaired[1].ID)
	// Versions are not bumped by repair
	assert.Equal(t, int64(1), repaired[0].Version)
	assert.Equal(t, int64(4), repaired[1].Version)
	assert.NoError(t, order.ValidateIndices(repaired, order.ValidateOptions{ShouldThrow: true, IgnoreLogs: true}))
}

func TestValidateFixText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scene.json", outOfOrderScene)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "--fix", path)
	require.NoError(t, err)

	repaired, err := schema.DecodeElements([]byte(out))
	require.NoError(t, err)
	assert.True(t, order.IsOrdered(repaired))
}

func TestValidateFixCannotReorderBoundText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scene.json", `[
		{"id":"label","type":"text","version":1,"version_nonce":1,"index":"a0","is_deleted":false,"container_id":"box"},
		{"id":"box","type":"rectangle","version":1,"version_nonce":1,"index":"a1","is_deleted":false,
		 "bound_elements":[{"id":"label","type":"text"}]}
	]`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), "--fix", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "bound text ordering invariant broken")
}

func TestValidateSchemaError(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scene.json", `{"id":"a"}`)

	out, err := execute(t, NewValidateCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeSchema)
	assert.Contains(t, out, "invalid input")
}
