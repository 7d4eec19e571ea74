package cli

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/store"
)

const firstBatch = `{"scene_id":"board","batch_id":"b1","source":"peer-a","elements":[
	{"id":"a","type":"rectangle","version":1,"version_nonce":5,"index":"a0","is_deleted":false}
]}`

const secondBatch = `{"scene_id":"board","batch_id":"b2","source":"peer-b","elements":[
	{"id":"a","type":"rectangle","version":2,"version_nonce":3,"index":"a0","is_deleted":false},
	{"id":"b","type":"ellipse","version":1,"version_nonce":1,"is_deleted":false}
]}`

func applyFile(t *testing.T, dbPath, batchPath string, extra ...string) ApplyResult {
	t.Helper()
	args := append([]string{"--db", dbPath}, extra...)
	args = append(args, batchPath)

	out, err := execute(t, NewApplyCommand(&RootOptions{Format: "json"}), args...)
	require.NoError(t, err)

	var result ApplyResult
	resp := decodeResponse(t, out, &result)
	require.Equal(t, "ok", resp.Status)
	return result
}

func TestApplyNewScene(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")
	batch := writeFile(t, dir, "b1.json", firstBatch)

	result := applyFile(t, dbPath, batch)
	assert.Equal(t, int64(1), result.Seq)
	assert.Equal(t, "board", result.SceneID)
	assert.Equal(t, "b1", result.BatchID)
	assert.False(t, result.Duplicate)
	assert.Equal(t, 1, result.Elements)
	assert.Equal(t, 1, result.Stats.RemoteAccepted)
	assert.NotEmpty(t, result.SnapshotHash)
	assert.Equal(t, int64(1), result.SceneVersion)
	assert.Equal(t, uint32(5381*33+5), result.VersionsHash)
}

func TestApplyResumesSeq(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")

	applyFile(t, dbPath, writeFile(t, dir, "b1.json", firstBatch))
	result := applyFile(t, dbPath, writeFile(t, dir, "b2.json", secondBatch))

	assert.Equal(t, int64(2), result.Seq)
	assert.Equal(t, 2, result.Elements)
	assert.Equal(t, 2, result.Stats.RemoteAccepted)
}

func TestApplyDuplicateBatch(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")
	batch := writeFile(t, dir, "b1.json", firstBatch)

	first := applyFile(t, dbPath, batch)
	again := applyFile(t, dbPath, batch)

	assert.True(t, again.Duplicate)
	assert.Equal(t, first.Seq, again.FirstSeq)
	assert.Equal(t, first.SnapshotHash, again.SnapshotHash)
	assert.Equal(t, first.VersionsHash, again.VersionsHash)

	out, err := execute(t, NewApplyCommand(&RootOptions{Format: "text"}), "--db", dbPath, batch)
	require.NoError(t, err)
	assert.Contains(t, out, "already applied to board at seq 1")
}

func TestApplyGeneratedBatchID(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")
	batch := writeFile(t, dir, "batch.json", `{"scene_id":"board","elements":[]}`)

	cmd := newApplyCommand(&ApplyOptions{
		RootOptions: &RootOptions{Format: "json"},
		IDs:         engine.NewFixedGenerator("gen-1"),
	})
	out, err := execute(t, cmd, "--db", dbPath, batch)
	require.NoError(t, err)

	var result ApplyResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "gen-1", result.BatchID)
	assert.Equal(t, int64(1), result.Seq)
	assert.Zero(t, result.Elements)
}

func TestApplySceneOverride(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")

	result := applyFile(t, dbPath, writeFile(t, dir, "b1.json", firstBatch), "--scene", "other")
	assert.Equal(t, "other", result.SceneID)
}

func TestApplyInvalidIndicesRejected(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")
	batch := writeFile(t, dir, "bad.json", `{"scene_id":"board","batch_id":"bad","elements":[
		{"id":"box","type":"rectangle","version":1,"version_nonce":1,"index":"a1","is_deleted":false,
		 "bound_elements":[{"id":"label","type":"text"}]},
		{"id":"label","type":"text","version":1,"version_nonce":1,"index":"a0","is_deleted":false,"container_id":"box"}
	]}`)

	out, err := execute(t, NewApplyCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--mode", "test", batch)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E004]")

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	has, err := st.HasBatch(context.Background(), "bad")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestApplySchemaError(t *testing.T) {
	dir := t.TempDir()
	batch := writeFile(t, dir, "batch.json", `{"elements":[]}`)

	out, err := execute(t, NewApplyCommand(&RootOptions{Format: "text"}), "--db", filepath.Join(dir, "scenes.db"), batch)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E003]")
}

func TestExportScene(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")
	applyFile(t, dbPath, writeFile(t, dir, "b1.json", firstBatch))
	applied := applyFile(t, dbPath, writeFile(t, dir, "b2.json", secondBatch))

	out, err := execute(t, NewExportCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--scene", "board")
	require.NoError(t, err)

	var result ExportResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "board", result.SceneID)
	assert.Equal(t, int64(2), result.LastSeq)
	assert.Equal(t, 2, result.Batches)
	assert.Equal(t, applied.SnapshotHash, result.SnapshotHash)

	text, err := execute(t, NewExportCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--scene", "board")
	require.NoError(t, err)
	assert.Contains(t, text, `"id":"a"`)
	assert.Contains(t, text, `"id":"b"`)
}

func TestExportUnknownScene(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")
	applyFile(t, dbPath, writeFile(t, dir, "b1.json", firstBatch))

	out, err := execute(t, NewExportCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--scene", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scene not found")
}

func TestExportMissingDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	out, err := execute(t, NewExportCommand(&RootOptions{Format: "text"}), "--db", dbPath, "--scene", "board")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "database not found")
}

func TestExportMissingSceneFlag(t *testing.T) {
	_, err := execute(t, NewExportCommand(&RootOptions{Format: "text"}), "--db", "x.db")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestReplayReproduces(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")
	applyFile(t, dbPath, writeFile(t, dir, "b1.json", firstBatch))
	applyFile(t, dbPath, writeFile(t, dir, "b2.json", secondBatch))

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Scene: board")
	assert.Contains(t, out, "Batches: 2, elements: 2")
	assert.Contains(t, out, "✓ All scenes reproduced from the log")
}

func TestReplayJSON(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")
	applied := applyFile(t, dbPath, writeFile(t, dir, "b1.json", firstBatch))

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", dbPath, "--scene", "board")
	require.NoError(t, err)

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.AllReproduced)
	require.Len(t, result.Scenes, 1)
	assert.Equal(t, applied.SnapshotHash, result.Scenes[0].SnapshotHash)
	assert.Equal(t, applied.SnapshotHash, result.Scenes[0].StoredHash)
}

func TestReplayDetectsTampering(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")
	applyFile(t, dbPath, writeFile(t, dir, "b1.json", firstBatch))

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	_, err = st.DB().Exec(`UPDATE batches SET result_hash = 'bogus'`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "json"}), "--db", dbPath)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ReplayResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeReplayMismatch, resp.Error.Code)
	require.Len(t, result.Scenes, 1)
	require.Len(t, result.Scenes[0].Mismatches, 1)
	assert.Equal(t, "bogus", result.Scenes[0].Mismatches[0].Want)
}

func TestReplayEmptyDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "scenes.db")
	st, err := store.Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	out, err := execute(t, NewReplayCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "No scenes found in database.")
}
