package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		name := strings.TrimSuffix(filepath.Base(path), ".yaml")
		t.Run(name, func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)
			assert.Equal(t, name, scenario.Name, "scenario name should match its file name")

			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_ReportsFailedAssertions(t *testing.T) {
	scenario := mustParse(t, `
name: wrong_expectations
description: Every assertion here is wrong
local:
  - {id: a, version: 3, nonce: 1, index: a0}
flow:
  - remote:
      - {id: a, version: 2, nonce: 9, index: a0}
assertions:
  - type: element
    id: a
    expect: {version: 2}
  - type: order
    ids: [b]
  - type: count
    count: 5
`)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "a.version = 2")
	assert.Contains(t, result.Errors[1], "ids [b]")
	assert.Contains(t, result.Errors[2], "5 elements")
}

func TestRun_UnexpectedError(t *testing.T) {
	scenario := mustParse(t, `
name: unexpected_error
description: A failing step without an expect clause fails the scenario
flow:
  - remote:
      - {id: box, version: 1, nonce: 1, index: a1, bound_elements: [{id: label, type: text}]}
      - {id: label, type: text, version: 1, nonce: 1, index: a0, container_id: box}
assertions:
  - type: count
    count: 0
`)

	result, err := Run(scenario)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "flow[0]: unexpected error")
}

func TestRun_ProductionModeKeepsInvalidBatch(t *testing.T) {
	scenario := mustParse(t, `
name: production_logs_only
description: Production mode logs the bound text violation and persists the batch
mode: production
flow:
  - remote:
      - {id: box, version: 1, nonce: 1, index: a1, bound_elements: [{id: label, type: text}]}
      - {id: label, type: text, version: 1, nonce: 1, index: a0, container_id: box}
assertions:
  - type: order
    ids: [label, box]
  - type: replay
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))
	require.Len(t, result.Steps, 1)
	assert.True(t, result.Steps[0].Stats.Validated)
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	scenario := mustParse(t, `
name: missing_error
description: An expected error that never happens fails the scenario
flow:
  - remote:
      - {id: a, version: 1, nonce: 1, index: a0}
    expect:
      error: invalid fractional indices
assertions:
  - type: count
    count: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "got success")
}

func TestRun_StatsMismatch(t *testing.T) {
	scenario := mustParse(t, `
name: stats_mismatch
description: Stats expectations are checked per step
flow:
  - remote:
      - {id: a, version: 1, nonce: 1, index: a0}
    expect:
      stats: {remote_discarded: 1}
assertions:
  - type: count
    count: 1
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "flow[0]: expected remote_discarded=1, got 0", result.Errors[0])
}

func TestRun_GeneratedBatchIDs(t *testing.T) {
	scenario := mustParse(t, `
name: generated_ids
description: Steps without a batch id are numbered by position
flow:
  - remote: [{id: a, version: 1, nonce: 1, index: a0}]
  - batch_id: custom
    remote: [{id: b, version: 1, nonce: 1, index: a1}]
  - remote: [{id: c, version: 1, nonce: 1, index: a2}]
assertions:
  - type: order
    ids: [a, b, c]
`)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors:\n%s", strings.Join(result.Errors, "\n"))

	var ids []string
	var seqs []int64
	for _, s := range result.Steps {
		ids = append(ids, s.BatchID)
		seqs = append(seqs, s.Seq)
	}
	assert.Equal(t, []string{"batch-1", "custom", "batch-3"}, ids)
	assert.Equal(t, []int64{1, 2, 3}, seqs)
}

func TestRun_RejectsFloatAttrs(t *testing.T) {
	scenario := mustParse(t, `
name: float_attrs
description: Float attributes cannot be hashed canonically
flow:
  - remote:
      - {id: a, version: 1, nonce: 1, index: a0, attrs: {x: 1.5}}
assertions:
  - type: count
    count: 1
`)

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats are not allowed")
}

func mustParse(t *testing.T, doc string) *Scenario {
	t.Helper()
	s, err := ParseScenario([]byte(doc))
	require.NoError(t, err)
	return s
}
