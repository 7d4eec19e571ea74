package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/scenesync/internal/element"
)

// Snapshot renders a result as canonical JSON for golden comparison.
//
// The snapshot holds every step outcome and the final scene. It leaves out
// hashes so golden files stay reviewable by hand.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	steps := make([]any, len(result.Steps))
	for i, s := range result.Steps {
		step := map[string]any{
			"batch_id": s.BatchID,
			"seq":      s.Seq,
			"stats": map[string]any{
				"remote_accepted":    s.Stats.RemoteAccepted,
				"remote_discarded":   s.Stats.RemoteDiscarded,
				"duplicates_ignored": s.Stats.DuplicatesIgnored,
				"local_carried":      s.Stats.LocalCarried,
				"indices_repaired":   s.Stats.IndicesRepaired,
				"validated":          s.Stats.Validated,
			},
		}
		if s.Duplicate {
			step["duplicate"] = true
		}
		if s.Err != nil {
			step["error"] = s.Err.Error()
		}
		steps[i] = step
	}

	data, err := element.MarshalElements(result.Elements)
	if err != nil {
		return nil, err
	}
	elements, err := element.ParseValue(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot elements: %w", err)
	}

	return element.MarshalCanonical(map[string]any{
		"scenario": scenarioName,
		"steps":    steps,
		"elements": elements,
	})
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, snapshot)

	return nil
}
