package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/reconcile"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mode selects the reconcile preset. Defaults to "test".
	Mode string `yaml:"mode,omitempty"`

	// Local is the scene before the first batch arrives.
	Local []ElementFixture `yaml:"local,omitempty"`

	// Flow lists the remote batches, applied in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final scene.
	Assertions []Assertion `yaml:"assertions"`
}

// ElementFixture is the YAML shape of an element.
type ElementFixture struct {
	ID            string                 `yaml:"id"`
	Type          string                 `yaml:"type,omitempty"` // defaults to rectangle
	Version       int64                  `yaml:"version"`
	Nonce         int64                  `yaml:"nonce"`
	Index         string                 `yaml:"index,omitempty"`
	Deleted       bool                   `yaml:"deleted,omitempty"`
	ContainerID   string                 `yaml:"container_id,omitempty"`
	BoundElements []element.BoundElement `yaml:"bound_elements,omitempty"`
	Attrs         map[string]any         `yaml:"attrs,omitempty"`
}

// FlowStep is one remote batch.
type FlowStep struct {
	// BatchID defaults to batch-N for the Nth step. Reusing an id
	// replays a delivery.
	BatchID string `yaml:"batch_id,omitempty"`

	// Source names the sending peer.
	Source string `yaml:"source,omitempty"`

	// Editing is the local editing state while the batch is applied.
	Editing element.EditingState `yaml:"editing,omitempty"`

	// Remote is the batch content. May be empty.
	Remote []ElementFixture `yaml:"remote"`

	// Expect checks the outcome of this step. If nil the step must
	// succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a flow step.
type ExpectClause struct {
	// Error is a substring of the expected error. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Duplicate expects the batch id to have been seen already.
	Duplicate bool `yaml:"duplicate,omitempty"`

	// Stats is a subset match on the reconcile statistics, keyed by
	// their JSON names (remote_accepted, remote_discarded, ...).
	Stats map[string]int `yaml:"stats,omitempty"`
}

// Assertion validates the final scene.
type Assertion struct {
	// Type specifies the assertion type:
	// - "order": output ids equal IDs, in order
	// - "element": element ID matches Expect (subset)
	// - "count": scene holds exactly Count elements
	// - "valid_indices": every index is valid and ordered
	// - "replay": the batch log replays to the same hashes
	// - "final_state": query Table and verify expected values
	Type string `yaml:"type"`

	// IDs is the expected collection order (used by order).
	IDs []string `yaml:"ids,omitempty"`

	// ID selects the element (used by element).
	ID string `yaml:"id,omitempty"`

	// Table is the state table name (used by final_state).
	Table string `yaml:"table,omitempty"`

	// Where specifies query filters (used by final_state).
	// All fields must match exactly.
	Where map[string]any `yaml:"where,omitempty"`

	// Expect contains expected field values (used by element and
	// final_state). Subset match: only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected number of elements (used by count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertOrder        = "order"
	AssertElement      = "element"
	AssertCount        = "count"
	AssertValidIndices = "valid_indices"
	AssertReplay       = "replay"
	AssertFinalState   = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Mode != "" {
		if _, err := reconcile.ParseMode(s.Mode); err != nil {
			return fmt.Errorf("mode: %w", err)
		}
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, fx := range s.Local {
		if fx.ID == "" {
			return fmt.Errorf("local[%d]: id is required", i)
		}
	}

	for i, step := range s.Flow {
		for j, fx := range step.Remote {
			if fx.ID == "" {
				return fmt.Errorf("flow[%d].remote[%d]: id is required", i, j)
			}
		}
		if step.Expect != nil {
			for key := range step.Expect.Stats {
				if _, ok := statFields[key]; !ok {
					return fmt.Errorf("flow[%d].expect.stats: unknown stat %q", i, key)
				}
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOrder:
		if a.IDs == nil {
			return fmt.Errorf("assertions[%d]: ids is required for order", index)
		}
	case AssertElement:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for element", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for element", index)
		}
		for key := range a.Expect {
			if _, ok := elementFields[key]; !ok {
				return fmt.Errorf("assertions[%d]: unknown element field %q", index, key)
			}
		}
	case AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertValidIndices, AssertReplay:
	case AssertFinalState:
		if a.Table == "" {
			return fmt.Errorf("assertions[%d]: table is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// toElement converts the YAML shape into an element.
func (s ElementFixture) toElement() (element.Element, error) {
	e := element.Element{
		ID:            s.ID,
		Type:          s.Type,
		Version:       s.Version,
		VersionNonce:  s.Nonce,
		Index:         s.Index,
		IsDeleted:     s.Deleted,
		ContainerID:   s.ContainerID,
		BoundElements: s.BoundElements,
	}
	if e.Type == "" {
		e.Type = "rectangle"
	}
	if len(s.Attrs) > 0 {
		v, err := element.FromGo(s.Attrs)
		if err != nil {
			return element.Element{}, fmt.Errorf("element %q attrs: %w", s.ID, err)
		}
		e.Attrs = v.(element.Object)
	}
	return e, nil
}

func toElements(fixtures []ElementFixture) ([]element.Element, error) {
	out := make([]element.Element, 0, len(fixtures))
	for _, s := range fixtures {
		e, err := s.toElement()
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}
