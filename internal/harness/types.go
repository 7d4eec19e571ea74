package harness

import (
	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/reconcile"
)

// StepResult is the outcome of one flow step.
type StepResult struct {
	BatchID   string
	Seq       int64
	Duplicate bool
	Stats     reconcile.Stats
	Err       error
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Steps holds one entry per flow step, seed batch excluded.
	Steps []StepResult `json:"-"`

	// Elements is the scene as persisted after the last step.
	Elements []element.Element `json:"elements"`

	// SnapshotHash is the snapshot hash of Elements.
	SnapshotHash string `json:"snapshot_hash"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// statFields maps the JSON names of reconcile.Stats counters to
// accessors.
var statFields = map[string]func(reconcile.Stats) int{
	"remote_accepted":    func(s reconcile.Stats) int { return s.RemoteAccepted },
	"remote_discarded":   func(s reconcile.Stats) int { return s.RemoteDiscarded },
	"duplicates_ignored": func(s reconcile.Stats) int { return s.DuplicatesIgnored },
	"local_carried":      func(s reconcile.Stats) int { return s.LocalCarried },
	"indices_repaired":   func(s reconcile.Stats) int { return s.IndicesRepaired },
}

// elementFields maps the fields an element assertion may check.
var elementFields = map[string]func(element.Element) any{
	"type":          func(e element.Element) any { return e.Type },
	"version":       func(e element.Element) any { return e.Version },
	"version_nonce": func(e element.Element) any { return e.VersionNonce },
	"index":         func(e element.Element) any { return e.Index },
	"is_deleted":    func(e element.Element) any { return e.IsDeleted },
	"container_id":  func(e element.Element) any { return e.ContainerID },
}
