package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/reconcile"
	"github.com/roach88/scenesync/internal/store"
	"github.com/roach88/scenesync/internal/wire"
)

// SceneID is the scene every scenario runs in.
const SceneID = "scenario"

// seedBatchID names the batch that installs the local scene.
const seedBatchID = "seed"

// Harness is the test execution engine for one scenario.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Apply the local elements as a SCENE_INIT batch
// 3. Apply each flow step and check its expect clause
// 4. Load the persisted scene and evaluate assertions
//
// The returned error reports harness failures (bad element attributes, a
// seed that does not apply). Assertion failures are recorded in Result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	mode := reconcile.ModeTest
	if scenario.Mode != "" {
		mode = reconcile.Mode(scenario.Mode)
	}
	cfg, err := reconcile.ConfigForMode(mode)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	r := reconcile.New(cfg, reconcile.WithLogger(logger))

	h := &Harness{
		store:  st,
		engine: engine.New(st, r, engine.NewFixedGenerator(defaultBatchIDs(scenario.Flow)...)),
		logger: logger,
	}

	ctx := context.Background()

	if err := h.seed(ctx, scenario.Local); err != nil {
		return nil, fmt.Errorf("failed to seed local scene: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	result.Elements, err = st.LoadScene(ctx, SceneID)
	if err != nil {
		return nil, fmt.Errorf("failed to load final scene: %w", err)
	}
	result.SnapshotHash, err = element.SnapshotHash(result.Elements)
	if err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// defaultBatchIDs names the steps without an explicit batch id, in order.
func defaultBatchIDs(flow []FlowStep) []string {
	var ids []string
	for i, step := range flow {
		if step.BatchID == "" {
			ids = append(ids, fmt.Sprintf("batch-%d", i+1))
		}
	}
	return ids
}

// seed installs the local scene through the engine so the batch log can
// replay it.
func (h *Harness) seed(ctx context.Context, local []ElementFixture) error {
	if len(local) == 0 {
		return nil
	}
	elements, err := toElements(local)
	if err != nil {
		return err
	}
	_, err = h.engine.Apply(ctx, engine.Batch{
		SceneID:  SceneID,
		BatchID:  seedBatchID,
		Source:   "local",
		Type:     wire.TypeSceneInit,
		Elements: elements,
	})
	return err
}

// executeFlow applies every step and checks its expect clause.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		remote, err := toElements(step.Remote)
		if err != nil {
			return fmt.Errorf("flow step %d: %w", i, err)
		}

		applied, err := h.engine.Apply(ctx, engine.Batch{
			SceneID:  SceneID,
			BatchID:  step.BatchID,
			Source:   step.Source,
			Elements: remote,
			Editing:  step.Editing,
		})

		sr := StepResult{
			BatchID:   applied.BatchID,
			Seq:       applied.Seq,
			Duplicate: applied.Duplicate,
			Stats:     applied.Stats,
			Err:       err,
		}
		var ae *engine.ApplyError
		if errors.As(err, &ae) {
			// Apply returns a zero Applied on failure
			sr.BatchID = ae.BatchID
		}
		result.Steps = append(result.Steps, sr)

		if msg := checkExpect(i, step.Expect, sr); msg != "" {
			result.AddError(msg)
		}

		h.logger.Info("flow step completed",
			"step", i,
			"batch_id", sr.BatchID,
			"seq", sr.Seq,
			"error", err,
		)
	}
	return nil
}

// checkExpect compares a step outcome to its expect clause. Returns an
// empty string on success.
func checkExpect(i int, expect *ExpectClause, sr StepResult) string {
	if expect == nil {
		expect = &ExpectClause{}
	}

	if expect.Error == "" && sr.Err != nil {
		return fmt.Sprintf("flow[%d]: unexpected error: %v", i, sr.Err)
	}
	if expect.Error != "" {
		if sr.Err == nil {
			return fmt.Sprintf("flow[%d]: expected error containing %q, got success", i, expect.Error)
		}
		if !strings.Contains(sr.Err.Error(), expect.Error) {
			return fmt.Sprintf("flow[%d]: expected error containing %q, got %q", i, expect.Error, sr.Err.Error())
		}
		return ""
	}

	if expect.Duplicate != sr.Duplicate {
		return fmt.Sprintf("flow[%d]: expected duplicate=%t, got %t", i, expect.Duplicate, sr.Duplicate)
	}

	for _, key := range sortedKeys(expect.Stats) {
		want := expect.Stats[key]
		if got := statFields[key](sr.Stats); got != want {
			return fmt.Sprintf("flow[%d]: expected %s=%d, got %d", i, key, want, got)
		}
	}
	return ""
}
