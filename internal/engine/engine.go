package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/reconcile"
	"github.com/roach88/scenesync/internal/scene"
	"github.com/roach88/scenesync/internal/store"
	"github.com/roach88/scenesync/internal/wire"
)

// Batch is a set of elements to merge into a scene.
type Batch struct {
	SceneID string
	BatchID string // generated when empty
	Source  string
	Type    wire.MessageType // defaults to SCENE_UPDATE

	Elements []element.Element

	// Editing is the local editing state at the time the batch is applied.
	Editing element.EditingState
}

// Applied is the outcome of applying one batch.
type Applied struct {
	Seq          int64
	SceneID      string
	BatchID      string
	Source       string
	Elements     []element.Element
	SnapshotHash string
	Stats        reconcile.Stats

	// SceneVersion and VersionsHash summarise the element versions of the
	// resulting scene. Replicas compare them before comparing hashes.
	SceneVersion int64
	VersionsHash uint32

	// Duplicate is set when the batch id was already applied; nothing
	// changed and Elements is the current scene. FirstSeq is the seq it
	// was first applied at, when known.
	Duplicate bool
	FirstSeq  int64
}

// Engine is the single-writer batch engine.
//
// Thread-safety model:
//   - Enqueue(), Apply(), Scene(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//
// Apply holds a mutex for its whole duration, so batches are reconciled one
// at a time whether they come through Run or a direct Apply call.
type Engine struct {
	store      *store.Store
	clock      *Clock
	queue      *batchQueue
	ids        BatchIDGenerator
	reconciler *reconcile.Reconciler

	mu        sync.Mutex
	scenes    map[string]*scene.Scene
	listeners []func(Applied)
}

// New creates an Engine.
func New(s *store.Store, r *reconcile.Reconciler, ids BatchIDGenerator) *Engine {
	return NewWithClock(s, r, ids, NewClock())
}

// NewWithClock creates an Engine with a pre-configured clock.
// Used to resume from the store's last seq after a restart.
func NewWithClock(s *store.Store, r *reconcile.Reconciler, ids BatchIDGenerator, clock *Clock) *Engine {
	return &Engine{
		store:      s,
		clock:      clock,
		queue:      newBatchQueue(),
		ids:        ids,
		reconciler: r,
		scenes:     make(map[string]*scene.Scene),
	}
}

// Resume creates an Engine whose clock continues after the highest seq in
// the store.
func Resume(ctx context.Context, s *store.Store, r *reconcile.Reconciler, ids BatchIDGenerator) (*Engine, error) {
	last, err := s.LastSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume engine: %w", err)
	}
	return NewWithClock(s, r, ids, NewClockAt(last)), nil
}

// OnApplied registers a listener called after every applied batch,
// duplicates included. Listeners run on the applying goroutine and must
// not call Apply.
func (e *Engine) OnApplied(fn func(Applied)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// NewBatchID generates an id for a batch.
func (e *Engine) NewBatchID() string {
	return e.ids.Generate()
}

// Scene returns the live scene, loading it from the store on first use.
func (e *Engine) Scene(ctx context.Context, sceneID string) (*scene.Scene, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadScene(ctx, sceneID)
}

// loadScene returns the cached scene or loads it. Caller holds e.mu.
func (e *Engine) loadScene(ctx context.Context, sceneID string) (*scene.Scene, error) {
	if sc, ok := e.scenes[sceneID]; ok {
		return sc, nil
	}
	elements, err := e.store.LoadScene(ctx, sceneID)
	if err != nil {
		return nil, fmt.Errorf("load scene %s: %w", sceneID, err)
	}
	sc := scene.New(elements)
	e.scenes[sceneID] = sc
	return sc, nil
}

// Enqueue submits a batch for processing by the Run loop.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the engine has been stopped.
func (e *Engine) Enqueue(b Batch) bool {
	return e.queue.Enqueue(b)
}

// Apply reconciles one batch into its scene and persists the result.
func (e *Engine) Apply(ctx context.Context, b Batch) (Applied, error) {
	e.mu.Lock()
	applied, err := e.apply(ctx, b)
	listeners := e.listeners
	e.mu.Unlock()

	if err != nil {
		return Applied{}, err
	}
	for _, fn := range listeners {
		fn(applied)
	}
	return applied, nil
}

// apply does the work of Apply. Caller holds e.mu.
func (e *Engine) apply(ctx context.Context, b Batch) (Applied, error) {
	if b.SceneID == "" {
		return Applied{}, &ApplyError{Code: ErrCodeInvalidBatch, BatchID: b.BatchID, Err: errors.New("missing scene id")}
	}
	if b.BatchID == "" {
		b.BatchID = e.ids.Generate()
	}
	if b.Type == "" {
		b.Type = wire.TypeSceneUpdate
	}

	sc, err := e.loadScene(ctx, b.SceneID)
	if err != nil {
		return Applied{}, &ApplyError{Code: ErrCodeStore, SceneID: b.SceneID, BatchID: b.BatchID, Err: err}
	}

	seen, err := e.store.HasBatch(ctx, b.BatchID)
	if err != nil {
		return Applied{}, &ApplyError{Code: ErrCodeStore, SceneID: b.SceneID, BatchID: b.BatchID, Err: err}
	}
	if seen {
		return e.duplicate(ctx, sc, b)
	}

	merged, stats, err := e.reconciler.ReconcileWithStats(sc.Elements(), b.Elements, b.Editing)
	if err != nil {
		return Applied{}, &ApplyError{Code: ErrCodeInvalidIndices, SceneID: b.SceneID, BatchID: b.BatchID, Err: err}
	}

	payload, err := wire.Encode(wire.Message{
		Type:     b.Type,
		SceneID:  b.SceneID,
		BatchID:  b.BatchID,
		Source:   b.Source,
		Elements: b.Elements,
	})
	if err != nil {
		return Applied{}, &ApplyError{Code: ErrCodeEncode, SceneID: b.SceneID, BatchID: b.BatchID, Err: err}
	}

	hash, err := element.SnapshotHash(merged)
	if err != nil {
		return Applied{}, &ApplyError{Code: ErrCodeEncode, SceneID: b.SceneID, BatchID: b.BatchID, Err: err}
	}

	// The clock only advances once the batch is logged, so a failed write
	// leaves no gap.
	seq := e.clock.Current() + 1
	inserted, err := e.store.ApplyBatch(ctx, store.BatchRecord{
		Seq:          seq,
		SceneID:      b.SceneID,
		BatchID:      b.BatchID,
		Source:       b.Source,
		Payload:      payload,
		Editing:      b.Editing,
		ResultHash:   hash,
		ElementCount: len(merged),
	}, merged)
	if err != nil {
		return Applied{}, &ApplyError{Code: ErrCodeStore, SceneID: b.SceneID, BatchID: b.BatchID, Err: err}
	}
	if !inserted {
		// Another writer on the same database logged this id first.
		return e.duplicate(ctx, sc, b)
	}
	e.clock.Next()

	sc.Replace(merged)

	slog.Info("batch applied",
		"scene_id", b.SceneID,
		"batch_id", b.BatchID,
		"source", b.Source,
		"seq", seq,
		"elements", len(merged),
		"accepted", stats.RemoteAccepted,
		"discarded", stats.RemoteDiscarded,
		"repaired", stats.IndicesRepaired,
		"scene_version", sc.Version(),
	)

	return Applied{
		Seq:          seq,
		SceneID:      b.SceneID,
		BatchID:      b.BatchID,
		Source:       b.Source,
		Elements:     element.Clone(merged),
		SnapshotHash: hash,
		Stats:        stats,
		SceneVersion: sc.Version(),
		VersionsHash: element.HashVersions(merged),
	}, nil
}

// duplicate builds the result for a batch id that is already logged.
// Caller holds e.mu.
func (e *Engine) duplicate(ctx context.Context, sc *scene.Scene, b Batch) (Applied, error) {
	rec, err := e.store.ReadBatch(ctx, b.BatchID)
	if err != nil {
		return Applied{}, &ApplyError{Code: ErrCodeStore, SceneID: b.SceneID, BatchID: b.BatchID, Err: err}
	}
	slog.Debug("duplicate batch skipped",
		"scene_id", b.SceneID,
		"batch_id", b.BatchID,
		"first_seq", rec.Seq,
	)

	current := sc.Elements()
	hash, err := element.SnapshotHash(current)
	if err != nil {
		return Applied{}, &ApplyError{Code: ErrCodeEncode, SceneID: b.SceneID, BatchID: b.BatchID, Err: err}
	}
	return Applied{
		SceneID:      b.SceneID,
		BatchID:      b.BatchID,
		Source:       b.Source,
		Elements:     current,
		SnapshotHash: hash,
		SceneVersion: sc.Version(),
		VersionsHash: element.HashVersions(current),
		Duplicate:    true,
		FirstSeq:     rec.Seq,
	}, nil
}

// Run starts the single-writer batch loop.
// Blocks until context is cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: A batch that fails to apply is logged with its ids and
// the loop continues. Retrying would reorder batches relative to the log.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		b, ok := e.queue.TryDequeue()
		if ok {
			if _, err := e.Apply(ctx, b); err != nil {
				slog.Error("batch processing failed",
					"error", err,
					"scene_id", b.SceneID,
					"batch_id", b.BatchID,
					"source", b.Source,
					"elements", len(b.Elements),
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue, so this fires
			// immediately once stopped
			if e.queue.Len() == 0 && e.queue.isClosed() {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the engine.
// Batches already queued are still applied before Run returns.
func (e *Engine) Stop() {
	e.queue.Close()
}
