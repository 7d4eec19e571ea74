package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/reconcile"
	"github.com/roach88/scenesync/internal/store"
	"github.com/roach88/scenesync/internal/wire"
)

// ReplayResult reports a replay of one scene's batch log.
type ReplayResult struct {
	SceneID      string
	Batches      int
	Elements     []element.Element
	SnapshotHash string
	Mismatches   []ReplayMismatch
}

// ReplayMismatch is a batch whose replayed result differs from the
// recorded one.
type ReplayMismatch struct {
	Seq     int64
	BatchID string
	Want    string
	Got     string
}

// Matches reports whether every batch reproduced its recorded hash.
func (r ReplayResult) Matches() bool {
	return len(r.Mismatches) == 0
}

// Replay rebuilds a scene from its batch log, starting from an empty
// collection, and compares each step against the recorded snapshot hash.
//
// The same reconciliation code path runs as during normal operation. Index
// validation is disabled: it never changes the output, and a diagnostic
// that was only logged when the batch was applied must not abort replay.
// Replay does not write to the store.
func Replay(ctx context.Context, s *store.Store, sceneID string) (ReplayResult, error) {
	batches, err := s.ReadBatches(ctx, sceneID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", sceneID, err)
	}

	r := reconcile.New(reconcile.Config{Mode: reconcile.ModeTest})

	result := ReplayResult{SceneID: sceneID, Batches: len(batches)}
	current := []element.Element{}

	for _, rec := range batches {
		if err := ctx.Err(); err != nil {
			return ReplayResult{}, err
		}

		msg, err := wire.Decode(rec.Payload)
		if err != nil {
			return ReplayResult{}, fmt.Errorf("replay %s: batch %s (seq %d): %w", sceneID, rec.BatchID, rec.Seq, err)
		}

		current, err = r.Reconcile(current, msg.Elements, rec.Editing)
		if err != nil {
			return ReplayResult{}, fmt.Errorf("replay %s: batch %s (seq %d): %w", sceneID, rec.BatchID, rec.Seq, err)
		}

		got, err := element.SnapshotHash(current)
		if err != nil {
			return ReplayResult{}, fmt.Errorf("replay %s: %w", sceneID, err)
		}
		if got != rec.ResultHash {
			slog.Warn("replay mismatch",
				"scene_id", sceneID,
				"batch_id", rec.BatchID,
				"seq", rec.Seq,
				"want", rec.ResultHash,
				"got", got,
			)
			result.Mismatches = append(result.Mismatches, ReplayMismatch{
				Seq:     rec.Seq,
				BatchID: rec.BatchID,
				Want:    rec.ResultHash,
				Got:     got,
			})
		}
	}

	result.Elements = current
	result.SnapshotHash, err = element.SnapshotHash(current)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", sceneID, err)
	}
	return result, nil
}
