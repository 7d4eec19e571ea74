package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/scenesync/internal/element"
)

// SceneState summarises a stored scene.
type SceneState struct {
	SceneID      string
	LastSeq      int64
	SnapshotHash string
	ElementCount int
	BatchCount   int
}

// LoadScene returns the stored collection of a scene in draw order:
// ORDER BY fractional_index, id COLLATE BINARY.
//
// Returns an empty slice (not nil) for an unknown scene.
func (s *Store) LoadScene(ctx context.Context, sceneID string) ([]element.Element, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body
		FROM elements
		WHERE scene_id = ?
		ORDER BY fractional_index COLLATE BINARY ASC, id COLLATE BINARY ASC
	`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("query elements: %w", err)
	}
	defer rows.Close()

	elements := []element.Element{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan element: %w", err)
		}
		e, err := unmarshalElement(body)
		if err != nil {
			return nil, err
		}
		elements = append(elements, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate elements: %w", err)
	}
	return elements, nil
}

// ReadSceneState returns the summary of a scene.
// Returns sql.ErrNoRows if the scene does not exist.
func (s *Store) ReadSceneState(ctx context.Context, sceneID string) (SceneState, error) {
	state := SceneState{SceneID: sceneID}
	err := s.db.QueryRowContext(ctx, `
		SELECT last_seq, snapshot_hash,
			(SELECT COUNT(*) FROM elements WHERE scene_id = scenes.scene_id),
			(SELECT COUNT(*) FROM batches WHERE scene_id = scenes.scene_id)
		FROM scenes
		WHERE scene_id = ?
	`, sceneID).Scan(&state.LastSeq, &state.SnapshotHash, &state.ElementCount, &state.BatchCount)
	if err != nil {
		return SceneState{}, fmt.Errorf("read scene state: %w", err)
	}
	return state, nil
}

// ListScenes returns all scene ids in binary order.
func (s *Store) ListScenes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT scene_id FROM scenes ORDER BY scene_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query scenes: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenes: %w", err)
	}
	return ids, nil
}

// ReadBatches returns the batch log of a scene ordered by
// seq ASC, batch_id COLLATE BINARY.
//
// Returns an empty slice (not nil) if the scene has no batches.
func (s *Store) ReadBatches(ctx context.Context, sceneID string) ([]BatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, scene_id, batch_id, source, payload, editing, result_hash, element_count
		FROM batches
		WHERE scene_id = ?
		ORDER BY seq ASC, batch_id COLLATE BINARY ASC
	`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	batches := []BatchRecord{}
	for rows.Next() {
		rec, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}
	return batches, nil
}

// ReadBatch retrieves a single batch by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadBatch(ctx context.Context, batchID string) (BatchRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, scene_id, batch_id, source, payload, editing, result_hash, element_count
		FROM batches
		WHERE batch_id = ?
	`, batchID)
	return scanBatch(row)
}

// LastSeq returns the highest logged seq across all scenes, or 0.
// Used to resume the engine clock after a restart.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(seq) FROM batches`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("read last seq: %w", err)
	}
	return seq.Int64, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBatch(row scanner) (BatchRecord, error) {
	var rec BatchRecord
	var editing string
	err := row.Scan(
		&rec.Seq,
		&rec.SceneID,
		&rec.BatchID,
		&rec.Source,
		&rec.Payload,
		&editing,
		&rec.ResultHash,
		&rec.ElementCount,
	)
	if err != nil {
		return BatchRecord{}, fmt.Errorf("scan batch: %w", err)
	}
	rec.Editing, err = unmarshalEditing(editing)
	if err != nil {
		return BatchRecord{}, err
	}
	return rec, nil
}
