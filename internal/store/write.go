package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/scenesync/internal/element"
)

// BatchRecord is one entry of a scene's batch log.
type BatchRecord struct {
	Seq          int64
	SceneID      string
	BatchID      string
	Source       string
	Payload      []byte // wire-encoded message
	Editing      element.EditingState
	ResultHash   string // snapshot hash of the collection the batch produced
	ElementCount int
}

// SaveScene upserts every element of a scene and records its snapshot
// hash. Elements missing from the collection are left in place; scenes only
// ever grow.
func (s *Store) SaveScene(ctx context.Context, sceneID string, elements []element.Element, seq int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save scene: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := saveScene(ctx, tx, sceneID, elements, seq); err != nil {
		return fmt.Errorf("save scene: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save scene: commit: %w", err)
	}
	return nil
}

// ApplyBatch atomically logs a batch and stores the collection it produced.
//
// Returns inserted=false, and writes nothing, if a batch with the same id
// was already logged.
func (s *Store) ApplyBatch(ctx context.Context, rec BatchRecord, elements []element.Element) (inserted bool, err error) {
	editing, err := marshalEditing(rec.Editing)
	if err != nil {
		return false, fmt.Errorf("apply batch: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("apply batch: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := ensureScene(ctx, tx, rec.SceneID); err != nil {
		return false, fmt.Errorf("apply batch: %w", err)
	}

	// Step 1: Claim the batch id (unique constraint)
	result, err := tx.ExecContext(ctx, `
		INSERT INTO batches
		(seq, scene_id, batch_id, source, payload, editing, result_hash, element_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(batch_id) DO NOTHING
	`,
		rec.Seq,
		rec.SceneID,
		rec.BatchID,
		rec.Source,
		rec.Payload,
		editing,
		rec.ResultHash,
		rec.ElementCount,
	)
	if err != nil {
		return false, fmt.Errorf("apply batch: insert batch: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("apply batch: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		// Already applied
		return false, nil
	}

	// Step 2: Store the resulting collection
	if err := saveScene(ctx, tx, rec.SceneID, elements, rec.Seq); err != nil {
		return false, fmt.Errorf("apply batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("apply batch: commit: %w", err)
	}
	return true, nil
}

// HasBatch reports whether a batch id has already been logged.
func (s *Store) HasBatch(ctx context.Context, batchID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM batches WHERE batch_id = ?
	`, batchID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check batch: %w", err)
	}
	return count > 0, nil
}

func ensureScene(ctx context.Context, tx *sql.Tx, sceneID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO scenes (scene_id) VALUES (?)
		ON CONFLICT(scene_id) DO NOTHING
	`, sceneID)
	if err != nil {
		return fmt.Errorf("ensure scene %q: %w", sceneID, err)
	}
	return nil
}

func saveScene(ctx context.Context, tx *sql.Tx, sceneID string, elements []element.Element, seq int64) error {
	if err := ensureScene(ctx, tx, sceneID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO elements
		(scene_id, id, type, version, version_nonce, fractional_index, is_deleted, body, updated_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scene_id, id) DO UPDATE SET
			type = excluded.type,
			version = excluded.version,
			version_nonce = excluded.version_nonce,
			fractional_index = excluded.fractional_index,
			is_deleted = excluded.is_deleted,
			body = excluded.body,
			updated_seq = excluded.updated_seq
		WHERE elements.body != excluded.body
	`)
	if err != nil {
		return fmt.Errorf("prepare element upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range elements {
		body, err := marshalElement(e)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			sceneID,
			e.ID,
			e.Type,
			e.Version,
			e.VersionNonce,
			e.Index,
			e.IsDeleted,
			body,
			seq,
		); err != nil {
			return fmt.Errorf("upsert element %q: %w", e.ID, err)
		}
	}

	hash, err := element.SnapshotHash(elements)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE scenes SET last_seq = ?, snapshot_hash = ? WHERE scene_id = ?
	`, seq, hash, sceneID)
	if err != nil {
		return fmt.Errorf("update scene %q: %w", sceneID, err)
	}
	return nil
}
