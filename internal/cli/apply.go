package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/reconcile"
	"github.com/roach88/scenesync/internal/schema"
	"github.com/roach88/scenesync/internal/store"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Database string
	SceneID  string // overrides the batch's scene_id
	Mode     string

	// IDs allows overriding the batch id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs engine.BatchIDGenerator
}

// ApplyResult is the payload of the apply command.
type ApplyResult struct {
	Seq          int64           `json:"seq"`
	SceneID      string          `json:"scene_id"`
	BatchID      string          `json:"batch_id"`
	Duplicate    bool            `json:"duplicate"`
	Elements     int             `json:"elements"`
	SnapshotHash string          `json:"snapshot_hash"`
	SceneVersion int64           `json:"scene_version"`
	VersionsHash uint32          `json:"versions_hash"`
	FirstSeq     int64           `json:"first_seq,omitempty"`
	Stats        reconcile.Stats `json:"stats"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return newApplyCommand(&ApplyOptions{RootOptions: rootOpts})
}

func newApplyCommand(opts *ApplyOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <batch.json>",
		Short: "Apply one remote batch to a stored scene",
		Long: `Reconcile one remote batch into the stored scene and record it.

The batch file is a JSON object with scene_id, elements and optional
batch_id, source and editing fields. A batch id that was already applied is
acknowledged without changing the scene. The database is created if it does
not exist.

Exit codes:
  0 - Batch applied (or acknowledged as a duplicate)
  1 - Batch rejected (invalid indices in development and test modes)
  2 - Command error (unreadable input, database failure)

Examples:
  scenesync apply --db ./scenes.db batch.json
  scenesync apply --db ./scenes.db --scene board-1 batch.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to config db_path)")
	cmd.Flags().StringVar(&opts.SceneID, "scene", "", "scene id, overrides the batch's scene_id")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "validation preset (production|development|test), overrides config")

	return cmd
}

func runApply(opts *ApplyOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	cfg, err := opts.reconcileConfig(opts.Mode)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid mode", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return failInput(formatter, path, err)
	}
	batch, err := schema.DecodeBatch(data)
	if err != nil {
		return failInput(formatter, path, err)
	}
	if opts.SceneID != "" {
		batch.SceneID = opts.SceneID
	}

	dbPath := opts.dbPath(opts.Database)
	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer closeStore(st)

	ids := opts.IDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	eng, err := engine.Resume(ctx, st, reconcile.New(cfg), ids)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to resume engine", err)
	}

	applied, err := eng.Apply(ctx, engine.Batch{
		SceneID:  batch.SceneID,
		BatchID:  batch.BatchID,
		Source:   batch.Source,
		Elements: batch.Elements,
		Editing:  batch.Editing,
	})
	if err != nil {
		return failApply(formatter, err)
	}

	formatter.VerboseLog("Applied batch %s to scene %s at seq %d", applied.BatchID, applied.SceneID, applied.Seq)

	result := ApplyResult{
		Seq:          applied.Seq,
		SceneID:      applied.SceneID,
		BatchID:      applied.BatchID,
		Duplicate:    applied.Duplicate,
		Elements:     len(applied.Elements),
		SnapshotHash: applied.SnapshotHash,
		SceneVersion: applied.SceneVersion,
		VersionsHash: applied.VersionsHash,
		FirstSeq:     applied.FirstSeq,
		Stats:        applied.Stats,
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	out := formatter.Writer
	if result.Duplicate {
		fmt.Fprintf(out, "✓ Batch %s already applied to %s at seq %d, nothing changed\n", result.BatchID, result.SceneID, result.FirstSeq)
		return nil
	}
	fmt.Fprintf(out, "✓ Applied batch %s to %s (seq %d)\n", result.BatchID, result.SceneID, result.Seq)
	fmt.Fprintf(out, "  accepted=%d discarded=%d duplicates=%d carried=%d repaired=%d\n",
		result.Stats.RemoteAccepted, result.Stats.RemoteDiscarded, result.Stats.DuplicatesIgnored,
		result.Stats.LocalCarried, result.Stats.IndicesRepaired)
	fmt.Fprintf(out, "  %d element(s), scene version %d (%08x), snapshot %s\n",
		result.Elements, result.SceneVersion, result.VersionsHash, result.SnapshotHash)
	return nil
}

// failApply maps engine errors onto CLI error codes.
func failApply(formatter *OutputFormatter, err error) error {
	switch {
	case engine.IsApplyError(err, engine.ErrCodeInvalidIndices):
		return formatter.Fail(ExitFailure, ErrCodeInvalidIndices, "batch rejected", err)
	case engine.IsApplyError(err, engine.ErrCodeInvalidBatch):
		return formatter.Fail(ExitCommandError, ErrCodeSchema, "invalid batch", err)
	case engine.IsApplyError(err, engine.ErrCodeStore):
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to persist batch", err)
	default:
		return formatter.Fail(ExitCommandError, ErrCodeApplyFailed, "failed to apply batch", err)
	}
}

// openExistingStore opens a database that must already exist.
func openExistingStore(formatter *OutputFormatter, path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), err)
		}
		return nil, formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// commandContext returns the command's context, or Background when unset.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
