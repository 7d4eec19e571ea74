package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/scenesync/internal/engine"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	SceneID  string // optional - specific scene only
}

// ReplaySceneResult holds the replay result for a single scene.
type ReplaySceneResult struct {
	SceneID      string           `json:"scene_id"`
	Batches      int              `json:"batches"`
	Elements     int              `json:"elements"`
	SnapshotHash string           `json:"snapshot_hash"`
	StoredHash   string           `json:"stored_hash"`
	Mismatches   []ReplayMismatch `json:"mismatches,omitempty"`
	Reproduced   bool             `json:"reproduced"`
}

// ReplayMismatch is one batch whose replayed hash differs from the log.
type ReplayMismatch struct {
	Seq     int64  `json:"seq"`
	BatchID string `json:"batch_id"`
	Want    string `json:"want"`
	Got     string `json:"got"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Scenes        []ReplaySceneResult `json:"scenes"`
	TotalScenes   int                 `json:"total_scenes"`
	AllReproduced bool                `json:"all_reproduced"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild scenes from the batch log and verify hashes",
		Long: `Rebuild every scene from its batch log, starting from an empty
collection, and compare the snapshot hash after each batch with the hash
recorded when the batch was applied. The final collection is also compared
with the stored scene.

Exit codes:
  0 - Every scene was reproduced
  1 - Replay diverged from the log (mismatched hashes)
  2 - Command error (database not found, etc.)

Examples:
  scenesync replay --db ./scenes.db
  scenesync replay --db ./scenes.db --scene board-1
  scenesync replay --db ./scenes.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to config db_path)")
	cmd.Flags().StringVar(&opts.SceneID, "scene", "", "replay specific scene only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := commandContext(cmd)

	st, err := openExistingStore(formatter, opts.dbPath(opts.Database))
	if err != nil {
		return err
	}
	defer closeStore(st)

	// Get scenes to process
	var sceneIDs []string
	if opts.SceneID != "" {
		sceneIDs = []string{opts.SceneID}
	} else {
		sceneIDs, err = st.ListScenes(ctx)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to list scenes", err)
		}
	}

	result := ReplayResult{
		Scenes:        make([]ReplaySceneResult, 0, len(sceneIDs)),
		TotalScenes:   len(sceneIDs),
		AllReproduced: true,
	}

	for _, id := range sceneIDs {
		replayed, err := engine.Replay(ctx, st, id)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeStore, fmt.Sprintf("failed to replay scene %s", id), err)
		}

		var stored string
		if state, err := st.ReadSceneState(ctx, id); err == nil {
			stored = state.SnapshotHash
		} else if opts.SceneID != "" {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("scene not found: %s", id), err)
		}

		sr := ReplaySceneResult{
			SceneID:      id,
			Batches:      replayed.Batches,
			Elements:     len(replayed.Elements),
			SnapshotHash: replayed.SnapshotHash,
			StoredHash:   stored,
		}
		for _, m := range replayed.Mismatches {
			sr.Mismatches = append(sr.Mismatches, ReplayMismatch{Seq: m.Seq, BatchID: m.BatchID, Want: m.Want, Got: m.Got})
		}
		sr.Reproduced = replayed.Matches() && (replayed.Batches == 0 || sr.SnapshotHash == sr.StoredHash)
		if !sr.Reproduced {
			result.AllReproduced = false
		}
		formatter.VerboseLog("Replayed %s: %d batch(es), %d mismatch(es)", id, sr.Batches, len(sr.Mismatches))

		result.Scenes = append(result.Scenes, sr)
	}

	if formatter.Format == "json" {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllReproduced {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeReplayMismatch,
			Message: "replay did not reproduce the recorded hashes",
		}
	}

	encoder := json.NewEncoder(formatter.Writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllReproduced {
		// Replay divergence = exit code 1
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, result ReplayResult) error {
	w := formatter.Writer

	if result.TotalScenes == 0 {
		fmt.Fprintln(w, "No scenes found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d scene(s)\n", result.TotalScenes)
	fmt.Fprintln(w)

	for _, sc := range result.Scenes {
		status := "✓"
		if !sc.Reproduced {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Scene: %s\n", status, sc.SceneID)
		fmt.Fprintf(w, "  Batches: %d, elements: %d\n", sc.Batches, sc.Elements)
		if formatter.Verbose {
			fmt.Fprintf(w, "  Snapshot: %s\n", sc.SnapshotHash)
		}

		for _, m := range sc.Mismatches {
			fmt.Fprintf(w, "  Mismatch at seq %d (batch %s): want %s, got %s\n", m.Seq, m.BatchID, m.Want, m.Got)
		}
		if len(sc.Mismatches) == 0 && !sc.Reproduced {
			fmt.Fprintf(w, "  Stored scene %s differs from replay %s\n", sc.StoredHash, sc.SnapshotHash)
		}
		fmt.Fprintln(w)
	}

	if result.AllReproduced {
		fmt.Fprintln(w, "✓ All scenes reproduced from the log")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay verification failed")
	// Replay divergence = exit code 1
	return NewExitError(ExitFailure, "replay verification failed")
}
