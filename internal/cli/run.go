package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/reconcile"
	"github.com/roach88/scenesync/internal/schema"
	"github.com/roach88/scenesync/internal/store"
)

// maxBatchLine bounds a single NDJSON batch line.
const maxBatchLine = 16 << 20

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	SceneID  string // overrides scene_id of every batch
	Mode     string

	// IDs allows overriding the batch id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDs engine.BatchIDGenerator
}

// RunResult summarizes a run.
type RunResult struct {
	Received   int   `json:"received"`
	Applied    int   `json:"applied"`
	Duplicates int   `json:"duplicates"`
	Failed     int   `json:"failed"`
	LastSeq    int64 `json:"last_seq"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply a stream of batches from stdin",
		Long: `Start the single-writer engine and apply batches read from stdin.

Each input line is one JSON batch object (NDJSON). Batches are queued in
arrival order and applied one at a time. A batch that fails to apply is
logged and the engine continues with the next one. The engine stops at end
of input or on SIGINT/SIGTERM after draining the queue.

Exit codes:
  0 - Every batch applied
  1 - One or more batches failed
  2 - Command error (database could not be opened)

Examples:
  scenesync run --db ./scenes.db < batches.ndjson
  tail -f updates.ndjson | scenesync run --db ./scenes.db --mode production`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (defaults to config db_path)")
	cmd.Flags().StringVar(&opts.SceneID, "scene", "", "scene id, overrides scene_id of every batch")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "validation preset (production|development|test), overrides config")

	return cmd
}

func runEngine(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := opts.reconcileConfig(opts.Mode)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid mode", err)
	}

	// Open database (create if not exists)
	dbPath := opts.dbPath(opts.Database)
	slog.Info("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}
	defer closeStore(st)

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	ids := opts.IDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	eng, err := engine.Resume(ctx, st, reconcile.New(cfg), ids)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "failed to resume engine", err)
	}

	var (
		mu     sync.Mutex
		result RunResult
	)
	eng.OnApplied(func(a engine.Applied) {
		mu.Lock()
		defer mu.Unlock()
		if a.Duplicate {
			result.Duplicates++
			return
		}
		result.Applied++
		result.LastSeq = a.Seq
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			eng.Stop()
		case <-ctx.Done():
		}
	}()

	done := make(chan error, 1)
	go func() {
		done <- eng.Run(ctx)
	}()

	slog.Info("engine started", "db", dbPath, "mode", cfg.Mode)
	received, rejected := readBatches(cmd.InOrStdin(), opts.SceneID, eng)
	eng.Stop()

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return formatter.Fail(ExitFailure, ErrCodeApplyFailed, "engine error", err)
	}
	slog.Info("engine stopped gracefully")

	mu.Lock()
	result.Received = received
	result.Failed = received - result.Applied - result.Duplicates + rejected
	mu.Unlock()

	return outputRun(formatter, result)
}

// readBatches enqueues one batch per input line until EOF or until the
// engine stops accepting. It returns the number of batches enqueued and
// the number of lines that could not be decoded.
func readBatches(r io.Reader, sceneID string, eng *engine.Engine) (received, rejected int) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxBatchLine)

	line := 0
	for scanner.Scan() {
		line++
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		batch, err := schema.DecodeBatch(data)
		if err != nil {
			slog.Error("invalid batch", "line", line, "error", err)
			rejected++
			continue
		}
		if sceneID != "" {
			batch.SceneID = sceneID
		}

		if !eng.Enqueue(engine.Batch{
			SceneID:  batch.SceneID,
			BatchID:  batch.BatchID,
			Source:   batch.Source,
			Elements: batch.Elements,
			Editing:  batch.Editing,
		}) {
			slog.Warn("engine stopped, remaining input ignored", "line", line)
			break
		}
		received++
	}
	if err := scanner.Err(); err != nil {
		slog.Error("read input", "error", err)
	}
	return received, rejected
}

func outputRun(formatter *OutputFormatter, result RunResult) error {
	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		fmt.Fprintf(w, "Run Summary: %d applied, %d duplicate(s), %d failed\n", result.Applied, result.Duplicates, result.Failed)
		if result.Applied > 0 {
			fmt.Fprintf(w, "  Last seq: %d\n", result.LastSeq)
		}
	}

	if result.Failed > 0 {
		// Batch failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d batch(es) failed", result.Failed))
	}
	if formatter.Format != "json" {
		fmt.Fprintln(formatter.Writer, "✓ All batches applied")
	}
	return nil
}
