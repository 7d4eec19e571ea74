package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/order"
	"github.com/roach88/scenesync/internal/reconcile"
	"github.com/roach88/scenesync/internal/schema"
)

// ReconcileOptions holds flags for the reconcile command.
type ReconcileOptions struct {
	*RootOptions
	EditingText string
	Resizing    string
	NewElement  string
	Mode        string
}

// ReconcileResult is the JSON payload of the reconcile command.
type ReconcileResult struct {
	Elements     json.RawMessage `json:"elements"`
	SnapshotHash string          `json:"snapshot_hash"`
	Stats        reconcile.Stats `json:"stats"`
}

// NewReconcileCommand creates the reconcile command.
func NewReconcileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReconcileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "reconcile <local.json> <remote.json>",
		Short: "Merge a remote element batch into a local scene",
		Long: `Merge a remote element batch into a local scene and print the result.

Both files hold a JSON array of elements. The merged scene is printed as
canonical JSON in draw order, so two runs over the same input produce
byte-identical output.

Exit codes:
  0 - Reconciled
  1 - Index validation failed (development and test modes)
  2 - Command error (unreadable or malformed input)

Examples:
  scenesync reconcile local.json remote.json
  scenesync reconcile local.json remote.json --editing-text a --mode test
  scenesync reconcile local.json remote.json --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReconcile(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EditingText, "editing-text", "", "id of the text element being edited locally")
	cmd.Flags().StringVar(&opts.Resizing, "resizing", "", "id of the element being resized locally")
	cmd.Flags().StringVar(&opts.NewElement, "new-element", "", "id of the element being created locally")
	cmd.Flags().StringVar(&opts.Mode, "mode", "", "validation preset (production|development|test), overrides config")

	return cmd
}

func runReconcile(opts *ReconcileOptions, localPath, remotePath string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := opts.reconcileConfig(opts.Mode)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "invalid mode", err)
	}

	local, err := readElements(localPath)
	if err != nil {
		return failInput(formatter, localPath, err)
	}
	remote, err := readElements(remotePath)
	if err != nil {
		return failInput(formatter, remotePath, err)
	}
	formatter.VerboseLog("Loaded %d local and %d remote element(s)", len(local), len(remote))

	editing := element.EditingState{
		EditingTextElementID: opts.EditingText,
		ResizingElementID:    opts.Resizing,
		NewElementID:         opts.NewElement,
	}

	r := reconcile.New(cfg)
	merged, stats, err := r.ReconcileWithStats(local, remote, editing)
	if err != nil {
		var invalid *order.InvalidIndexError
		if errors.As(err, &invalid) {
			_ = formatter.Error(ErrCodeInvalidIndices, err.Error(), invalid.Messages)
			return WrapExitError(ExitFailure, ErrCodeInvalidIndices, err)
		}
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "reconcile failed", err)
	}

	data, err := element.MarshalElements(merged)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "encode result", err)
	}

	formatter.VerboseLog("accepted=%d discarded=%d duplicates=%d carried=%d repaired=%d",
		stats.RemoteAccepted, stats.RemoteDiscarded, stats.DuplicatesIgnored, stats.LocalCarried, stats.IndicesRepaired)

	if formatter.Format == "json" {
		return formatter.Success(ReconcileResult{
			Elements:     data,
			SnapshotHash: element.MustSnapshotHash(merged),
			Stats:        stats,
		})
	}
	return formatter.Success(string(data))
}

// readElements reads and schema-checks an element array file.
func readElements(path string) ([]element.Element, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return schema.DecodeElements(data)
}

// failInput reports an unreadable or malformed input file.
func failInput(formatter *OutputFormatter, path string, err error) error {
	var ve *schema.ValidationError
	if errors.As(err, &ve) {
		return formatter.Fail(ExitCommandError, ErrCodeSchema, fmt.Sprintf("invalid input %s", path), err)
	}
	if errors.Is(err, os.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("file not found: %s", path), err)
	}
	return formatter.Fail(ExitCommandError, ErrCodeReadFailed, fmt.Sprintf("failed to read %s", path), err)
}
