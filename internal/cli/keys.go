package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/scenesync/internal/fracindex"
)

// KeysOptions holds flags for the keys command.
type KeysOptions struct {
	*RootOptions
	Count int
}

// KeysResult is the JSON payload of the keys command.
type KeysResult struct {
	Lower string   `json:"lower"`
	Upper string   `json:"upper"`
	Keys  []string `json:"keys"`
}

// NewKeysCommand creates the keys command.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeysOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "keys [lower] [upper]",
		Short: "Generate fractional index keys between two bounds",
		Long: `Generate strictly increasing fractional index keys between two bounds.

An omitted or empty bound is open: "" "" yields keys for an empty scene,
"a5" "" yields keys after a5. Keys are printed one per line.

Exit codes:
  0 - Keys generated
  1 - Bounds are invalid or out of order

Examples:
  scenesync keys
  scenesync keys a0 a1 -n 3
  scenesync keys "" a0
  scenesync keys a5 "" --format json`,
		Args:          cobra.MaximumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var lower, upper string
			if len(args) > 0 {
				lower = args[0]
			}
			if len(args) > 1 {
				upper = args[1]
			}
			return runKeys(opts, lower, upper, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "number of keys to generate")

	return cmd
}

func runKeys(opts *KeysOptions, lower, upper string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	if opts.Count < 1 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("count must be positive, got %d", opts.Count), nil)
	}

	keys, err := fracindex.NKeysBetween(lower, upper, opts.Count)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeKeyGeneration, fmt.Sprintf("cannot generate keys between %q and %q", lower, upper), err)
	}

	if formatter.Format == "json" {
		return formatter.Success(KeysResult{Lower: lower, Upper: upper, Keys: keys})
	}
	return formatter.Success(strings.Join(keys, "\n"))
}
