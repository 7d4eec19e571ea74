package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/scenesync/internal/config"
	"github.com/roach88/scenesync/internal/reconcile"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // optional TOML file

	settings *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the scenesync CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "scenesync",
		Short: "scenesync - whiteboard scene reconciliation",
		Long: `Reconcile, validate and persist collaborative whiteboard scenes.

Remote element batches are merged into the local scene by version, nonce and
active edits, then kept in a total draw order by fractional indices.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if err := opts.load(); err != nil {
				return WrapExitError(ExitCommandError, "failed to load config", err)
			}
			configureLogging(opts, cmd.ErrOrStderr())
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to TOML config file")

	// Add subcommands
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewApplyCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewKeysCommand(opts))

	return cmd
}

// load reads the config file once. Without --config the defaults apply.
func (o *RootOptions) load() error {
	if o.settings != nil {
		return nil
	}
	cfg := config.Default()
	if o.Config != "" {
		loaded, err := config.Load(o.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	o.settings = &cfg
	return nil
}

// Settings returns the resolved configuration.
func (o *RootOptions) Settings() config.Config {
	if o.settings == nil {
		return config.Default()
	}
	return *o.settings
}

// reconcileConfig returns the configured reconcile settings, replaced by
// the preset for mode when mode is set.
func (o *RootOptions) reconcileConfig(mode string) (reconcile.Config, error) {
	if mode == "" {
		return o.Settings().Reconcile, nil
	}
	m, err := reconcile.ParseMode(mode)
	if err != nil {
		return reconcile.Config{}, err
	}
	return reconcile.ConfigForMode(m)
}

// dbPath returns flag, or the configured database path when flag is empty.
func (o *RootOptions) dbPath(flag string) string {
	if flag != "" {
		return flag
	}
	return o.Settings().DBPath
}

// configureLogging installs a text handler on w. --verbose forces debug.
func configureLogging(opts *RootOptions, w io.Writer) {
	level := opts.Settings().LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
