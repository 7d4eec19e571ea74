package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/order"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Fix bool
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool            `json:"valid"`
	Errors   []string        `json:"errors,omitempty"`
	Repaired int             `json:"repaired,omitempty"`
	Elements json.RawMessage `json:"elements,omitempty"` // set with --fix
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <scene.json>",
		Short: "Check the fractional indices of a scene",
		Long: `Check that every element of a scene has a well-formed fractional index,
that indices strictly increase in collection order, and that bound text
sorts after its container.

With --fix, invalid indices are rewritten with the fewest changes and the
repaired scene is printed. Versions are left untouched.

Exit codes:
  0 - Scene is valid (or was repaired with --fix)
  1 - Validation failed
  2 - Command error (unreadable or malformed input)

Examples:
  scenesync validate scene.json
  scenesync validate scene.json --fix > repaired.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Fix, "fix", false, "repair invalid indices and print the scene")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	elements, err := readElements(path)
	if err != nil {
		return failInput(formatter, path, err)
	}
	formatter.VerboseLog("Validating %d element(s) in %s", len(elements), path)

	var messages []string
	err = order.ValidateIndices(elements, order.ValidateOptions{
		ShouldThrow:      true,
		IncludeBoundText: true,
		IgnoreLogs:       true,
	})
	var invalid *order.InvalidIndexError
	if errors.As(err, &invalid) {
		messages = invalid.Messages
	}

	if opts.Fix {
		return outputValidateFix(formatter, elements, messages)
	}

	if len(messages) > 0 {
		return outputValidationErrors(formatter, messages)
	}
	return outputValidateSuccess(formatter, len(elements))
}

// outputValidateFix repairs the scene and prints it.
func outputValidateFix(formatter *OutputFormatter, elements []element.Element, messages []string) error {
	repaired, n := order.SyncInvalidIndices(elements)
	data, err := element.MarshalElements(repaired)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "encode result", err)
	}

	// Repair only fixes keys; bound text before its container survives it
	if err := order.ValidateIndices(repaired, order.ValidateOptions{ShouldThrow: true, IncludeBoundText: true, IgnoreLogs: true}); err != nil {
		var invalid *order.InvalidIndexError
		if errors.As(err, &invalid) {
			return outputValidationErrors(formatter, invalid.Messages)
		}
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "validate repaired scene", err)
	}

	formatter.VerboseLog("Repaired %d index(es), %d violation(s) before repair", n, len(messages))

	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{
			Valid:    true,
			Errors:   messages,
			Repaired: n,
			Elements: data,
		})
	}
	fmt.Fprintln(formatter.Writer, string(data))
	return nil
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, count int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d element(s), all indices valid\n", count)
	return nil
}

// outputValidationErrors outputs index violations.
func outputValidationErrors(formatter *OutputFormatter, messages []string) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data: ValidationResult{
				Valid:  false,
				Errors: messages,
			},
			Error: &CLIError{
				Code:    ErrCodeInvalidIndices,
				Message: messages[0],
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(messages)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, msg := range messages {
		fmt.Fprintf(formatter.Writer, "  %s: %s\n", ErrCodeInvalidIndices, msg)
	}

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(messages)))
}
