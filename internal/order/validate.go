package order

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/scenesync/internal/element"
)

// ValidateOptions controls ValidateIndices.
type ValidateOptions struct {
	// ShouldThrow returns violations as an *InvalidIndexError instead of
	// only logging them.
	ShouldThrow bool

	// IncludeBoundText also checks that every bound text element sorts
	// after its container.
	IncludeBoundText bool

	// IgnoreLogs suppresses the error log.
	IgnoreLogs bool

	// Context, when set, adds the reconciliation inputs to the diagnostic.
	Context *ReconciliationContext

	// Logger receives the diagnostic. Nil means slog.Default().
	Logger *slog.Logger
}

// ReconciliationContext is the pair of inputs that produced a collection.
type ReconciliationContext struct {
	Local  []element.Element
	Remote []element.Element
}

// InvalidIndexError reports broken ordering invariants.
type InvalidIndexError struct {
	// Messages holds one line per violation.
	Messages []string

	// Elements describes the validated collection, one entry per element.
	Elements []string

	// Local and Remote describe the reconciliation inputs, if known.
	Local  []string
	Remote []string
}

// Error implements the error interface.
func (e *InvalidIndexError) Error() string {
	if len(e.Messages) == 1 {
		return "invalid fractional indices: " + e.Messages[0]
	}
	return fmt.Sprintf("invalid fractional indices: %d violations: %s", len(e.Messages), strings.Join(e.Messages, "; "))
}

// ValidateIndices checks that keys are unique, well formed and strictly
// increasing, and optionally that bound text sorts after its container.
//
// Violations are logged at error level unless IgnoreLogs is set. The
// returned error is nil unless ShouldThrow is set.
func ValidateIndices(elements []element.Element, opts ValidateOptions) error {
	var messages []string

	var byID map[string]element.Element
	if opts.IncludeBoundText {
		byID = element.ByID(elements)
	}

	for i, e := range elements {
		if !IsValidIndex(e.Index, indexAt(elements, i-1), indexAt(elements, i+1)) {
			messages = append(messages, fmt.Sprintf(
				"ordering invariant broken: %q, %q, %q",
				describeAt(elements, i-1), describe(e), describeAt(elements, i+1),
			))
		}

		if !opts.IncludeBoundText {
			continue
		}
		textID := e.BoundTextID()
		if textID == "" {
			continue
		}
		text, ok := byID[textID]
		if ok && text.Index <= e.Index {
			messages = append(messages, fmt.Sprintf(
				"bound text ordering invariant broken: %q, %q",
				describe(text), describe(e),
			))
		}
	}

	if len(messages) == 0 {
		return nil
	}

	err := &InvalidIndexError{
		Messages: messages,
		Elements: describeAll(elements),
	}
	if opts.Context != nil {
		err.Local = describeAll(opts.Context.Local)
		err.Remote = describeAll(opts.Context.Remote)
	}

	if !opts.IgnoreLogs {
		logger := opts.Logger
		if logger == nil {
			logger = slog.Default()
		}
		attrs := []any{
			"violations", len(messages),
			"messages", strings.Join(messages, "\n"),
			"elements", err.Elements,
		}
		if opts.Context != nil {
			attrs = append(attrs, "local", err.Local, "remote", err.Remote)
		}
		logger.Error("invalid fractional indices", attrs...)
	}

	if opts.ShouldThrow {
		return err
	}
	return nil
}

// describe renders an element as index:id:type:isDeleted:version:versionNonce.
func describe(e element.Element) string {
	return fmt.Sprintf("%s:%s:%s:%t:%d:%d", e.Index, e.ID, e.Type, e.IsDeleted, e.Version, e.VersionNonce)
}

func describeAt(elements []element.Element, i int) string {
	if i < 0 || i >= len(elements) {
		return ""
	}
	return describe(elements[i])
}

func describeAll(elements []element.Element) []string {
	out := make([]string, len(elements))
	for i, e := range elements {
		out[i] = describe(e)
	}
	return out
}
