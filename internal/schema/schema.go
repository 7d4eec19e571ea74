package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/scenesync/internal/element"
)

//go:embed schema.cue
var source string

// Definition names in schema.cue.
const (
	DefElements = "#Elements"
	DefBatch    = "#Batch"
)

// ValidationError describes the first schema violation found.
type ValidationError struct {
	Path    string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	var b strings.Builder
	if e.Pos.IsValid() {
		fmt.Fprintf(&b, "%s:%d:%d: ", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column())
	}
	if e.Path != "" {
		b.WriteString(e.Path)
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// Validate checks data (JSON) against the named definition.
func Validate(def string, data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(source, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	target := schema.LookupPath(cue.ParsePath(def))
	if !target.Exists() {
		return fmt.Errorf("unknown schema definition %q", def)
	}

	input := ctx.CompileBytes(data, cue.Filename("input.json"))
	if err := input.Err(); err != nil {
		return formatCUEError(err)
	}

	if err := target.Unify(input).Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// DecodeElements validates data as an element array and decodes it.
func DecodeElements(data []byte) ([]element.Element, error) {
	if err := Validate(DefElements, data); err != nil {
		return nil, err
	}
	var out []element.Element
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	if out == nil {
		out = []element.Element{}
	}
	return out, nil
}

// Batch is a remote element batch as stored in batch files.
type Batch struct {
	SceneID  string               `json:"scene_id"`
	BatchID  string               `json:"batch_id,omitempty"`
	Source   string               `json:"source,omitempty"`
	Editing  element.EditingState `json:"editing,omitzero"`
	Elements []element.Element    `json:"elements"`
}

// DecodeBatch validates data as a batch file and decodes it.
func DecodeBatch(data []byte) (Batch, error) {
	if err := Validate(DefBatch, data); err != nil {
		return Batch{}, err
	}
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return Batch{}, fmt.Errorf("decode batch: %w", err)
	}
	if b.Elements == nil {
		b.Elements = []element.Element{}
	}
	return b, nil
}

// formatCUEError reduces a CUE error to its first violation.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return &ValidationError{Message: err.Error()}
	}

	first := errs[0]
	format, args := first.Msg()
	ve := &ValidationError{
		Path:    strings.Join(first.Path(), "."),
		Message: fmt.Sprintf(format, args...),
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		ve.Pos = positions[0]
	}
	return ve
}
