package harness

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/scenesync/internal/element"
	"github.com/roach88/scenesync/internal/engine"
	"github.com/roach88/scenesync/internal/order"
	"github.com/roach88/scenesync/internal/store"
)

// validIdentifier matches valid SQL identifiers (table/column names).
// Only allows alphanumeric and underscore, must start with letter or underscore.
// This prevents SQL injection via identifier interpolation.
var validIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string            // Assertion type for categorization
	Expected string            // Human-readable expected outcome
	Actual   string            // Human-readable actual outcome
	Elements []element.Element // Final scene for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Elements) > 0 {
		fmt.Fprintf(&buf, "\nFinal scene:\n")
		for i, el := range e.Elements {
			fmt.Fprintf(&buf, "  [%d] %s %s v%d nonce=%d deleted=%t\n",
				i, el.Index, el.ID, el.Version, el.VersionNonce, el.IsDeleted)
		}
	}

	return buf.String()
}

// assertOrder checks the exact id sequence of the scene.
func assertOrder(elements []element.Element, assertion Assertion) error {
	got := make([]string, len(elements))
	for i, e := range elements {
		got[i] = e.ID
	}
	if slices.Equal(got, assertion.IDs) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOrder,
		Expected: fmt.Sprintf("ids %v", assertion.IDs),
		Actual:   fmt.Sprintf("ids %v", got),
		Elements: elements,
	}
}

// assertElement checks the fields of one element (subset match).
func assertElement(elements []element.Element, assertion Assertion) error {
	var found *element.Element
	for i := range elements {
		if elements[i].ID == assertion.ID {
			if found != nil {
				return &AssertionError{
					Type:     AssertElement,
					Expected: fmt.Sprintf("exactly one element %q", assertion.ID),
					Actual:   "duplicate id in scene",
					Elements: elements,
				}
			}
			found = &elements[i]
		}
	}
	if found == nil {
		return &AssertionError{
			Type:     AssertElement,
			Expected: fmt.Sprintf("element %q", assertion.ID),
			Actual:   "not found in scene",
			Elements: elements,
		}
	}

	for _, key := range sortedKeys(assertion.Expect) {
		want := assertion.Expect[key]
		got := elementFields[key](*found)
		if !stateValuesEqual(want, got) {
			return &AssertionError{
				Type:     AssertElement,
				Expected: fmt.Sprintf("%s.%s = %v (type %T)", assertion.ID, key, want, want),
				Actual:   fmt.Sprintf("%s.%s = %v (type %T)", assertion.ID, key, got, got),
				Elements: elements,
			}
		}
	}
	return nil
}

// assertCount checks the number of elements, tombstones included.
func assertCount(elements []element.Element, assertion Assertion) error {
	if len(elements) == assertion.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertCount,
		Expected: fmt.Sprintf("%d elements", assertion.Count),
		Actual:   fmt.Sprintf("%d elements", len(elements)),
		Elements: elements,
	}
}

// assertValidIndices runs the strict validator over the scene.
func assertValidIndices(elements []element.Element) error {
	err := order.ValidateIndices(elements, order.ValidateOptions{
		ShouldThrow:      true,
		IncludeBoundText: true,
		IgnoreLogs:       true,
	})
	if err == nil {
		return nil
	}
	return &AssertionError{
		Type:     AssertValidIndices,
		Expected: "valid, strictly increasing fractional indices",
		Actual:   err.Error(),
		Elements: elements,
	}
}

// assertReplay rebuilds the scene from the batch log and compares hashes.
func assertReplay(ctx context.Context, st *store.Store, result *Result) error {
	replayed, err := engine.Replay(ctx, st, SceneID)
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	if !replayed.Matches() {
		m := replayed.Mismatches[0]
		return &AssertionError{
			Type:     AssertReplay,
			Expected: fmt.Sprintf("batch %s (seq %d) to replay to %s", m.BatchID, m.Seq, m.Want),
			Actual:   m.Got,
			Elements: result.Elements,
		}
	}
	if replayed.SnapshotHash != result.SnapshotHash {
		return &AssertionError{
			Type:     AssertReplay,
			Expected: fmt.Sprintf("replayed snapshot %s", result.SnapshotHash),
			Actual:   replayed.SnapshotHash,
			Elements: replayed.Elements,
		}
	}
	return nil
}

// assertFinalState checks if the final state table contains expected values.
// Queries the state table with parameterized SQL and validates
// expected values using subset semantics.
//
// Security: Table and column names are validated against a whitelist pattern
// to prevent SQL injection via identifier interpolation.
func assertFinalState(ctx context.Context, st *store.Store, assertion Assertion) error {
	if assertion.Table == "" {
		return fmt.Errorf("final_state assertion requires table name")
	}

	// Identifiers can't be parameterized
	if !validIdentifier.MatchString(assertion.Table) {
		return fmt.Errorf("invalid table name %q: must match pattern %s", assertion.Table, validIdentifier.String())
	}

	whereSQL, whereArgs, err := buildWhereClause(assertion.Where)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("SELECT * FROM %s", assertion.Table)
	if whereSQL != "" {
		query += " WHERE " + whereSQL
	}

	rows, err := st.Query(ctx, query, whereArgs...)
	if err != nil {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("query table %s", assertion.Table),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("get columns: %w", err)
	}

	if !rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "row not found",
		}
	}

	values := make([]any, len(columns))
	valuePtrs := make([]any, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}

	if err := rows.Scan(valuePtrs...); err != nil {
		return fmt.Errorf("scan row: %w", err)
	}

	// Multiple matching rows would make the assertion ambiguous
	if rows.Next() {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("exactly one row in %s where %s", assertion.Table, formatWhereClause(assertion.Where)),
			Actual:   "multiple rows matched (assertion is ambiguous)",
		}
	}

	actualRow := make(map[string]any)
	for i, col := range columns {
		actualRow[col] = values[i]
	}

	for _, key := range sortedKeys(assertion.Expect) {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actualRow[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q to exist", key),
				Actual:   fmt.Sprintf("field %q not present in result columns: %v", key, columns),
			}
		}

		if !stateValuesEqual(expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q = %v (type %T)", key, expectedValue, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v (type %T)", key, actualValue, actualValue),
			}
		}
	}

	return nil
}

// buildWhereClause constructs parameterized WHERE clause from assertion.Where.
// Returns SQL fragment, arguments slice, and error. Keys are sorted for determinism.
//
// Security: Column names are validated against a whitelist pattern to prevent
// SQL injection via identifier interpolation.
func buildWhereClause(where map[string]any) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, nil
	}

	keys := sortedKeys(where)
	clauses := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))

	for _, key := range keys {
		if !validIdentifier.MatchString(key) {
			return "", nil, fmt.Errorf("invalid column name %q in where clause: must match pattern %s", key, validIdentifier.String())
		}
		clauses = append(clauses, fmt.Sprintf("%s = ?", key))
		args = append(args, toSQLValue(where[key]))
	}

	return strings.Join(clauses, " AND "), args, nil
}

// toSQLValue converts a YAML scalar to a SQL-compatible value.
func toSQLValue(v any) any {
	switch val := v.(type) {
	case string, int, int64, bool:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}

// formatWhereClause creates a human-readable description of WHERE conditions.
func formatWhereClause(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}

	parts := make([]string, 0, len(where))
	for _, k := range sortedKeys(where) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}

// stateValuesEqual compares an expected YAML value with an actual value.
// Handles type coercion for SQLite values which may be returned as different types.
func stateValuesEqual(expected, actual any) bool {
	if expected == nil && actual == nil {
		return true
	}
	if expected == nil || actual == nil {
		return false
	}

	switch exp := expected.(type) {
	case string:
		switch act := actual.(type) {
		case string:
			return exp == act
		case []byte:
			return exp == string(act)
		}
		return false
	case int:
		return intValue(actual) == int64(exp) && isInt(actual)
	case int64:
		return intValue(actual) == exp && isInt(actual)
	case bool:
		if actualBool, ok := actual.(bool); ok {
			return exp == actualBool
		}
		// SQLite stores booleans as integers
		if actualInt, ok := actual.(int64); ok {
			return exp == (actualInt != 0)
		}
		return false
	}

	return reflect.DeepEqual(expected, actual)
}

func isInt(v any) bool {
	switch v.(type) {
	case int, int64:
		return true
	}
	return false
}

func intValue(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	}
	return 0
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, cmp.Compare[string])
	return keys
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for final_state and replay
// assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertOrder:
			err = assertOrder(result.Elements, assertion)
		case AssertElement:
			err = assertElement(result.Elements, assertion)
		case AssertCount:
			err = assertCount(result.Elements, assertion)
		case AssertValidIndices:
			err = assertValidIndices(result.Elements)
		case AssertReplay, AssertFinalState:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: %s requires database context", i, assertion.Type)
			} else if assertion.Type == AssertReplay {
				err = assertReplay(actx.Ctx, actx.Store, result)
			} else {
				err = assertFinalState(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
