// Package schema validates element JSON at the boundary, before it reaches
// reconciliation.
//
// The schema is written in CUE (schema.cue) and embedded in the binary.
// Definitions are closed, so unknown or misspelled fields are rejected along
// with missing required fields and wrongly typed values.
package schema
