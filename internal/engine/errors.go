package engine

import (
	"errors"
	"fmt"
)

// ApplyError reports why a batch could not be applied.
type ApplyError struct {
	// Code identifies the error category.
	Code ApplyErrorCode

	// SceneID and BatchID identify the batch.
	SceneID string
	BatchID string

	// Err is the underlying cause.
	Err error
}

// ApplyErrorCode categorizes apply errors.
type ApplyErrorCode string

const (
	// ErrCodeInvalidBatch indicates a batch missing its scene id.
	ErrCodeInvalidBatch ApplyErrorCode = "INVALID_BATCH"

	// ErrCodeInvalidIndices indicates the reconciled scene failed index
	// validation (development and test modes only).
	ErrCodeInvalidIndices ApplyErrorCode = "INVALID_INDICES"

	// ErrCodeEncode indicates the batch could not be wire-encoded.
	ErrCodeEncode ApplyErrorCode = "ENCODE_FAILED"

	// ErrCodeStore indicates a persistence failure.
	ErrCodeStore ApplyErrorCode = "STORE_FAILED"
)

// Error implements the error interface.
func (e *ApplyError) Error() string {
	if e.BatchID != "" {
		return fmt.Sprintf("%s: scene=%s batch=%s: %v", e.Code, e.SceneID, e.BatchID, e.Err)
	}
	return fmt.Sprintf("%s: scene=%s: %v", e.Code, e.SceneID, e.Err)
}

// Unwrap returns the underlying cause.
func (e *ApplyError) Unwrap() error {
	return e.Err
}

// IsApplyError reports whether err is an ApplyError with the given code.
// Uses errors.As to handle wrapped errors.
func IsApplyError(err error, code ApplyErrorCode) bool {
	var ae *ApplyError
	if errors.As(err, &ae) {
		return ae.Code == code
	}
	return false
}
