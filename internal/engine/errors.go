package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/docindex/internal/ir"
)

// Error is the error type returned by Engine operations.
//
// Code identifies the category; Err, when set, is the underlying cause and
// stays reachable through errors.Is and errors.As.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// DocID identifies the affected document, if any.
	DocID string

	// VersionID identifies the affected version, if any.
	VersionID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeStorageUnavailable indicates a storage adapter failure. The
	// batch was rolled back and may be retried as a whole.
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// ErrCodeSchemaMismatch indicates the storage target lacks the shape the
	// engine requires.
	ErrCodeSchemaMismatch ErrorCode = "SCHEMA_MISMATCH"

	// ErrCodeInvalidVersion indicates a version is missing required fields.
	ErrCodeInvalidVersion ErrorCode = "INVALID_VERSION"

	// ErrCodeInvalidSelection indicates a selector returned neither of the
	// versions it was given.
	ErrCodeInvalidSelection ErrorCode = "INVALID_SELECTION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case e.DocID != "" && e.VersionID != "":
		msg = fmt.Sprintf("%s (doc=%s, version=%s)", msg, e.DocID, e.VersionID)
	case e.DocID != "":
		msg = fmt.Sprintf("%s (doc=%s)", msg, e.DocID)
	case e.VersionID != "":
		msg = fmt.Sprintf("%s (version=%s)", msg, e.VersionID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsStorageUnavailable reports whether err is a storage failure.
func IsStorageUnavailable(err error) bool {
	return hasCode(err, ErrCodeStorageUnavailable)
}

// IsSchemaMismatch reports whether err is a schema capability failure.
func IsSchemaMismatch(err error) bool {
	return hasCode(err, ErrCodeSchemaMismatch)
}

// IsInvalidVersion reports whether err rejects a malformed version.
func IsInvalidVersion(err error) bool {
	return hasCode(err, ErrCodeInvalidVersion)
}

// IsInvalidSelection reports whether err comes from a misbehaving selector.
func IsInvalidSelection(err error) bool {
	return hasCode(err, ErrCodeInvalidSelection)
}

func newStorageError(op string, docID, versionID string, err error) *Error {
	return &Error{
		Code:      ErrCodeStorageUnavailable,
		Message:   op,
		DocID:     docID,
		VersionID: versionID,
		Err:       err,
	}
}

func newSchemaError(err error) *Error {
	return &Error{
		Code:    ErrCodeSchemaMismatch,
		Message: "storage target failed the capability check",
		Err:     err,
	}
}

func newInvalidVersionError(index int, v ir.DocumentVersion, err error) *Error {
	return &Error{
		Code:      ErrCodeInvalidVersion,
		Message:   fmt.Sprintf("batch[%d] rejected", index),
		DocID:     v.DocID,
		VersionID: v.VersionID,
		Err:       err,
	}
}

func newSelectionError(existing, incoming ir.DocumentVersion, got string) *Error {
	return &Error{
		Code: ErrCodeInvalidSelection,
		Message: fmt.Sprintf("selector returned %q, want %q or %q",
			got, existing.VersionID, incoming.VersionID),
		DocID:     incoming.DocID,
		VersionID: incoming.VersionID,
	}
}

// asStorageError keeps engine errors as they are and wraps anything else as
// a storage failure.
func asStorageError(op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return newStorageError(op, "", "", err)
}
