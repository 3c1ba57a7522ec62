// Package apperr defines the error taxonomy shared by the ledger engine:
// NotFound, Validation, Conflict, Transient and Integrity. The unit of work
// retries only Transient errors; everything else surfaces immediately.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindValidation
	KindConflict
	KindTransient
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

type Error struct {
	Kind    Kind
	Message string
	Field   string // offending field for validation/integrity errors
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func ValidationField(field, msg string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Message: "transient database error", Err: err}
}

func Integrity(field string, err error) *Error {
	return &Error{Kind: KindIntegrity, Field: field, Message: "constraint violated on " + field, Err: err}
}

// KindOf extracts the taxonomy kind from anywhere in the error chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var c *ConflictError
	if errors.As(err, &c) {
		return KindConflict
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool { return KindOf(err) == kind }

// ConflictError carries both data snapshots so the caller can render a diff
// and later resolve the recorded conflict.
type ConflictError struct {
	ConflictID      uint            `json:"conflict_id"`
	EntityType      string          `json:"entity_type"`
	EntityID        uint            `json:"entity_id"`
	CurrentVersion  int             `json:"current_version"`
	IncomingVersion int             `json:"incoming_version"`
	CurrentData     json.RawMessage `json:"current_data"`
	IncomingData    json.RawMessage `json:"incoming_data"`
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s %d is at version %d, client expected %d",
		e.EntityType, e.EntityID, e.CurrentVersion, e.IncomingVersion)
}
