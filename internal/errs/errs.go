package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a service error for transport mapping. Everything except
// Reconciliation aborts its operation before any write reaches the store;
// Reconciliation failures happen after the primary write and are recorded
// instead of surfaced.
type Kind int

const (
	BadInput Kind = iota
	NotFound
	RelationshipInvalid
	UniqueViolation
	Storage
	Reconciliation
)

// Stable machine-readable reason codes, returned to clients in the
// "error" field of the response body.
const (
	CodeMissingField        = "missing_field"
	CodeInvalidEmail        = "invalid_email"
	CodeInvalidDate         = "invalid_date"
	CodeInvalidQuery        = "invalid_query"
	CodeInvalidIdentifier   = "invalid_identifier"
	CodeUnknownUser         = "unknown_user"
	CodeNameMismatch        = "name_mismatch"
	CodeAmbiguousName       = "ambiguous_name"
	CodeMalformedIdentifier = "malformed_identifier"
	CodeTaskNotFound        = "task_not_found"
	CodeTaskCompleted       = "task_already_completed"
	CodeDuplicateEmail      = "duplicate_email"
	CodeNotFound            = "not_found"
	CodeStorageFailure      = "storage_failure"
	CodeReconciliation      = "reconciliation_failure"
)

// Error carries the taxonomy kind, a stable code, and optionally the full
// set of offending identifiers for checks that report every violation.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	IDs     []string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if len(e.IDs) > 0 {
		msg = fmt.Sprintf("%s: %s", msg, strings.Join(e.IDs, ", "))
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// WithIDs builds an error that lists every offending identifier.
func WithIDs(kind Kind, code, message string, ids []string) *Error {
	return &Error{Kind: kind, Code: code, Message: message, IDs: ids}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Err: err}
}

// KindOf extracts the taxonomy kind; unknown errors count as Storage so
// unexpected failures surface as internal rather than client mistakes.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Storage
}

// CodeOf extracts the stable reason code, or storage_failure when the error
// did not come from this package.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeStorageFailure
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
