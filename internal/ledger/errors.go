package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// Code is the stable error category surfaced to callers.
type Code string

const (
	// CodeAlreadyExists: an identity constraint rejected an insert. For a
	// staging collection this means another process holds the object.
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// CodeNotFound: the targeted document does not exist (or no longer
	// matches).
	CodeNotFound Code = "NOT_FOUND"

	// CodeTimeout: the store gave up waiting (lock, busy, deadline).
	CodeTimeout Code = "DATABASE_TIMEOUT"

	// CodeUncategorized: any other store failure.
	CodeUncategorized Code = "DATABASE_UNCATEGORIZED"

	// CodeIndexSync: the search index rejected a mirror or a search. For
	// writes the primary store has already been updated.
	CodeIndexSync Code = "INDEX_SYNC_FAILURE"

	// CodeInvalidArgument: the call was rejected before touching any store.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
)

// Reasons prefix the message with the operation that failed.
const (
	ReasonCreation = "Creation issue"
	ReasonUpdate   = "Update issue"
	ReasonRollback = "Rollback issue"
	ReasonExists   = "Exists issue"
	ReasonSelect   = "Select issue"
	ReasonDelete   = "Delete issue"
)

const (
	msgUpdateNotFound = "Update not found item: "
	msgAtLeastOneItem = "At least one item is needed"
	msgWrongOpCreate  = "Wrong IdOperation set to create the LifeCycle"
	msgWrongOpUpdate  = "Wrong IdOperation set to update the LifeCycle"
	suffixDuplicate   = " (element already exists)"
	suffixTimeout     = " (timeout operation)"
)

// Error is the ledger's classified failure.
type Error struct {
	Code    Code
	Reason  string
	Message string

	// ClassName and Native describe the original store error for
	// uncategorized failures.
	ClassName string
	Native    int

	Cause error
}

// Sentinels for errors.Is. Only the code is compared.
var (
	ErrAlreadyExists   = &Error{Code: CodeAlreadyExists}
	ErrNotFound        = &Error{Code: CodeNotFound}
	ErrTimeout         = &Error{Code: CodeTimeout}
	ErrUncategorized   = &Error{Code: CodeUncategorized}
	ErrIndexSync       = &Error{Code: CodeIndexSync}
	ErrInvalidArgument = &Error{Code: CodeInvalidArgument}
)

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason)
	switch e.Code {
	case CodeAlreadyExists:
		b.WriteString(suffixDuplicate)
	case CodeTimeout:
		b.WriteString(suffixTimeout)
	case CodeUncategorized:
		fmt.Fprintf(&b, " (%s %s: %d)", e.ClassName, e.Message, e.Native)
		return strings.TrimSpace(b.String())
	}
	if e.Message != "" {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Message)
	}
	if b.Len() == 0 {
		b.WriteString(string(e.Code))
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewNotFound reports a missing document.
func NewNotFound(message string) *Error {
	return &Error{Code: CodeNotFound, Message: message}
}

// NewAlreadyExists reports an identity constraint violation.
func NewAlreadyExists(message string, cause error) *Error {
	return &Error{Code: CodeAlreadyExists, Message: message, Cause: cause}
}

// NewTimeout reports a store timeout.
func NewTimeout(message string, cause error) *Error {
	return &Error{Code: CodeTimeout, Message: message, Cause: cause}
}

// NewUncategorized reports any other store failure with its native details.
func NewUncategorized(className, message string, native int, cause error) *Error {
	return &Error{Code: CodeUncategorized, ClassName: className, Message: message, Native: native, Cause: cause}
}

// NewInvalidArgument reports a call rejected before any store access.
func NewInvalidArgument(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

func newIndexSync(reason string, cause error) *Error {
	msg := "search index failure"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Code: CodeIndexSync, Reason: reason, Message: msg, Cause: cause}
}

// withReason stamps reason on a classified error that has none. Errors that
// were not classified by a store become uncategorized.
func withReason(reason string, err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		if le.Reason != "" {
			return err
		}
		cp := *le
		cp.Reason = reason
		return &cp
	}
	return &Error{Code: CodeUncategorized, Reason: reason, ClassName: fmt.Sprintf("%T", err), Message: err.Error(), Cause: err}
}

// CodeOf returns the code of a classified error, or "" otherwise.
func CodeOf(err error) Code {
	var le *Error
	if errors.As(err, &le) {
		return le.Code
	}
	return ""
}

func IsAlreadyExists(err error) bool   { return CodeOf(err) == CodeAlreadyExists }
func IsNotFound(err error) bool        { return CodeOf(err) == CodeNotFound }
func IsTimeout(err error) bool         { return CodeOf(err) == CodeTimeout }
func IsIndexSync(err error) bool       { return CodeOf(err) == CodeIndexSync }
func IsInvalidArgument(err error) bool { return CodeOf(err) == CodeInvalidArgument }

// IsDatabase reports a technical store failure (timeout or uncategorized).
func IsDatabase(err error) bool {
	code := CodeOf(err)
	return code == CodeTimeout || code == CodeUncategorized
}
