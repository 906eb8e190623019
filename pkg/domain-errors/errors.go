// Package domainerrors provides coded errors for the service layer. Services
// return these so transports can map failures to protocol responses without
// string matching, and so callers can distinguish failure kinds with HasCode.
//
// Infrastructure layers (stores, clients) return pkg/platform/sentinel errors
// instead; services translate sentinels into coded errors at the boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain failure. Every operation fails with exactly one
// code; there is no silent downgrade from one kind to another.
type Code string

const (
	// CodeDuplicateIdentity signals a registration against an already-mapped
	// short id or an already-registered principal.
	CodeDuplicateIdentity Code = "duplicate_identity"

	// CodeIdentityNotFound signals a short id or principal with no registered user.
	CodeIdentityNotFound Code = "identity_not_found"

	// CodeInvalidInput signals a malformed short id, role, or missing field.
	CodeInvalidInput Code = "invalid_input"

	// CodeRoleMismatch signals a grantee whose role is not doctor or hospital.
	CodeRoleMismatch Code = "role_mismatch"

	// CodeUnauthorized signals a caller that is not the owner of the resource
	// it is trying to mutate.
	CodeUnauthorized Code = "unauthorized"

	// CodeAccessDenied signals a failed permission check on a read or write
	// that requires existing access. The message carries no hint about
	// whether the subject exists.
	CodeAccessDenied Code = "access_denied"

	// CodeInternal signals an infrastructure failure. Details are logged,
	// never returned to callers.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Use New or Wrap to construct.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is makes errors.Is match on code equality, so wrapped coded errors compare
// the way sentinels do.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New constructs a coded error with a caller-facing message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause. The cause is
// preserved for logging but never serialized to callers.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// CodeOf extracts the code from err, defaulting to CodeInternal for uncoded
// errors so transports always have something to map.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-facing message, empty for uncoded errors.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
