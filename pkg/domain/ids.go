// Package domain holds the typed identifiers shared across features.
//
// Type safety rationale: Principal and ShortID are distinct types so a
// grantee principal can never be passed where a patient number is expected.
// The compiler enforces what code review would otherwise have to catch.
package domain

import (
	"strconv"

	"github.com/google/uuid"

	dErrors "healthexchange/pkg/domain-errors"
)

// Principal identifies an authenticated caller. It is supplied by the
// authentication layer at the transport boundary; the core never mints one
// implicitly.
type Principal uuid.UUID

// NewPrincipal generates a fresh principal identifier.
func NewPrincipal() Principal {
	return Principal(uuid.New())
}

// ParsePrincipal validates and parses a principal from its string form.
// IDs must be valid, non-nil UUIDs.
func ParsePrincipal(s string) (Principal, error) {
	if s == "" {
		return Principal{}, dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return Principal{}, dErrors.New(dErrors.CodeInvalidInput, "principal must be a valid UUID")
	}
	if u == uuid.Nil {
		return Principal{}, dErrors.New(dErrors.CodeInvalidInput, "principal must not be the nil UUID")
	}
	return Principal(u), nil
}

func (p Principal) String() string {
	return uuid.UUID(p).String()
}

// IsNil reports whether the principal is the zero value.
func (p Principal) IsNil() bool {
	return uuid.UUID(p) == uuid.Nil
}

// ShortID is the public six-digit identity number that substitutes for a raw
// principal in every user-facing operation. Valid values are 100000-999999.
type ShortID int32

const (
	shortIDMin = 100000
	shortIDMax = 999999
)

// ParseShortID parses and validates a short identity number from its decimal
// string form. Transport layers must call this rather than trusting any
// client-side digit count check.
func ParseShortID(s string) (ShortID, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "short id must be a six-digit number")
	}
	return NewShortID(int32(n))
}

// NewShortID validates a numeric short identity number.
func NewShortID(n int32) (ShortID, error) {
	if n < shortIDMin || n > shortIDMax {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "short id must be a six-digit number")
	}
	return ShortID(n), nil
}

// Validate re-checks the six-digit invariant. Services call this on values
// decoded straight from request bodies.
func (s ShortID) Validate() error {
	_, err := NewShortID(int32(s))
	return err
}

func (s ShortID) String() string {
	return strconv.FormatInt(int64(s), 10)
}

// IsZero reports whether the short id is unset.
func (s ShortID) IsZero() bool {
	return s == 0
}
