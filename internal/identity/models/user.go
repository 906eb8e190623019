package models

import (
	"strings"
	"time"

	id "healthexchange/pkg/domain"
	dErrors "healthexchange/pkg/domain-errors"
)

// User is the immutable identity record behind a short id.
//
// Invariants:
//   - Principal and ShortID are each unique across all users
//   - Principal, ShortID, and Role never change after construction
//   - Role is one of the three recognized values
//
// There is no update or delete path anywhere in the registry; a user exists
// exactly as registered or not at all.
type User struct {
	Principal      id.Principal `json:"principal"`
	ShortID        id.ShortID   `json:"short_id"`
	Name           string       `json:"name"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone"`
	Location       string       `json:"location"`
	CredentialHash string       `json:"-"`
	Role           id.Role      `json:"role"`
	CreatedAt      time.Time    `json:"created_at"`
}

// NewUser validates invariants and constructs the record. The credential hash
// is produced by the service; this constructor only refuses an empty one.
func NewUser(principal id.Principal, shortID id.ShortID, name, email, phone, location, credentialHash string, role id.Role, now time.Time) (*User, error) {
	if principal.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "principal is required")
	}
	if err := shortID.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if !role.Valid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "role must be one of patient, doctor, hospital")
	}
	if credentialHash == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "credential is required")
	}
	return &User{
		Principal:      principal,
		ShortID:        shortID,
		Name:           strings.TrimSpace(name),
		Email:          strings.TrimSpace(email),
		Phone:          strings.TrimSpace(phone),
		Location:       strings.TrimSpace(location),
		CredentialHash: credentialHash,
		Role:           role,
		CreatedAt:      now,
	}, nil
}

// Public strips fields that never leave the system. Directory lookups by
// short id return this shape.
func (u *User) Public() PublicUser {
	return PublicUser{
		ShortID:  u.ShortID,
		Name:     u.Name,
		Email:    u.Email,
		Phone:    u.Phone,
		Location: u.Location,
		Role:     u.Role,
	}
}

// PublicUser is the directory view of a user.
type PublicUser struct {
	ShortID  id.ShortID `json:"short_id"`
	Name     string     `json:"name"`
	Email    string     `json:"email"`
	Phone    string     `json:"phone"`
	Location string     `json:"location"`
	Role     id.Role    `json:"role"`
}
