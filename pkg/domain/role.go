package domain

import dErrors "healthexchange/pkg/domain-errors"

// Role is the closed set of identity roles. Every privileged entry point
// branches on this enum exhaustively; it is never an open-ended string.
type Role string

const (
	RolePatient  Role = "patient"
	RoleDoctor   Role = "doctor"
	RoleHospital Role = "hospital"
)

// ParseRole validates a role received at a trust boundary.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePatient, RoleDoctor, RoleHospital:
		return Role(s), nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "role must be one of patient, doctor, hospital")
	}
}

func (r Role) String() string {
	return string(r)
}

// Valid reports whether the role is one of the three recognized values.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// CanBeGrantee reports whether a user with this role may appear in a
// patient's consent table through the consensual grant path.
func (r Role) CanBeGrantee() bool {
	return r == RoleDoctor || r == RoleHospital
}
