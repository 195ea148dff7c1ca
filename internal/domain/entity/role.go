// Package entity contains the core business objects of the project.
package entity

import "slices"

// Role represents the single role an identity holds. It is fixed at creation.
type Role string

const (
	// RoleAdmin can read and write every patient's data.
	RoleAdmin Role = "admin"
	// RoleDoctor can access patients it has at least one appointment with.
	RoleDoctor Role = "doctor"
	// RolePatient can only access its own data.
	RolePatient Role = "patient"
)

// String returns the string representation of the Role.
func (r Role) String() string {
	return string(r)
}

// IsValid checks if the Role is a valid value.
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDoctor, RolePatient:
		return true
	default:
		return false
	}
}

// IsSelfRegistrable reports whether the role may be chosen at sign-up.
// Administrators are provisioned out of band.
func (r Role) IsSelfRegistrable() bool {
	switch r {
	case RoleDoctor, RolePatient:
		return true
	case RoleAdmin:
		return false
	default:
		return false
	}
}

// Roles is a slice of Role for convenience.
type Roles []Role

// Contains checks if the roles slice contains a specific role.
func (rs Roles) Contains(role Role) bool {
	return slices.Contains(rs, role)
}

// ToStrings converts Roles to []string for log and audit output.
func (rs Roles) ToStrings() []string {
	result := make([]string, len(rs))
	for i, r := range rs {
		result[i] = r.String()
	}

	return result
}
