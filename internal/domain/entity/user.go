// Package entity contains the core business objects of the project,
// each representing a unique, identifiable concept within the domain.
package entity

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// User is an identity in the portal. Every user holds exactly one role.
type User struct {
	ID           uuid.UUID // The Global Unique Identifier (GUID) for the user.
	Email        string    // Lowercased login identifier, unique across all users.
	PasswordHash string    // bcrypt hash of the user's password.
	FirstName    string
	LastName     string
	Role         Role // Immutable after creation.

	Phone       string
	DateOfBirth string // Calendar date, YYYY-MM-DD.
	Gender      string
	Address     string

	// Doctor-only fields.
	Specialty     string
	LicenseNumber string

	// Patient-only fields.
	InsuranceID      string
	EmergencyContact string
	EmergencyPhone   string

	// TwoFactorSecret is written by the setup step and may exist while
	// TwoFactorEnabled is still false.
	TwoFactorSecret  string
	TwoFactorEnabled bool

	PasswordResetToken   string
	PasswordResetExpires *time.Time

	IsActive  bool // Deactivation is a soft delete.
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FullName returns the display name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// HasTwoFactorSecret reports whether the setup step has run.
func (u *User) HasTwoFactorSecret() bool {
	return u.TwoFactorSecret != ""
}

// ResetTokenValid reports whether token matches the stored reset token and has not expired.
func (u *User) ResetTokenValid(token string, now time.Time) bool {
	if u.PasswordResetToken == "" || u.PasswordResetExpires == nil {
		return false
	}

	return u.PasswordResetToken == token && u.PasswordResetExpires.After(now)
}

// NormalizeEmail lowercases and trims an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserProfileUpdate carries the profile fields a user may change. A nil field
// leaves the stored value untouched.
type UserProfileUpdate struct {
	FirstName        *string
	LastName         *string
	Phone            *string
	DateOfBirth      *string
	Gender           *string
	Address          *string
	Specialty        *string
	LicenseNumber    *string
	InsuranceID      *string
	EmergencyContact *string
	EmergencyPhone   *string
}

// IsEmpty reports whether no field is set.
func (u *UserProfileUpdate) IsEmpty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Phone == nil &&
		u.DateOfBirth == nil && u.Gender == nil && u.Address == nil &&
		u.Specialty == nil && u.LicenseNumber == nil && u.InsuranceID == nil &&
		u.EmergencyContact == nil && u.EmergencyPhone == nil
}

// UserFilter narrows the administrator's user listing.
type UserFilter struct {
	Role   Role
	Active *bool
	Search string
	Limit  int
}

// UserStats counts users by role and activity.
type UserStats struct {
	Total    int64 `json:"total"`
	Doctors  int64 `json:"doctors"`
	Patients int64 `json:"patients"`
	Admins   int64 `json:"admins"`
	Active   int64 `json:"active"`
}

// PatientSummary is a patient row annotated with visit history relative to a viewer.
type PatientSummary struct {
	Patient          *User
	AppointmentCount int64
	LastVisit        string
}
