// Package repository defines the interfaces for the persistence layer.
// These interfaces act as a contract between the domain/application layers and the infrastructure layer.
package repository

import (
	"context"
	"errors"
	"time"

	"healthbridge/internal/domain/entity"

	"github.com/google/uuid"
)

// ErrUserNotFound is a domain-specific error returned when a user is not found.
var ErrUserNotFound = errors.New("user not found")

// ErrResetTokenRedeemed is returned when a reset token is no longer live at
// the moment of redemption.
var ErrResetTokenRedeemed = errors.New("reset token already redeemed or expired")

// UserRepository defines the standard operations for identity persistence.
// The application layer will depend on this interface, not the concrete implementation.
type UserRepository interface {
	// FindByID retrieves a single user by their unique ID.
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)

	// FindByEmail retrieves a single user by their lowercased email address.
	FindByEmail(ctx context.Context, email string) (*entity.User, error)

	// FindByResetToken retrieves the user holding token when it expires after now.
	FindByResetToken(ctx context.Context, token string, now time.Time) (*entity.User, error)

	// Create persists a new user. A duplicate email yields ErrUserAlreadyExists.
	Create(ctx context.Context, user *entity.User) error

	// UpdateProfile applies the non-nil fields of update.
	UpdateProfile(ctx context.Context, id uuid.UUID, update *entity.UserProfileUpdate) error

	// UpdatePassword replaces the password hash and clears any pending reset token.
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error

	// RedeemResetToken sets passwordHash and clears the reset token in one
	// conditional write that only applies while token is still held by id and
	// expires after now. Otherwise it returns ErrResetTokenRedeemed.
	RedeemResetToken(ctx context.Context, id uuid.UUID, token string, now time.Time, passwordHash string) error

	// SetResetToken stores a password reset token and its expiry.
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expires time.Time) error

	// SetTwoFactorSecret stores a freshly generated secret without enabling it.
	SetTwoFactorSecret(ctx context.Context, id uuid.UUID, secret string) error

	// EnableTwoFactor marks two-factor authentication as enabled.
	EnableTwoFactor(ctx context.Context, id uuid.UUID) error

	// DisableTwoFactor clears the secret and disables two-factor authentication.
	DisableTwoFactor(ctx context.Context, id uuid.UUID) error

	// SetActive toggles the soft-delete flag.
	SetActive(ctx context.Context, id uuid.UUID, active bool) error

	// UpdateLastLogin records a completed login.
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error

	// ListActiveDoctors returns bookable doctors ordered by name.
	ListActiveDoctors(ctx context.Context) ([]*entity.User, error)

	// List returns users matching filter, newest first.
	List(ctx context.Context, filter entity.UserFilter) ([]*entity.User, error)

	// Stats counts users by role and activity.
	Stats(ctx context.Context) (*entity.UserStats, error)

	// ListPatients returns every patient with their overall visit history.
	ListPatients(ctx context.Context) ([]*entity.PatientSummary, error)

	// ListPatientsForDoctor returns active patients with at least one appointment with doctorID.
	ListPatientsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*entity.PatientSummary, error)

	// PurgeExpiredResetTokens clears reset tokens that expired before now.
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}
