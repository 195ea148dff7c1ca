// Package usecase contains the application-specific business rules.
// It orchestrates the domain layer to perform tasks.
package usecase

import (
	"context"

	"healthbridge/internal/domain/entity"

	"github.com/google/uuid"
)

// --- Input DTOs ---

// ClientInfo identifies where a request came from and which session it carried.
type ClientInfo struct {
	IPAddress string
	SessionID string
}

// RegisterInput defines the data required to register a new identity.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      entity.Role
	Profile   entity.UserProfileUpdate
	Client    ClientInfo
}

// LoginInput defines the data required for a user to log in.
type LoginInput struct {
	Email    string
	Password string
	Client   ClientInfo
}

// ChangePasswordInput carries a password change for an authenticated user.
type ChangePasswordInput struct {
	UserID          uuid.UUID
	CurrentPassword string
	NewPassword     string
	IPAddress       string
}

// --- Output DTOs ---

// AuthOutput is the result of a step that establishes or advances a session.
type AuthOutput struct {
	User        *entity.User
	Session     *entity.Session
	Requires2FA bool
}

// TwoFactorSetupOutput carries a freshly generated second-factor secret.
type TwoFactorSetupOutput struct {
	Secret     string
	OTPAuthURL string
	QRCode     string // PNG data URL of OTPAuthURL
}

// PasswordResetOutput is identical for known and unknown emails. Token is only
// set outside production.
type PasswordResetOutput struct {
	Message string
	Token   string
}

// SessionState is a validated session with its user.
type SessionState struct {
	Session *entity.Session
	User    *entity.User
}

// SessionStatus reports the caller's auth state without failing.
type SessionStatus struct {
	Authenticated     bool
	TwoFactorVerified bool
	User              *entity.User
}

// AuthUsecase owns the login state machine: anonymous, password verified and
// fully verified sessions.
type AuthUsecase interface {
	Register(ctx context.Context, input *RegisterInput) (*AuthOutput, error)
	Login(ctx context.Context, input *LoginInput) (*AuthOutput, error)
	VerifyTwoFactor(ctx context.Context, sessionID, code, ipAddress string) (*AuthOutput, error)
	SetupTwoFactor(ctx context.Context, userID uuid.UUID) (*TwoFactorSetupOutput, error)
	EnableTwoFactor(ctx context.Context, userID uuid.UUID, code, ipAddress string) error
	DisableTwoFactor(ctx context.Context, userID uuid.UUID, password, ipAddress string) error
	RequestPasswordReset(ctx context.Context, email, ipAddress string) (*PasswordResetOutput, error)
	ResetPassword(ctx context.Context, token, newPassword, ipAddress string) error
	ChangePassword(ctx context.Context, input *ChangePasswordInput) error
	Logout(ctx context.Context, sessionID, ipAddress string) error

	// Authenticate loads the session behind sessionID, enforces the idle timeout
	// and refreshes the last activity. It does not require full verification.
	Authenticate(ctx context.Context, sessionID, ipAddress string) (*SessionState, error)
	Status(ctx context.Context, sessionID string) *SessionStatus

	Me(ctx context.Context, userID uuid.UUID) (*entity.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, update *entity.UserProfileUpdate, ipAddress string) (*entity.User, error)
}
