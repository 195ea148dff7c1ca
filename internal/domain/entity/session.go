package entity

import (
	"time"

	"github.com/google/uuid"
)

// AuthState is the position of a session in the login state machine.
type AuthState string

const (
	// AuthStateAnonymous means no identity is bound to the request.
	AuthStateAnonymous AuthState = "anonymous"
	// AuthStatePasswordVerified means the password matched but a TOTP code is still pending.
	AuthStatePasswordVerified AuthState = "password_verified"
	// AuthStateFullyVerified permits every role-gated operation.
	AuthStateFullyVerified AuthState = "fully_verified"
)

// Session is the server-side state behind the portal cookie.
type Session struct {
	ID                string    `json:"-"`
	UserID            uuid.UUID `json:"user_id"`
	Role              Role      `json:"role"`
	TwoFactorVerified bool      `json:"two_factor_verified"`
	LastActivity      time.Time `json:"last_activity"`
	CreatedAt         time.Time `json:"created_at"`
}

// State derives the auth state from the session fields. A nil session is anonymous.
func (s *Session) State() AuthState {
	if s == nil || s.UserID == uuid.Nil {
		return AuthStateAnonymous
	}
	if !s.TwoFactorVerified {
		return AuthStatePasswordVerified
	}

	return AuthStateFullyVerified
}

// IsIdle reports whether more than timeout has passed since the last activity.
func (s *Session) IsIdle(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) > timeout
}

// Touch records activity at now.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}
