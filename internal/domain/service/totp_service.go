package service

import "time"

// TOTPKey is a freshly generated second-factor secret.
type TOTPKey struct {
	Secret string // base32 shared secret
	URI    string // otpauth:// provisioning URI for authenticator apps
}

// TOTPService generates and checks time-based one-time passwords.
type TOTPService interface {
	// GenerateSecret creates a secret labelled with accountName.
	GenerateSecret(accountName string) (*TOTPKey, error)

	// Validate checks code against secret at the given time, accepting one
	// adjacent time step on either side.
	Validate(secret, code string, at time.Time) bool
}
