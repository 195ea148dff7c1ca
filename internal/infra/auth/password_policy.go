package auth

import (
	"fmt"
	"unicode"

	"healthbridge/config"
	domainerrors "healthbridge/internal/domain/errors"
	"healthbridge/internal/domain/service"
)

// bcrypt ignores input past 72 bytes.
const bcryptMaxPasswordBytes = 72

type passwordPolicy struct {
	minLength        int
	maxLength        int
	requireUppercase bool
	requireLowercase bool
	requireNumbers   bool
	requireSpecial   bool
}

// NewPasswordPolicy builds the policy from the passwordStrength section.
func NewPasswordPolicy(cfg *config.Config) service.PasswordPolicy {
	p := &passwordPolicy{
		minLength:        8,
		maxLength:        bcryptMaxPasswordBytes,
		requireUppercase: true,
		requireLowercase: true,
		requireNumbers:   true,
	}

	if cfg == nil || cfg.PasswordStrength == nil {
		return p
	}

	ps := cfg.PasswordStrength
	if ps.MinLength > 0 {
		p.minLength = ps.MinLength
	}
	if ps.MaxLength > 0 && ps.MaxLength <= bcryptMaxPasswordBytes {
		p.maxLength = ps.MaxLength
	}
	p.requireUppercase = ps.RequireUppercase
	p.requireLowercase = ps.RequireLowercase
	p.requireNumbers = ps.RequireNumbers
	p.requireSpecial = ps.RequireSpecial

	return p
}

func (p *passwordPolicy) Validate(password string) error {
	if len([]rune(password)) < p.minLength {
		return domainerrors.ErrPasswordStrength.WithDetails(fmt.Sprintf("must be at least %d characters long", p.minLength))
	}
	if len(password) > p.maxLength {
		return domainerrors.ErrPasswordStrength.WithDetails(fmt.Sprintf("must be at most %d bytes long", p.maxLength))
	}

	var upper, lower, number, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			number = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	switch {
	case p.requireLowercase && !lower:
		return domainerrors.ErrPasswordStrength.WithDetails("must contain at least one lowercase letter")
	case p.requireUppercase && !upper:
		return domainerrors.ErrPasswordStrength.WithDetails("must contain at least one uppercase letter")
	case p.requireNumbers && !number:
		return domainerrors.ErrPasswordStrength.WithDetails("must contain at least one number")
	case p.requireSpecial && !special:
		return domainerrors.ErrPasswordStrength.WithDetails("must contain at least one special character")
	}

	return nil
}
