package auth

import (
	"time"

	"healthbridge/config"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	totpSkew   = 1
)

type totpService struct {
	issuer string
}

// NewTOTPService creates the RFC 6238 code service used for second-factor login.
func NewTOTPService(cfg *config.Config) service.TOTPService {
	issuer := "HealthBridge"
	if cfg != nil && cfg.Auth != nil && cfg.Auth.TOTPIssuer != "" {
		issuer = cfg.Auth.TOTPIssuer
	}

	return &totpService{issuer: issuer}
}

func (s *totpService) GenerateSecret(accountName string) (*service.TOTPKey, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate totp secret")
	}

	return &service.TOTPKey{Secret: key.Secret(), URI: key.URL()}, nil
}

func (s *totpService) Validate(secret, code string, at time.Time) bool {
	if secret == "" || len(code) != int(otp.DigitsSix) {
		return false
	}

	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})

	return err == nil && ok
}
