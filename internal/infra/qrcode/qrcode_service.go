package qrcode

import (
	"encoding/base64"

	"healthbridge/config"
	"healthbridge/internal/domain/service"
	"healthbridge/internal/errors"

	"github.com/skip2/go-qrcode"
)

const (
	defaultSize   = 256
	dataURLPrefix = "data:image/png;base64,"
)

type qrcodeService struct {
	size                 int
	errorCorrectionLevel qrcode.RecoveryLevel
}

// NewQRCodeService creates a new QR code service instance
func NewQRCodeService(size int, errorCorrectionLevel string) service.QRCodeService {
	// Set error correction level
	var level qrcode.RecoveryLevel
	switch errorCorrectionLevel {
	case "L":
		level = qrcode.Low
	case "M":
		level = qrcode.Medium
	case "Q":
		level = qrcode.High
	case "H":
		level = qrcode.Highest
	default:
		level = qrcode.Medium
	}

	if size <= 0 {
		size = defaultSize
	}

	return &qrcodeService{
		size:                 size,
		errorCorrectionLevel: level,
	}
}

// NewQRCodeServiceFromConfig reads the qrcode section.
func NewQRCodeServiceFromConfig(cfg *config.Config) service.QRCodeService {
	if cfg == nil || cfg.QRCode == nil {
		return NewQRCodeService(defaultSize, "M")
	}

	return NewQRCodeService(cfg.QRCode.Size, cfg.QRCode.ErrorCorrectionLevel)
}

// GeneratePNG renders content, typically an otpauth:// URI, as a PNG image
func (s *qrcodeService) GeneratePNG(content string) ([]byte, error) {
	qrCode, err := qrcode.New(content, s.errorCorrectionLevel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create QR code")
	}

	pngBytes, err := qrCode.PNG(s.size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate PNG")
	}

	return pngBytes, nil
}

// GenerateDataURL renders content as an inline image for the 2FA setup screen
func (s *qrcodeService) GenerateDataURL(content string) (string, error) {
	pngBytes, err := s.GeneratePNG(content)
	if err != nil {
		return "", err
	}

	return dataURLPrefix + base64.StdEncoding.EncodeToString(pngBytes), nil
}
