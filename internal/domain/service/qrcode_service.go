package service

// QRCodeService renders QR codes for authenticator provisioning.
type QRCodeService interface {
	// GeneratePNG renders content as a PNG image.
	GeneratePNG(content string) ([]byte, error)

	// GenerateDataURL renders content as a base64 PNG data URL.
	GenerateDataURL(content string) (string, error)
}
