package mfa

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	totpPeriod = 30
	// totpSkew accepts the adjacent time step on each side, tolerating
	// clock drift between the server and the authenticator app.
	totpSkew = 1
)

// TOTPEnrollment carries everything a client needs to enroll an
// authenticator app: the shared secret, the otpauth:// provisioning URI
// and a scannable QR code rendered as a PNG data URL.
type TOTPEnrollment struct {
	Secret    string
	URI       string
	QRDataURL string
}

// NewTOTPEnrollment generates a fresh TOTP secret for the given account
// under the given issuer.
func NewTOTPEnrollment(issuer, accountName string) (*TOTPEnrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
	})
	if err != nil {
		return nil, fmt.Errorf("generate totp secret: %w", err)
	}
	dataURL, err := qrDataURL(key)
	if err != nil {
		return nil, err
	}
	return &TOTPEnrollment{
		Secret:    key.Secret(),
		URI:       key.URL(),
		QRDataURL: dataURL,
	}, nil
}

// ValidateTOTP checks a 6-digit authenticator code against the stored secret
// at the given time.
func ValidateTOTP(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

func qrDataURL(key *otp.Key) (string, error) {
	img, err := key.Image(200, 200)
	if err != nil {
		return "", fmt.Errorf("render totp qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode totp qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
