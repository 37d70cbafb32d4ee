package totp

import (
	"fmt"
	"io"

	"github.com/pquerna/otp"
	otptotp "github.com/pquerna/otp/totp"
)

// SecretSize is the secret length in bytes (160 bits).
const SecretSize = 20

// Generator implements ports.SecretGenerator.
type Generator struct {
	issuer string
	rand   io.Reader
}

// NewGenerator returns a Generator that labels keys with issuer. A nil rand
// selects crypto/rand.
func NewGenerator(issuer string, rand io.Reader) *Generator {
	return &Generator{issuer: issuer, rand: rand}
}

// Generate returns a fresh base32 secret without padding.
func (g *Generator) Generate(accountName string) (string, error) {
	key, err := otptotp.Generate(otptotp.GenerateOpts{
		Issuer:      g.issuer,
		AccountName: accountName,
		Period:      Period,
		SecretSize:  SecretSize,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		Rand:        g.rand,
	})
	if err != nil {
		return "", fmt.Errorf("totp: generate secret: %w", err)
	}
	return key.Secret(), nil
}
