package ports

import (
	"time"

	"github.com/99minutos/twofactor-auth/internal/core/domain"
)

// PasswordHasher computes and checks salted one-way password hashes.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// SecretGenerator produces a fresh base32 TOTP secret for an account.
type SecretGenerator interface {
	Generate(accountName string) (string, error)
}

// TOTPVerifier checks a candidate code against a secret. Match reports the
// time step that matched so callers can reject a replayed code.
type TOTPVerifier interface {
	Match(secret, candidate string) (step int64, ok bool, err error)
}

// TokenIssuer mints and validates signed session tokens.
type TokenIssuer interface {
	Issue(userID string, stage domain.AuthStage) (token string, expiresAt time.Time, err error)
	Validate(token string) (*domain.Session, error)
}
