// Package password hashes and verifies user passwords with bcrypt.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/twofactor-auth/internal/core/domain"
)

// DefaultCost is the bcrypt work factor used when none is configured.
// 2^12 rounds costs a few hundred milliseconds per hash on current hardware.
const DefaultCost = 12

// bcrypt only reads the first 72 bytes of its input.
const maxPasswordBytes = 72

// Hasher implements ports.PasswordHasher. The salt is generated by bcrypt and
// embedded in the encoded hash, so no separate salt column is needed.
type Hasher struct {
	cost int
}

// New returns a Hasher using cost (DefaultCost when zero). It hashes a probe
// value once so that a broken entropy source fails at startup instead of on
// the first registration.
func New(cost int) (*Hasher, error) {
	if cost == 0 {
		cost = DefaultCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("password: cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	if _, err := bcrypt.GenerateFromPassword([]byte("probe"), bcrypt.MinCost); err != nil {
		return nil, fmt.Errorf("password: self-check: %w", err)
	}
	return &Hasher{cost: cost}, nil
}

// Cost returns the configured work factor.
func (h *Hasher) Cost() int {
	return h.cost
}

func (h *Hasher) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", domain.ErrPasswordTooLong
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(b), nil
}

// Verify reports whether plaintext matches hash. A malformed hash is a
// mismatch, not an error.
func (h *Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
