package ports

import (
	"context"
	"time"

	"github.com/99minutos/twofactor-auth/internal/core/domain"
)

// RegisterInput is the DTO for the register flow.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	// RequestID correlates the audit record with the HTTP request.
	RequestID string
}

// LoginInput is the DTO for the password login flow.
type LoginInput struct {
	Email     string
	Password  string
	RequestID string
}

// VerifyTwoFactorInput is the DTO for the TOTP verification flow. Token is the
// raw bearer token returned by Login.
type VerifyTwoFactorInput struct {
	Token     string
	Code      string
	RequestID string
}

// LoginResult carries the password-stage session token.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
}

// VerifyResult confirms the second factor and carries an upgraded token.
type VerifyResult struct {
	UserID    string
	Token     string
	ExpiresAt time.Time
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, in LoginInput) (*LoginResult, error)
	VerifyTwoFactor(ctx context.Context, in VerifyTwoFactorInput) (*VerifyResult, error)
	Profile(ctx context.Context, userID string) (*domain.User, error)
}
