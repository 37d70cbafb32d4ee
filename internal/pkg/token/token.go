// Package token issues and validates the HS256 session tokens handed out by
// the login and 2FA flows. Tokens are self-contained: nothing is stored
// server side and validity is decided by signature and expiry alone.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/99minutos/twofactor-auth/internal/core/domain"
)

// DefaultTTL is used when no positive TTL is configured.
const DefaultTTL = time.Hour

var errEmptySecret = errors.New("token: signing secret is empty")

// Claims is the JWT payload. Subject holds the user id.
type Claims struct {
	Stage domain.AuthStage `json:"stage"`
	jwt.RegisteredClaims
}

// Issuer implements ports.TokenIssuer. The signing key is fixed at
// construction and only read afterwards.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithClock replaces time.Now for both issuing and validation.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithIssuer sets the iss claim.
func WithIssuer(name string) Option {
	return func(i *Issuer) { i.issuer = name }
}

func NewIssuer(secret string, ttl time.Duration, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, errEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	i := &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for userID valid from now until now+TTL.
func (i *Issuer) Issue(userID string, stage domain.AuthStage) (string, time.Time, error) {
	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(i.ttl)

	claims := Claims{
		Stage: stage,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Validate checks signature, algorithm and expiry. Expired tokens yield
// domain.ErrTokenExpired; every other failure yields domain.ErrTokenMalformed.
func (i *Issuer) Validate(raw string) (*domain.Session, error) {
	if raw == "" {
		return nil, domain.ErrTokenMalformed
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, domain.ErrTokenExpired
	case err != nil, !tkn.Valid:
		return nil, domain.ErrTokenMalformed
	}

	if claims.Subject == "" {
		return nil, domain.ErrTokenMalformed
	}
	if claims.Stage != domain.StagePassword && claims.Stage != domain.StageMFA {
		return nil, domain.ErrTokenMalformed
	}

	session := &domain.Session{
		UserID:    claims.Subject,
		Stage:     claims.Stage,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	return session, nil
}
