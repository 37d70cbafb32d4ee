package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/twofactor-auth/internal/core/domain"
	"github.com/99minutos/twofactor-auth/internal/core/ports"
)

// Context keys set by Auth.
const (
	ContextUserID = "user_id"
	ContextStage  = "stage"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. It reports false when the header is missing or has another scheme.
func BearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get(echo.HeaderAuthorization)
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// Auth validates the bearer token and injects the session into context.
// Tokens whose stage differs from required are rejected with 403.
func Auth(tokens ports.TokenIssuer, required domain.AuthStage) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := BearerToken(c.Request())
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid authorization header")
			}

			session, err := tokens.Validate(raw)
			if err != nil {
				return err
			}
			if session.Stage != required {
				return echo.NewHTTPError(http.StatusForbidden, "second factor required")
			}

			c.Set(ContextUserID, session.UserID)
			c.Set(ContextStage, string(session.Stage))

			return next(c)
		}
	}
}
