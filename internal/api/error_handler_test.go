package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/twofactor-auth/internal/core/domain"
	"github.com/99minutos/twofactor-auth/internal/pkg/totp"
)

func TestHTTPErrorHandler_Mapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"missing field", domain.MissingField("email"), http.StatusBadRequest, "missing required field: email"},
		{"password too long", domain.ErrPasswordTooLong, http.StatusBadRequest, "password exceeds 72 bytes"},
		{"duplicate", domain.ErrDuplicateUser, http.StatusConflict, "user already exists"},
		{"bad credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "invalid email or password"},
		{"expired", domain.ErrTokenExpired, http.StatusUnauthorized, "token has expired"},
		{"malformed token", domain.ErrTokenMalformed, http.StatusUnauthorized, "invalid token"},
		{"wrong code", domain.ErrInvalidTOTPCode, http.StatusUnauthorized, "invalid 2FA code"},
		{"user not found", domain.ErrUserNotFound, http.StatusNotFound, "user not found"},
		{"store down", fmt.Errorf("login: %w", domain.ErrStoreUnavailable), http.StatusServiceUnavailable, "service unavailable"},
		{"malformed secret", fmt.Errorf("verify 2fa: %w", totp.ErrMalformedSecret), http.StatusInternalServerError, "internal server error"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal server error"},
		{"echo error", echo.NewHTTPError(http.StatusForbidden, "second factor required"), http.StatusForbidden, "second factor required"},
	}

	e := echo.New()
	h := NewHTTPErrorHandler(zerolog.Nop())
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

			h(tc.err, c)

			if rec.Code != tc.code {
				t.Fatalf("expected %d, got %d", tc.code, rec.Code)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body.Error != tc.msg {
				t.Fatalf("expected message %q, got %q", tc.msg, body.Error)
			}
		})
	}
}
