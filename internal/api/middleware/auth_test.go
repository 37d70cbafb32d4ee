package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/twofactor-auth/internal/core/domain"
	"github.com/99minutos/twofactor-auth/internal/pkg/token"
)

func newIssuer(t *testing.T, now time.Time) *token.Issuer {
	t.Helper()
	iss, err := token.NewIssuer("secret", time.Hour, token.WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	return iss
}

func run(t *testing.T, mw echo.MiddlewareFunc, header string) (echo.Context, *httptest.ResponseRecorder, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	err := mw(func(c echo.Context) error {
		called = true
		return c.NoContent(http.StatusOK)
	})(c)
	return c, rec, called, err
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	iss := newIssuer(t, time.Now())
	signed, _, err := iss.Issue("u-1", domain.StageMFA)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	c, rec, called, err := run(t, Auth(iss, domain.StageMFA), "Bearer "+signed)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !called {
		t.Fatalf("next not called")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if c.Get(ContextUserID) != "u-1" {
		t.Fatalf("user_id not set")
	}
	if c.Get(ContextStage) != "mfa" {
		t.Fatalf("stage not set")
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	_, _, called, err := run(t, Auth(newIssuer(t, time.Now()), domain.StageMFA), "")
	if called {
		t.Fatalf("next should not be called")
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestAuthMiddleware_WrongScheme(t *testing.T) {
	_, _, called, err := run(t, Auth(newIssuer(t, time.Now()), domain.StageMFA), "Basic dXNlcjpwYXNz")
	if called || err == nil {
		t.Fatalf("expected rejection, got called=%v err=%v", called, err)
	}
}

func TestAuthMiddleware_PasswordStageForbidden(t *testing.T) {
	iss := newIssuer(t, time.Now())
	signed, _, _ := iss.Issue("u-1", domain.StagePassword)

	_, _, called, err := run(t, Auth(iss, domain.StageMFA), "Bearer "+signed)
	if called {
		t.Fatalf("next should not be called")
	}
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusForbidden {
		t.Fatalf("expected 403 HTTPError, got %v", err)
	}
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	signed, _, _ := newIssuer(t, issued).Issue("u-1", domain.StageMFA)

	_, _, called, err := run(t, Auth(newIssuer(t, time.Now()), domain.StageMFA), "Bearer "+signed)
	if called {
		t.Fatalf("next should not be called")
	}
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	_, _, called, err := run(t, Auth(newIssuer(t, time.Now()), domain.StageMFA), "Bearer not-a-jwt")
	if called {
		t.Fatalf("next should not be called")
	}
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		want   string
		ok     bool
	}{
		"bearer":     {"Bearer abc", "abc", true},
		"lowercase":  {"bearer abc", "abc", true},
		"empty":      {"", "", false},
		"no token":   {"Bearer ", "", false},
		"basic auth": {"Basic abc", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			got, ok := BearerToken(req)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("BearerToken(%q) = %q, %v", tc.header, got, ok)
			}
		})
	}
}
