package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/99minutos/twofactor-auth/internal/api/handler"
	"github.com/99minutos/twofactor-auth/internal/core/domain"
	"github.com/99minutos/twofactor-auth/internal/core/service"
	"github.com/99minutos/twofactor-auth/internal/pkg/password"
	"github.com/99minutos/twofactor-auth/internal/pkg/token"
	"github.com/99minutos/twofactor-auth/internal/pkg/totp"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (m *memStore) Create(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return nil, domain.ErrDuplicateUser
		}
	}
	created := *u
	created.ID = strconv.Itoa(len(m.users) + 1)
	m.users[created.ID] = created
	return &created, nil
}

func (m *memStore) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memStore) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

type testServer struct {
	srv    *httptest.Server
	store  *memStore
	engine *totp.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := &memStore{users: make(map[string]domain.User)}
	hasher, err := password.New(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("password.New: %v", err)
	}
	engine := totp.NewEngine()
	tokens, err := token.NewIssuer("router-test-secret", time.Hour)
	if err != nil {
		t.Fatalf("token.NewIssuer: %v", err)
	}
	svc, err := service.NewAuthService(store, hasher, totp.NewGenerator("test", nil), engine, tokens, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}

	e := NewRouter(Deps{
		AuthService: svc,
		Tokens:      tokens,
		Ready:       map[string]handler.Pinger{"store": handler.PingerFunc(func(context.Context) error { return nil })},
		Log:         zerolog.Nop(),
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, store: store, engine: engine}
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) (int, map[string]any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func TestRouter_TwoFactorFlow(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "Secret1!",
	})
	if code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d %v", code, body)
	}

	code, _ = ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "Secret1!",
	})
	if code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", code)
	}

	code, body = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong"})
	if code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", code)
	}

	code, body = ts.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "Secret1!"})
	if code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d %v", code, body)
	}
	loginToken, _ := body["token"].(string)

	// The password-stage token does not open MFA-protected routes.
	if code, _ = ts.do(t, http.MethodGet, "/v1/me", loginToken, nil); code != http.StatusForbidden {
		t.Fatalf("me with login token: expected 403, got %d", code)
	}

	code, body = ts.do(t, http.MethodPost, "/auth/verify-2fa", loginToken, map[string]string{"totp_code": "abcdef"})
	if code != http.StatusUnauthorized || body["error"] != "invalid 2FA code" {
		t.Fatalf("wrong code: expected 401 invalid 2FA code, got %d %v", code, body)
	}

	current, err := ts.engine.Now(ts.store.users["1"].TOTPSecret)
	if err != nil {
		t.Fatalf("engine.Now: %v", err)
	}
	code, body = ts.do(t, http.MethodPost, "/auth/verify-2fa", loginToken, map[string]string{"totp_code": current})
	if code != http.StatusOK {
		t.Fatalf("verify: expected 200, got %d %v", code, body)
	}
	mfaToken, _ := body["token"].(string)

	code, body = ts.do(t, http.MethodGet, "/v1/me", mfaToken, nil)
	if code != http.StatusOK || body["username"] != "alice" {
		t.Fatalf("me: expected alice, got %d %v", code, body)
	}
	if _, leaked := body["totp_secret"]; leaked {
		t.Fatalf("profile leaks secret: %v", body)
	}
}

func TestRouter_MissingFieldsAndTokens(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, http.MethodPost, "/auth/register", "", map[string]string{"username": "x"})
	if code != http.StatusBadRequest {
		t.Fatalf("register without email: expected 400, got %d %v", code, body)
	}

	if code, _ = ts.do(t, http.MethodPost, "/auth/verify-2fa", "", map[string]string{"totp_code": "123456"}); code != http.StatusUnauthorized {
		t.Fatalf("verify without token: expected 401, got %d", code)
	}
	if code, _ = ts.do(t, http.MethodGet, "/v1/me", "", nil); code != http.StatusUnauthorized {
		t.Fatalf("me without token: expected 401, got %d", code)
	}
}

func TestRouter_VerifyGarbageTokenAndBody(t *testing.T) {
	ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/auth/verify-2fa", strings.NewReader(`{not json`))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer expired.or.garbage")

	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("POST /auth/verify-2fa: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestRouter_Operations(t *testing.T) {
	ts := newTestServer(t)

	for _, path := range []string{"/health", "/health/ready", "/metrics"} {
		resp, err := ts.srv.Client().Get(ts.srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: expected 200, got %d", path, resp.StatusCode)
		}
	}
}
