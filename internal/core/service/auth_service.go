package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/twofactor-auth/internal/core/domain"
	"github.com/99minutos/twofactor-auth/internal/core/ports"
	"github.com/99minutos/twofactor-auth/internal/pkg/metrics"
)

// dummyPassword is hashed once at construction. Login compares against that
// hash when the email is unknown so both failure paths cost one bcrypt run.
const dummyPassword = "timing-equaliser"

// AuthService implements registration, password login and TOTP verification.
// It keeps no per-request state; the only shared values are the immutable
// collaborators injected at construction.
type AuthService struct {
	store   ports.CredentialStore
	hasher  ports.PasswordHasher
	secrets ports.SecretGenerator
	totp    ports.TOTPVerifier
	tokens  ports.TokenIssuer
	log     zerolog.Logger

	audit     ports.AuditSink
	replay    ports.ReplayGuard
	replayTTL time.Duration
	now       func() time.Time

	dummyHash string
}

// Option configures optional collaborators of AuthService.
type Option func(*AuthService)

// WithAuditSink sends one audit event per flow attempt to sink.
func WithAuditSink(sink ports.AuditSink) Option {
	return func(s *AuthService) { s.audit = sink }
}

// WithReplayGuard rejects a TOTP code whose time step was already accepted
// for the same user. ttl must cover the whole skew window.
func WithReplayGuard(guard ports.ReplayGuard, ttl time.Duration) Option {
	return func(s *AuthService) {
		s.replay = guard
		s.replayTTL = ttl
	}
}

// WithClock replaces time.Now for audit timestamps and CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(
	store ports.CredentialStore,
	hasher ports.PasswordHasher,
	secrets ports.SecretGenerator,
	verifier ports.TOTPVerifier,
	tokens ports.TokenIssuer,
	log zerolog.Logger,
	opts ...Option,
) (*AuthService, error) {
	s := &AuthService{
		store:   store,
		hasher:  hasher,
		secrets: secrets,
		totp:    verifier,
		tokens:  tokens,
		log:     log,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("auth service: prepare dummy hash: %w", err)
	}
	s.dummyHash = dummy
	return s, nil
}

// Register creates a user with a bcrypt hash and a fresh TOTP secret. The
// returned user never serializes the secret or the hash.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	ev := s.begin(domain.FlowRegister, in.RequestID)
	user, err := s.register(ctx, in, &ev)
	s.finish(ev, err)
	return user, err
}

func (s *AuthService) register(ctx context.Context, in ports.RegisterInput, ev *domain.AuthEvent) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)
	ev.Subject = email

	switch {
	case username == "":
		return nil, domain.MissingField("username")
	case email == "":
		return nil, domain.MissingField("email")
	case in.Password == "":
		return nil, domain.MissingField("password")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	secret, err := s.secrets.Generate(email)
	if err != nil {
		return nil, err
	}

	created, err := s.store.Create(ctx, &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		TOTPSecret:   secret,
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	ev.UserID = created.ID
	return created, nil
}

// Login checks email and password and issues a password-stage token. Unknown
// emails and wrong passwords produce the same error.
func (s *AuthService) Login(ctx context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	ev := s.begin(domain.FlowLogin, in.RequestID)
	res, err := s.login(ctx, in, &ev)
	s.finish(ev, err)
	return res, err
}

func (s *AuthService) login(ctx context.Context, in ports.LoginInput, ev *domain.AuthEvent) (*ports.LoginResult, error) {
	email := normalizeEmail(in.Email)
	ev.Subject = email

	switch {
	case email == "":
		return nil, domain.MissingField("email")
	case in.Password == "":
		return nil, domain.MissingField("password")
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.hasher.Verify(in.Password, s.dummyHash)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	ev.UserID = user.ID

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, domain.StagePassword)
	if err != nil {
		return nil, fmt.Errorf("login: issue token: %w", err)
	}
	return &ports.LoginResult{Token: token, ExpiresAt: expiresAt}, nil
}

// VerifyTwoFactor checks a TOTP code for the user named by a valid session
// token. The token is validated before anything else, so an expired token
// never reaches the code check. On success the caller receives an MFA-stage
// token.
func (s *AuthService) VerifyTwoFactor(ctx context.Context, in ports.VerifyTwoFactorInput) (*ports.VerifyResult, error) {
	ev := s.begin(domain.FlowVerify2FA, in.RequestID)
	res, err := s.verifyTwoFactor(ctx, in, &ev)
	s.finish(ev, err)
	return res, err
}

func (s *AuthService) verifyTwoFactor(ctx context.Context, in ports.VerifyTwoFactorInput, ev *domain.AuthEvent) (*ports.VerifyResult, error) {
	session, err := s.tokens.Validate(in.Token)
	if err != nil {
		return nil, err
	}
	ev.Subject = session.UserID
	ev.UserID = session.UserID

	if strings.TrimSpace(in.Code) == "" {
		return nil, domain.MissingField("totp_code")
	}

	user, err := s.store.FindByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			s.log.Error().Str("user_id", session.UserID).Msg("valid token for unknown user")
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("verify 2fa: %w", err)
	}

	step, ok, err := s.totp.Match(user.TOTPSecret, in.Code)
	if err != nil {
		return nil, fmt.Errorf("verify 2fa: user %s: %w", user.ID, err)
	}
	if !ok {
		return nil, domain.ErrInvalidTOTPCode
	}

	if s.replay != nil {
		fresh, err := s.replay.Claim(ctx, user.ID, step, s.replayTTL)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Str("user_id", user.ID).Msg("replay guard unavailable, accepting code")
		case !fresh:
			metrics.TOTPReplaysTotal.Inc()
			return nil, domain.ErrInvalidTOTPCode
		}
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, domain.StageMFA)
	if err != nil {
		return nil, fmt.Errorf("verify 2fa: issue token: %w", err)
	}
	return &ports.VerifyResult{UserID: user.ID, Token: token, ExpiresAt: expiresAt}, nil
}

// Profile returns the stored user for an authenticated session.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthenticated
	}
	return s.store.FindByID(ctx, userID)
}

func (s *AuthService) begin(flow domain.AuthFlow, requestID string) domain.AuthEvent {
	return domain.AuthEvent{
		Flow:      flow,
		RequestID: requestID,
		Timestamp: s.now().UTC(),
	}
}

// finish records metrics, the audit event and a log line for one attempt.
func (s *AuthService) finish(ev domain.AuthEvent, err error) {
	ev.Outcome = outcomeOf(err)

	metrics.FlowAttemptsTotal.WithLabelValues(string(ev.Flow), ev.Outcome).Inc()
	metrics.FlowDuration.WithLabelValues(string(ev.Flow)).Observe(s.now().Sub(ev.Timestamp).Seconds())

	if s.audit != nil {
		s.audit.Record(ev)
	}

	if ev.Outcome == domain.OutcomeError {
		s.log.Error().
			Err(err).
			Str("flow", string(ev.Flow)).
			Str("user_id", ev.UserID).
			Str("request_id", ev.RequestID).
			Msg("auth flow failed")
		return
	}

	s.log.Info().
		Str("flow", string(ev.Flow)).
		Str("outcome", ev.Outcome).
		Str("user_id", ev.UserID).
		Str("request_id", ev.RequestID).
		Msg("auth flow completed")
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return domain.OutcomeSuccess
	case errors.Is(err, domain.ErrMissingField):
		return domain.OutcomeMissingField
	case errors.Is(err, domain.ErrPasswordTooLong):
		return domain.OutcomeInvalidInput
	case errors.Is(err, domain.ErrDuplicateUser):
		return domain.OutcomeDuplicate
	case errors.Is(err, domain.ErrInvalidCredentials):
		return domain.OutcomeInvalidCredentials
	case errors.Is(err, domain.ErrUnauthenticated):
		return domain.OutcomeUnauthenticated
	case errors.Is(err, domain.ErrInvalidTOTPCode):
		return domain.OutcomeInvalidCode
	case errors.Is(err, domain.ErrUserNotFound):
		return domain.OutcomeUserNotFound
	default:
		return domain.OutcomeError
	}
}

// normalizeEmail trims and lower-cases an address so uniqueness and lookups
// are case-insensitive.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
