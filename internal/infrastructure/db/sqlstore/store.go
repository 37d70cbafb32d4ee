// Package sqlstore implements the credential store and the audit repository
// on MySQL or PostgreSQL. The schema is applied with goose from embedded
// migrations; user ids are random UUIDs.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/99minutos/twofactor-auth/internal/core/domain"
)

//go:embed migrations/mysql/*.sql migrations/postgres/*.sql
var migrations embed.FS

const (
	connTimeout     = 10 * time.Second
	connMaxLifetime = 5 * time.Minute
	maxOpenConns    = 25
	maxIdleConns    = 25
)

const userColumns = "id, username, email, password_hash, totp_secret, created_at"

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Store implements ports.CredentialStore and ports.AuditRepository.
type Store struct {
	db      *sql.DB
	dialect Dialect
	newID   func() string
}

// New wraps an open database handle. It does not run migrations.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, newID: uuid.NewString}
}

// Open connects to dsn, verifies the connection and applies migrations.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping: %w", err)
	}

	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)

	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate applies the embedded migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect(s.dialect.gooseDialect()); err != nil {
		return fmt.Errorf("sqlstore: goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, s.db, s.dialect.migrationsDir()); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	created := *user
	created.ID = s.newID()
	created.CreatedAt = user.CreatedAt.UTC()

	q := s.dialect.rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		created.ID, created.Username, created.Email,
		created.PasswordHash, created.TOTPSecret, created.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return nil, domain.ErrDuplicateUser
		}
		return nil, fmt.Errorf("%w: insert user: %v", domain.ErrStoreUnavailable, err)
	}
	return &created, nil
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// FindByID reports ErrUserNotFound for ids that are not UUIDs.
func (s *Store) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrUserNotFound
	}
	return s.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) findOne(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.TOTPSecret, &u.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, domain.ErrUserNotFound
	case err != nil:
		return nil, fmt.Errorf("%w: find user: %v", domain.ErrStoreUnavailable, err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// InsertAuthEvent persists a flow attempt to the auth_events table.
func (s *Store) InsertAuthEvent(ctx context.Context, event domain.AuthEvent) error {
	q := s.dialect.rebind(`INSERT INTO auth_events (flow, outcome, subject, user_id, request_id, occurred_at) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, q,
		string(event.Flow), event.Outcome, event.Subject,
		nullString(event.UserID), nullString(event.RequestID), event.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
