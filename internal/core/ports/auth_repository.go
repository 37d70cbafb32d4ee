package ports

import (
	"context"

	"github.com/99minutos/twofactor-auth/internal/core/domain"
)

// CredentialStore is the durable user table. It owns the uniqueness of
// username and email: Create must fail with domain.ErrDuplicateUser when
// either is taken, without writing anything. Lookups return
// domain.ErrUserNotFound for unknown keys and wrap infrastructure failures
// with domain.ErrStoreUnavailable.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
}
