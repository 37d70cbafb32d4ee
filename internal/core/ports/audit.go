package ports

import (
	"context"
	"time"

	"github.com/99minutos/twofactor-auth/internal/core/domain"
)

// AuditSink accepts audit events. Record must not block the caller.
type AuditSink interface {
	Record(event domain.AuthEvent)
}

// AuditRepository persists audit events.
type AuditRepository interface {
	InsertAuthEvent(ctx context.Context, event domain.AuthEvent) error
}

// ReplayGuard remembers TOTP time steps that were already accepted for a user.
// Claim reports false when the step was claimed before.
type ReplayGuard interface {
	Claim(ctx context.Context, userID string, step int64, ttl time.Duration) (bool, error)
}
