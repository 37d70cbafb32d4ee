package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultReplayTTL = 90 * time.Second

// ReplayGuard implements ports.ReplayGuard with SETNX.
// Key format: totp:used:<user_id>:<step>
type ReplayGuard struct {
	client *redis.Client
}

// NewReplayGuard creates a ReplayGuard wrapping the given Redis client.
func NewReplayGuard(client *redis.Client) *ReplayGuard {
	return &ReplayGuard{client: client}
}

// Claim records that step was accepted for userID and reports whether it was
// the first claim. The key expires after ttl, or defaultReplayTTL if ttl is
// not positive.
func (g *ReplayGuard) Claim(ctx context.Context, userID string, step int64, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = defaultReplayTTL
	}
	ok, err := g.client.SetNX(ctx, replayKey(userID, step), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replay claim: %w", err)
	}
	return ok, nil
}

func replayKey(userID string, step int64) string {
	return fmt.Sprintf("totp:used:%s:%d", userID, step)
}
