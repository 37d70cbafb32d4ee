package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestReplayKey(t *testing.T) {
	if got := replayKey("u-1", 56666666); got != "totp:used:u-1:56666666" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestReplayGuard_ClaimUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	ok, err := NewReplayGuard(client).Claim(context.Background(), "u-1", 1, time.Minute)
	if err == nil {
		t.Fatalf("expected error from unreachable redis")
	}
	if ok {
		t.Fatalf("unreachable redis must not report a fresh claim")
	}
}
