package config

import (
	"context"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadWith_Defaults(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET": "s3cret",
	}))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "twofactor-auth", cfg.Auth.TOTPIssuer)
	assert.Equal(t, 1, cfg.Auth.TOTPSkew)
	assert.False(t, cfg.Auth.ReplayGuard)
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
	assert.Equal(t, DriverMongo, cfg.Store.Driver)
	assert.Equal(t, 4, cfg.Audit.Workers)
	assert.False(t, cfg.IsProduction())
}

func TestLoadWith_Overrides(t *testing.T) {
	cfg, err := LoadWith(context.Background(), envconfig.MapLookuper(map[string]string{
		"JWT_SECRET":        "s3cret",
		"ENV":               "production",
		"TOKEN_TTL":         "15m",
		"TOTP_SKEW":         "2",
		"TOTP_REPLAY_GUARD": "true",
		"STORE_DRIVER":      "Postgres",
		"POSTGRES_DSN":      "postgres://db/auth",
		"REDIS_DB":          "3",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 2, cfg.Auth.TOTPSkew)
	assert.True(t, cfg.Auth.ReplayGuard)
	assert.Equal(t, DriverPostgres, cfg.Store.Driver)
	assert.Equal(t, "postgres://db/auth", cfg.Postgres.DSN)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadWith_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"missing secret": {},
		"empty secret":   {"JWT_SECRET": " "},
		"unknown driver": {"JWT_SECRET": "s", "STORE_DRIVER": "sqlite"},
		"negative skew":  {"JWT_SECRET": "s", "TOTP_SKEW": "-1"},
		"zero ttl":       {"JWT_SECRET": "s", "TOKEN_TTL": "0s"},
		"malformed ttl":  {"JWT_SECRET": "s", "TOKEN_TTL": "soon"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadWith(context.Background(), envconfig.MapLookuper(env))
			assert.Error(t, err)
		})
	}
}
