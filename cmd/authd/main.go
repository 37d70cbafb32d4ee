// Command authd serves the two-factor authentication API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/twofactor-auth/internal/api"
	"github.com/99minutos/twofactor-auth/internal/api/handler"
	"github.com/99minutos/twofactor-auth/internal/core/ports"
	"github.com/99minutos/twofactor-auth/internal/core/service"
	mongostore "github.com/99minutos/twofactor-auth/internal/infrastructure/db/mongo"
	redisstore "github.com/99minutos/twofactor-auth/internal/infrastructure/db/redis"
	"github.com/99minutos/twofactor-auth/internal/infrastructure/db/sqlstore"
	"github.com/99minutos/twofactor-auth/internal/infrastructure/queue"
	"github.com/99minutos/twofactor-auth/internal/pkg/config"
	"github.com/99minutos/twofactor-auth/internal/pkg/password"
	"github.com/99minutos/twofactor-auth/internal/pkg/token"
	"github.com/99minutos/twofactor-auth/internal/pkg/totp"
	"github.com/99minutos/twofactor-auth/pkg/logger"
)

const (
	serviceName     = "twofactor-auth"
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log := logger.Init(logger.Options{Service: serviceName})
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// backend is the credential store selected by STORE_DRIVER together with its
// audit repository, readiness check and cleanup.
type backend struct {
	store ports.CredentialStore
	audit ports.AuditRepository
	ready handler.Pinger
	close func(context.Context) error
}

func openBackend(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*backend, error) {
	switch cfg.Store.Driver {
	case config.DriverMySQL, config.DriverPostgres:
		dialect, err := sqlstore.ParseDialect(cfg.Store.Driver)
		if err != nil {
			return nil, err
		}
		dsn := cfg.MySQL.DSN
		if dialect == sqlstore.Postgres {
			dsn = cfg.Postgres.DSN
		}
		s, err := sqlstore.Open(ctx, dialect, dsn)
		if err != nil {
			return nil, err
		}
		log.Info().Str("driver", cfg.Store.Driver).Msg("sql store ready")
		return &backend{
			store: s,
			audit: s,
			ready: s,
			close: func(context.Context) error { return s.Close() },
		}, nil

	default:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		repo := mongostore.NewAuthRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("mongo store ready")
		return &backend{
			store: repo,
			audit: mongostore.NewAuditRepository(db),
			ready: handler.PingerFunc(func(ctx context.Context) error { return client.Ping(ctx, nil) }),
			close: client.Disconnect,
		}, nil
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	hasher, err := password.New(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	tokens, err := token.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, token.WithIssuer(serviceName))
	if err != nil {
		return err
	}
	engine := totp.NewEngine(totp.WithSkew(cfg.Auth.TOTPSkew))
	secrets := totp.NewGenerator(cfg.Auth.TOTPIssuer, nil)

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := be.close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}()

	ready := map[string]handler.Pinger{cfg.Store.Driver: be.ready}

	// The dispatcher outlives the signal context: it is closed only after the
	// HTTP server has drained, and before the store is closed.
	auditCtx, stopAudit := context.WithCancel(context.Background())
	defer stopAudit()
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, be.audit, log)
	dispatcher.Start(auditCtx)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := dispatcher.Close(drainCtx); err != nil {
			log.Warn().Err(err).Msg("audit queue not fully drained")
		}
	}()

	opts := []service.Option{service.WithAuditSink(dispatcher)}
	if cfg.Auth.ReplayGuard {
		rdb, err := redisstore.Connect(ctx, redisstore.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return err
		}
		defer rdb.Close()

		window := time.Duration(2*engine.Skew()+1) * totp.Period * time.Second
		opts = append(opts, service.WithReplayGuard(redisstore.NewReplayGuard(rdb), window))
		ready["redis"] = handler.PingerFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}

	svc, err := service.NewAuthService(be.store, hasher, secrets, engine, tokens, log, opts...)
	if err != nil {
		return err
	}

	e := api.NewRouter(api.Deps{
		AuthService: svc,
		Tokens:      tokens,
		Ready:       ready,
		Log:         log,
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.Store.Driver).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
