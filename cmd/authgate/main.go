// Package main is the entry point for the authgate authorization service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/appmint/authgate/internal/audit"
	"github.com/appmint/authgate/internal/authn"
	"github.com/appmint/authgate/internal/bootstrap"
	"github.com/appmint/authgate/internal/cache"
	"github.com/appmint/authgate/internal/config"
	"github.com/appmint/authgate/internal/crypto"
	aghttp "github.com/appmint/authgate/internal/http"
	"github.com/appmint/authgate/internal/oauth"
	"github.com/appmint/authgate/internal/store"
	"github.com/appmint/authgate/internal/store/memory"
	"github.com/appmint/authgate/internal/store/postgres"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	sessions := st.Sessions()
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable", "error", err, "addr", cfg.RedisAddr)
			os.Exit(1)
		}
		defer client.Close()
		sessions = cache.NewSessionCache(sessions, client, cfg.SessionCacheTTL)
		logger.Info("session cache enabled", "addr", cfg.RedisAddr)
	}

	keyPair, err := crypto.LoadOrGenerate(cfg.KeyDir)
	if err != nil {
		logger.Error("failed to load signing key", "error", err)
		os.Exit(1)
	}
	logger.Info("signing key ready", "kid", keyPair.Kid)

	signer := crypto.NewTokenSigner(keyPair, cfg.IssuerURL)
	auditor := audit.NewRecorder(audit.MultiSink{
		audit.NewLogSink(logger),
		audit.NewStoreSink(st.Audit(), logger),
	})

	if err := bootstrap.Seed(ctx, cfg, st, logger); err != nil {
		logger.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}

	validator := oauth.NewClientValidator(st.Clients())
	tokens := oauth.NewTokenService(validator, st.AuthCodes(), sessions, st.Admins(), signer, auditor, logger, cfg.AccessTokenTTL, cfg.SessionTTL)
	authorize := oauth.NewAuthorizeService(st.Clients(), st.AuthCodes(), cfg.AuthCodeTTL)
	authenticator := authn.NewAuthenticator(sessions, st.Admins(), signer, auditor, logger)
	login := authn.NewLoginService(st.Admins(), sessions, auditor, logger, cfg.SessionTTL)

	server := aghttp.NewServer(cfg.Addr(), aghttp.WithLogger(logger))
	server.MountRoutes(aghttp.RouteConfig{
		OAuth:          aghttp.NewOAuthHandler(tokens, authorize, authenticator, logger),
		Admin:          aghttp.NewAdminHandler(login, sessions, auditor, logger, cfg.CookieSecure, cfg.CookieDomain),
		Discovery:      aghttp.NewDiscoveryHandler(cfg.IssuerURL),
		JWKS:           aghttp.NewJWKSHandler(keyPair),
		Authenticator:  authenticator,
		TokenRateLimit: cfg.TokenRateLimit,
		LoginRateLimit: cfg.LoginRateLimit,
	})
	server.Health().SetReady(true)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return sweepExpired(gctx, st, sessions, cfg.SweepInterval, logger)
	})

	g.Go(func() error {
		<-gctx.Done()
		server.Health().SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	logger.Info("server started", "addr", cfg.Addr(), "issuer", cfg.IssuerURL)

	if err := g.Wait(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// openStore picks the backing store from configuration: Postgres when a
// DSN is given, the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory store")
		return memory.NewStore(cfg.AuthCodeTTL, cfg.SessionTTL), func() {}, nil
	}

	st, err := postgres.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		st.Close()
		return nil, nil, err
	}
	logger.Info("using postgres store")
	return st, func() { st.Close() }, nil
}

// sweepExpired periodically purges expired auth codes and sessions.
func sweepExpired(ctx context.Context, st store.Store, sessions store.SessionRepository, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := st.AuthCodes().DeleteExpired(ctx); err != nil {
				logger.Warn("auth code sweep failed", "error", err)
			}
			if err := sessions.DeleteExpired(ctx); err != nil {
				logger.Warn("session sweep failed", "error", err)
			}
		}
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
