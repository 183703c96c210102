// Package main is the entry point for the Fletcher Signer server.
// Fletcher Signer issues pre-signed GCS upload URLs via remote keyless
// signing: the private key stays in the IAM Credentials API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/prn-tf/fletcher-signer/internal/config"
	"github.com/prn-tf/fletcher-signer/internal/handler"
	"github.com/prn-tf/fletcher-signer/internal/metrics"
	"github.com/prn-tf/fletcher-signer/internal/ratelimit"
	"github.com/prn-tf/fletcher-signer/internal/repository"
	"github.com/prn-tf/fletcher-signer/internal/repository/postgres"
	"github.com/prn-tf/fletcher-signer/internal/repository/sqlite"
	"github.com/prn-tf/fletcher-signer/internal/service"
	"github.com/prn-tf/fletcher-signer/internal/signer"
	"github.com/prn-tf/fletcher-signer/internal/storage"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("backend", cfg.Signing.Backend).
		Msg("starting Fletcher Signer")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Issuance audit database
	issuances, closeDB, err := setupRepository(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	// Metrics
	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	// Signing service
	svc, err := setupService(ctx, cfg, issuances, m, logger)
	if err != nil {
		return err
	}

	// HTTP middleware chain
	var middlewares []func(http.Handler) http.Handler
	if m != nil {
		middlewares = append(middlewares, m.Middleware)
	}
	middlewares = append(middlewares, handler.MaxBodyMiddleware(cfg.Server.MaxBodySize))
	if cfg.Auth.Enabled {
		middlewares = append(middlewares, handler.APIKeyMiddleware(cfg.Auth.APIKeyHashes, logger))
	}
	middlewares = append(middlewares, handler.RateLimitMiddleware(setupLimiter(cfg, logger), logger))

	router := handler.NewRouter(handler.RouterConfig{
		SignedURLHandler: handler.NewSignedURLHandler(handler.SignedURLHandlerConfig{
			Service: svc,
			Logger:  logger,
		}),
		Middlewares: middlewares,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 2)

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var metricsServer *http.Server
	if m != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, m.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}

	logger.Info().Msg("server stopped")
	return nil
}

// setupLogger configures zerolog from the logging config.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}

// setupRepository opens the issuance audit database for the configured
// driver, runs migrations, and returns the repository plus a close func.
func setupRepository(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.IssuanceRepository, func(), error) {
	switch cfg.Database.Driver {
	case "sqlite":
		dbCfg := sqlite.DefaultConfig(cfg.Database.Path)
		if cfg.Database.JournalMode != "" {
			dbCfg.JournalMode = cfg.Database.JournalMode
		}
		if cfg.Database.BusyTimeout > 0 {
			dbCfg.BusyTimeout = cfg.Database.BusyTimeout
		}
		if cfg.Database.SynchronousMode != "" {
			dbCfg.SynchronousMode = cfg.Database.SynchronousMode
		}

		db, err := sqlite.NewDB(ctx, dbCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return sqlite.NewIssuanceRepository(db), func() { _ = db.Close() }, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewIssuanceRepository(db), func() { _ = db.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}
}

// setupService builds the upload URL service for the configured backend.
func setupService(ctx context.Context, cfg *config.Config, issuances repository.IssuanceRepository, m *metrics.Metrics, logger zerolog.Logger) (service.UploadURLService, error) {
	switch cfg.Signing.Backend {
	case "gcs":
		tokenSource := signer.NewMetadataTokenSource(cfg.Signing.MetadataEndpoint)
		iamSigner := signer.NewIAMSigner(signer.IAMConfig{
			Endpoint: cfg.Signing.IAMEndpoint,
			Timeout:  cfg.Signing.SignTimeout,
		}, tokenSource, logger)

		return service.NewSignService(service.SignServiceConfig{
			Signer:         iamSigner,
			Issuances:      issuances,
			Metrics:        m,
			Bucket:         cfg.Signing.Bucket,
			SignerIdentity: cfg.Signing.SignerIdentity,
			DefaultExpiry:  cfg.Signing.DefaultExpiry,
			Logger:         logger,
		}), nil

	case "s3":
		presigner, err := storage.NewS3Presigner(ctx, cfg.Signing.S3, cfg.Signing.Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 presigner: %w", err)
		}

		return service.NewS3SignService(service.S3SignServiceConfig{
			Presigner:     presigner,
			Issuances:     issuances,
			Metrics:       m,
			Bucket:        cfg.Signing.Bucket,
			Identity:      cfg.Signing.S3.AccessKeyID,
			DefaultExpiry: cfg.Signing.DefaultExpiry,
			Logger:        logger,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported signing backend: %s", cfg.Signing.Backend)
	}
}

// setupLimiter selects the rate limiter implementation.
func setupLimiter(cfg *config.Config, logger zerolog.Logger) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return ratelimit.NewNoopLimiter()
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:        cfg.Redis.Addr(),
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			PoolSize:    cfg.Redis.PoolSize,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("using Redis rate limiter")
		return ratelimit.NewRedisLimiter(client, cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
	}

	logger.Info().Msg("using in-memory rate limiter")
	return ratelimit.NewMemoryLimiter(cfg.RateLimit.RequestsPerWindow, cfg.RateLimit.Window)
}
