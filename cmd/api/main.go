// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BfdCampos/workplay/internal/admin"
	"github.com/BfdCampos/workplay/internal/auth"
	"github.com/BfdCampos/workplay/internal/config"
	"github.com/BfdCampos/workplay/internal/core"
	"github.com/BfdCampos/workplay/internal/health"
	"github.com/BfdCampos/workplay/internal/identity"
	"github.com/BfdCampos/workplay/internal/identity/migrations"
	"github.com/BfdCampos/workplay/internal/middleware"
	"github.com/BfdCampos/workplay/internal/notify"
	"github.com/BfdCampos/workplay/internal/provider"
	"github.com/BfdCampos/workplay/internal/server"
	"github.com/BfdCampos/workplay/internal/session"
	"github.com/BfdCampos/workplay/internal/signin"
	"github.com/BfdCampos/workplay/internal/user"
)

const (
	drainDelay        = 5 * time.Second
	outboundTimeout   = 10 * time.Second
	stateIssuer       = "workplay"
	dispatcherTimeout = 5 * time.Second

	signInRequestsPerMinute = 30
	signInBurst             = 10
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen,gocyclo // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"storage", cfg.Storage.Driver,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	var (
		db    *core.Database
		store identity.Store
	)
	switch cfg.Storage.Driver {
	case config.StorageDriverPostgres:
		db, err = core.NewDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		logger.Info("database connected",
			"max_open_conns", cfg.Database.MaxOpenConns,
			"max_idle_conns", cfg.Database.MaxIdleConns,
		)

		if cfg.Database.AutoMigrate {
			if err := db.Migrate(ctx, migrations.FS); err != nil {
				return err
			}
			logger.Info("database migrations applied")
		}

		reassign, err := identity.ParseReassignTargets(cfg.Identity.GuestReassign)
		if err != nil {
			return err
		}
		store = identity.NewPostgresStore(db.DB, reassign)
	default:
		logger.Warn("using in-memory identity store, data is lost on restart")
		store = identity.NewMemoryStore()
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redis.Enabled() {
		logger.Info("redis connected",
			"pool_size", cfg.Redis.PoolSize,
		)
	} else {
		logger.Info("redis not configured, using in-process rate limits and state guard")
	}

	httpClient := &http.Client{Timeout: outboundTimeout}

	providerEnv, err := provider.LoadEnv()
	if err != nil {
		return err
	}
	registry := provider.NewRegistry(providerEnv, provider.Options{
		Production: cfg.IsProduction(),
		BaseURL:    cfg.Auth.BaseURL,
		HTTPClient: httpClient,
	})
	for _, d := range registry.List() {
		logger.Info("sign-in provider enabled", "provider", d.ID)
	}
	if registry.CredentialsEnabled() {
		logger.Warn("credentials sign-in and dev routes are enabled")
	}

	dispatcher := notify.NewDispatcher(
		notify.NewSink(cfg.Notify.SlackWebhookURL, httpClient, logger),
		cfg.Notify.QueueSize,
		cfg.Notify.Timeout,
		logger,
	)

	adapter := identity.NewAdapter(store, dispatcher, cfg.Identity.DefaultRole, logger)
	promoter := signin.NewPromoter(store, cfg.Identity.DefaultRole, logger)
	policy := signin.NewPolicy(
		adapter,
		promoter,
		logger,
		signin.DefaultSyncers(registry.SlackProfiles())...,
	)

	resolver := session.NewResolver(adapter, cfg.Session.MaxAge, cfg.Session.UpdateAge, logger)
	revoker := session.NewRevoker(store, logger)

	sweepCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sweeper := session.NewSweeper(store, cfg.Session.SweepInterval, logger)
	go sweeper.Run(sweepCtx)

	stateSigner, err := auth.NewStateSigner(
		cfg.Auth.Secret,
		stateIssuer,
		cfg.Auth.StateTTL,
		redis.Client,
	)
	if err != nil {
		return err
	}

	authSvc := auth.NewService(adapter, policy, cfg.Session.MaxAge, logger)
	authHandler := auth.NewHandler(auth.HandlerConfig{
		Service:      authSvc,
		Registry:     registry,
		Signer:       stateSigner,
		CookieName:   cfg.Session.CookieName,
		SecureCookie: cfg.Session.SecureCookie,
		BaseURL:      cfg.Auth.BaseURL,
		Logger:       logger,
	})

	userSvc := user.NewService(adapter, revoker, logger)
	userHandler := user.NewHandler(userSvc)
	sessionHandler := session.NewHandler(revoker)

	checks := []health.Check{
		{Name: "redis", Optional: true},
	}
	adminCfg := admin.HandlerConfig{Identity: adapter}
	if redis.Enabled() {
		checks[0].Checker = redis
		adminCfg.RedisStats = redis.PoolStats
		adminCfg.RedisPing = redis.Ping
	}
	if db != nil {
		checks = append(checks, health.Check{Name: "database", Checker: db})
		adminCfg.DBStats = db.Stats
		adminCfg.DBPing = db.Ping
	}
	healthHandler := health.NewHandler(checks...)
	adminHandler := admin.NewHandler(adminCfg)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.Per(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
				cfg.RateLimit.Window,
			),
			FailOpen:   true,
			BypassFunc: middleware.SkipProbes,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	authenticator := middleware.Authenticator(resolver, cfg.Session.CookieName)
	optionalAuth := middleware.OptionalAuth(resolver, cfg.Session.CookieName)
	dashboardOnly := middleware.RequireDashboard
	signInLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.PerMinute(signInRequestsPerMinute, signInBurst),
		KeyFunc:  middleware.KeyByUserAndEndpoint,
		FailOpen: true,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		r.Use(optionalAuth)
		r.Use(middleware.RoleRateLimiter(redis.Client, middleware.DefaultRoleTiers))

		authHandler.RegisterRoutes(r.With(signInLimiter))
		authHandler.RegisterDevRoutes(r)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, dashboardOnly)
		sessionHandler.RegisterRoutes(r, authenticator, dashboardOnly)
		adminHandler.RegisterRoutes(r, authenticator, dashboardOnly)
	})

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+dispatcherTimeout+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	stopSweeper()

	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Error("notification dispatcher close error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}

	logger.Info("application stopped")
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
