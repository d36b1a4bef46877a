// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/carterperez-dev/harvest-table/internal/admin"
	"github.com/carterperez-dev/harvest-table/internal/auth"
	"github.com/carterperez-dev/harvest-table/internal/banner"
	"github.com/carterperez-dev/harvest-table/internal/cart"
	"github.com/carterperez-dev/harvest-table/internal/config"
	"github.com/carterperez-dev/harvest-table/internal/core"
	"github.com/carterperez-dev/harvest-table/internal/health"
	"github.com/carterperez-dev/harvest-table/internal/mail"
	"github.com/carterperez-dev/harvest-table/internal/middleware"
	"github.com/carterperez-dev/harvest-table/internal/notification"
	"github.com/carterperez-dev/harvest-table/internal/order"
	"github.com/carterperez-dev/harvest-table/internal/product"
	"github.com/carterperez-dev/harvest-table/internal/profile"
	"github.com/carterperez-dev/harvest-table/internal/queue"
	"github.com/carterperez-dev/harvest-table/internal/realtime"
	"github.com/carterperez-dev/harvest-table/internal/review"
	"github.com/carterperez-dev/harvest-table/internal/server"
	"github.com/carterperez-dev/harvest-table/internal/storage"
	"github.com/carterperez-dev/harvest-table/internal/user"
	"github.com/carterperez-dev/harvest-table/migrations"
)

const (
	drainDelay         = 5 * time.Second
	tokenPruneInterval = 6 * time.Hour
	tokenPruneAge      = 7 * 24 * time.Hour
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load() //nolint:errcheck // .env is optional

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
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

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if err := core.Migrate(ctx, db.DB, migrations.FS); err != nil {
		return err
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	jwtManager, err := auth.NewJWTManager(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("JWT manager initialized",
		"algorithm", "ES256",
		"key_id", jwtManager.KeyID(),
	)

	uploads, err := storage.NewLocal(cfg.Storage)
	if err != nil {
		return err
	}

	mailer := mail.New(cfg.Mail, logger)
	mailHandlers := queue.MailHandlers(mailer)

	var publisher *queue.Publisher
	if cfg.AMQP.Enabled {
		publisher = queue.NewPublisher(cfg.AMQP.URL)
		if cfg.AMQP.ConsumerEnabled {
			consumer := queue.NewConsumer(cfg.AMQP.URL, cfg.AMQP.Prefetch, mailHandlers, logger)
			go func() {
				if err := consumer.Run(ctx); err != nil {
					logger.Error("queue consumer stopped", "error", err)
				}
			}()
		}
	}
	dispatcher := queue.NewDispatcher(publisher, mailHandlers, logger)

	hub := realtime.NewHub(redis.Client, cfg.Realtime.Channel, logger)
	go func() {
		if err := hub.Run(ctx); err != nil {
			logger.Error("realtime hub stopped", "error", err)
		}
	}()

	responseCache := middleware.NewResponseCache(redis.Client, cfg.Cache)

	userSvc := user.NewService(user.NewRepository(db.DB))
	profileSvc := profile.NewService(profile.NewRepository(db.DB))

	authSvc := auth.NewService(
		auth.NewRepository(db.DB),
		jwtManager,
		userSvc,
		profileSvc,
		mailer,
		redis.Client,
		cfg.Auth,
	)
	profileSvc.OnRoleChange(authSvc.LogoutAll)
	userSvc.OnDelete(authSvc.LogoutAll)

	notificationSvc := notification.NewService(
		notification.NewRepository(db.DB),
		dispatcher,
		hub,
	)

	productSvc := product.NewService(product.NewRepository(db.DB), uploads, responseCache)
	bannerSvc := banner.NewService(banner.NewRepository(db.DB), uploads, responseCache)
	cartSvc := cart.NewService(cart.NewRepository(db.DB))
	userSvc.OnDelete(cartSvc.Clear)
	reviewSvc := review.NewService(review.NewRepository(db.DB), notificationSvc)

	orderSvc := order.NewService(order.Deps{
		Tx:         core.NewTxRunner(db.DB),
		Repo:       order.NewRepository(db.DB),
		Profiles:   profileSvc,
		Dispatcher: dispatcher,
		Notifier:   notificationSvc,
		Live:       hub,
	})

	authHandler := auth.NewHandler(authSvc)
	userHandler := user.NewHandler(userSvc, profileSvc)
	profileHandler := profile.NewHandler(profileSvc)
	productHandler := product.NewHandler(productSvc, uploads)
	bannerHandler := banner.NewHandler(bannerSvc, uploads)
	cartHandler := cart.NewHandler(cartSvc)
	orderHandler := order.NewHandler(orderSvc)
	reviewHandler := review.NewHandler(reviewSvc)
	notificationHandler := notification.NewHandler(notificationSvc)
	realtimeHandler := realtime.NewHandler(hub, cfg.Realtime)

	deps := []health.Dependency{
		{Name: "database", Checker: db},
		{Name: "redis", Checker: redis},
	}
	if publisher != nil {
		deps = append(deps, health.Dependency{Name: "broker", Checker: publisher, Optional: true})
	}
	healthHandler := health.NewHandler(deps...)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:      db.Stats,
		RedisStats:   redis.PoolStats,
		DBPing:       db.Ping,
		RedisPing:    redis.Ping,
		Users:        userSvc.Count,
		Products:     productSvc.Count,
		Unread:       notificationSvc.CountUnread,
		Orders:       orderSvc,
		LiveSessions: hub.ClientCount,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	if telemetry.Enabled() {
		router.Use(middleware.Tracing)
	}
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewThrottle(redis.Client, "global",
			middleware.Every(cfg.RateLimit.Window, cfg.RateLimit.Requests, cfg.RateLimit.Burst),
			middleware.WithThrottleLogger(logger),
		).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	router.Get("/.well-known/jwks.json", jwtManager.JWKSHandler())
	router.Mount(storage.RoutePrefix, uploads.Handler())

	authenticator := middleware.Authenticator(jwtManager, authSvc)
	optionalAuth := middleware.OptionalAuth(jwtManager, authSvc)
	adminOnly := middleware.RequireAdmin(profileSvc)

	limits := auth.Limits{
		Login: middleware.NewThrottle(redis.Client, "login",
			middleware.Every(time.Minute, cfg.Auth.LoginRequests, cfg.Auth.LoginBurst),
			middleware.WithKey(middleware.PerRoute(middleware.ByIP)),
			middleware.WithThrottleLogger(logger),
		).Handler,
		PasswordReset: middleware.NewThrottle(redis.Client, "password-reset",
			middleware.Every(time.Hour, 5, 5),
			middleware.WithKey(middleware.PerRoute(middleware.ByIP)),
			middleware.WithThrottleLogger(logger),
		).Handler,
	}
	reviewLimit := middleware.NewThrottle(redis.Client, "review",
		middleware.Every(time.Hour, 10, 3),
		middleware.WithKey(middleware.PerRoute(middleware.ByUser)),
		middleware.WithThrottleLogger(logger),
	).Handler

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator, limits)
		profileHandler.RegisterRoutes(r, authenticator)

		productHandler.RegisterRoutes(
			r,
			responseCache.Namespace(product.CacheNamespace),
			reviewHandler.ProductRoutes(authenticator, reviewLimit),
		)
		bannerHandler.RegisterRoutes(r, responseCache.Namespace(banner.CacheNamespace))
		cartHandler.RegisterRoutes(r, authenticator)
		orderHandler.RegisterRoutes(r, authenticator, optionalAuth)

		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		productHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		bannerHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		orderHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		reviewHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		notificationHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		realtimeHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
	})

	go pruneTokens(ctx, authSvc, logger)

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
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry.Enabled() {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("broker close error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

func pruneTokens(ctx context.Context, authSvc *auth.Service, logger *slog.Logger) {
	ticker := time.NewTicker(tokenPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := authSvc.PruneExpiredTokens(ctx, tokenPruneAge)
			if err != nil {
				logger.Warn("refresh token prune failed", "error", err)
				continue
			}
			logger.Info("pruned expired refresh tokens", "count", n)
		}
	}
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
