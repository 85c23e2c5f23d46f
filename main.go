package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gaev-art/gain-grid/internal/apiclient"
	"github.com/gaev-art/gain-grid/internal/auth"
	"github.com/gaev-art/gain-grid/internal/config"
	"github.com/gaev-art/gain-grid/internal/database"
	"github.com/gaev-art/gain-grid/internal/handlers"
	"github.com/gaev-art/gain-grid/internal/middleware"
	"github.com/gaev-art/gain-grid/internal/services"
	"github.com/gaev-art/gain-grid/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	if cfg.IsProduction() {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warnf("Unknown log level %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func newStorage(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (services.StorageService, error) {
	if cfg.StorageDriver == "minio" {
		storage, err := services.NewMinIOService(cfg.MinIOEndpoint, cfg.MinIOAccessKey, cfg.MinIOSecretKey, cfg.MinIOUseSSL)
		if err != nil {
			return nil, err
		}
		if err := storage.EnsureBucket(ctx, services.AvatarBucket); err != nil {
			return nil, err
		}
		log.WithField("endpoint", cfg.MinIOEndpoint).Info("Using MinIO storage")
		return storage, nil
	}
	log.WithField("path", cfg.LocalStoragePath).Info("Using local storage")
	return services.NewLocalStorageService(cfg.LocalStoragePath)
}

func main() {
	log := logrus.New()
	cfg, err := config.Load(log)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	log = newLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := database.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	cache := services.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, log)
	defer cache.Close()
	users := services.NewCachedRepository(repo, cache, log)
	denylist := services.NewTokenDenylist(cache, log)

	storage, err := newStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}

	redisOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobs := services.NewJobService(redisOpt)
	defer jobs.Close()

	var providers []auth.OAuthProvider
	if cfg.GoogleEnabled() {
		providers = append(providers, auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL+"/api/auth/callback/google"))
	} else {
		log.Info("Google sign in disabled: AUTH_GOOGLE_ID / AUTH_GOOGLE_SECRET not set")
	}

	api := apiclient.New(apiclient.Config{
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.APITimeout,
		Retries:    cfg.ClientRetries(),
		RetryDelay: cfg.APIRetryDelay,
	}, apiclient.WithLogger(log))

	authService := auth.NewService(auth.Config{
		Users:       users,
		Tokens:      auth.NewJWTService(cfg.JWTSecret, "gain-grid"),
		Revocations: denylist,
		Avatars:     jobs,
		API:         api,
		Providers:   providers,
		Logger:      log,
		SessionTTL:  cfg.SessionTTL,
	})

	// Picture URLs are absolute, so the importer gets a client without a base URL.
	pictures := apiclient.New(apiclient.Config{Timeout: cfg.APITimeout, Retries: cfg.ClientRetries(), RetryDelay: cfg.APIRetryDelay}, apiclient.WithLogger(log))
	jobServer := worker.NewServer(redisOpt, cfg.WorkerConcurrency,
		worker.NewAvatarImporter(pictures, storage, users, log),
		worker.NewPurgeHandler(repo, log),
		log)
	if err := jobServer.Start(); err != nil {
		log.Warnf("Background jobs disabled: %v", err)
	} else {
		defer jobServer.Shutdown()
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.WithError(err).WithField("path", c.Path()).Error("Request failed")
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.BaseURL,
		AllowCredentials: true,
	}))
	app.Use("/api", middleware.GlobalRateLimiter())

	secureCookies := cfg.IsProduction()
	handlers.Routes{
		Auth:            handlers.NewAuthHandler(users, authService, secureCookies, log),
		Pages:           handlers.NewPageHandler(authService, secureCookies, log),
		Avatars:         handlers.NewAvatarHandler(users, storage, log),
		Service:         authService,
		Health:          handlers.Health(repo, cache),
		SignInLimiter:   middleware.AuthRateLimiter(),
		RegisterLimiter: middleware.RegistrationRateLimiter(),
	}.Mount(app)

	go func() {
		<-ctx.Done()
		log.Info("Shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.WithError(err).Error("Server shutdown failed")
		}
	}()

	log.WithField("addr", cfg.HTTPAddr).Info("Starting server")
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.WithError(err).Error("Server stopped")
	}
}
