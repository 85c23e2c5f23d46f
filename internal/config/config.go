package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	// BaseURL is the externally reachable origin. The auth service posts
	// registrations to BaseURL + /api/auth/register.
	BaseURL  string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseDriver string `envconfig:"DATABASE_DRIVER" default:"postgres"`
	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret  string        `envconfig:"JWT_SECRET" required:"true"`
	SessionTTL time.Duration `envconfig:"SESSION_TTL" default:"720h"`

	GoogleClientID     string `envconfig:"AUTH_GOOGLE_ID"`
	GoogleClientSecret string `envconfig:"AUTH_GOOGLE_SECRET"`

	StorageDriver    string `envconfig:"STORAGE_DRIVER" default:"local"`
	MinIOEndpoint    string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	MinIOAccessKey   string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	MinIOSecretKey   string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	MinIOUseSSL      bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	LocalStoragePath string `envconfig:"LOCAL_STORAGE_PATH" default:"./data/storage"`

	APITimeout    time.Duration `envconfig:"API_TIMEOUT" default:"10s"`
	APIRetries    int           `envconfig:"API_RETRIES" default:"3"`
	APIRetryDelay time.Duration `envconfig:"API_RETRY_DELAY" default:"1s"`

	WorkerConcurrency int `envconfig:"WORKER_CONCURRENCY" default:"5"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// ClientRetries converts API_RETRIES to the apiclient convention, where 0
// selects the default and a negative count disables retries.
func (c *Config) ClientRetries() int {
	if c.APIRetries <= 0 {
		return -1
	}
	return c.APIRetries
}

// GoogleEnabled reports whether Google sign-in credentials are configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load reads an optional .env file and then the process environment.
func Load(log logrus.FieldLogger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using environment variables")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	switch cfg.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q", cfg.DatabaseDriver)
	}
	switch cfg.StorageDriver {
	case "minio", "local":
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	return &cfg, nil
}
