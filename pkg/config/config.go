package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from environment variables or config files.
type Config struct {
	AppEnv          string        `mapstructure:"APP_ENV" validate:"required,oneof=development staging production test"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR" validate:"required,hostname_port"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT" validate:"required"`

	LogLevel  string `mapstructure:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal"`
	LogFormat string `mapstructure:"LOG_FORMAT" validate:"required,oneof=json console"`

	DatabaseDriver string `mapstructure:"DATABASE_DRIVER" validate:"required,oneof=postgres sqlite"`
	DatabaseURL    string `mapstructure:"DATABASE_URL" validate:"required"`

	RedisAddr     string `mapstructure:"REDIS_ADDR" validate:"required,hostname_port"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`

	AsynqConcurrency int `mapstructure:"ASYNQ_CONCURRENCY" validate:"gte=1,lte=1000"`

	GoMaxProcs int `mapstructure:"GOMAXPROCS" validate:"gte=0,lte=4096"`

	JWTSecret string `mapstructure:"JWT_SECRET"`

	// Template bundles and build outputs live under StorageRoot.
	StorageRoot    string `mapstructure:"STORAGE_ROOT" validate:"required"`
	MaxBundleBytes int64  `mapstructure:"MAX_BUNDLE_BYTES" validate:"gte=1024"`

	DeployTimeout time.Duration `mapstructure:"DEPLOY_TIMEOUT" validate:"required"`
	LockBackend   string        `mapstructure:"LOCK_BACKEND" validate:"required,oneof=memory redis"`
	LockTTL       time.Duration `mapstructure:"LOCK_TTL" validate:"required"`

	NetlifyToken  string `mapstructure:"NETLIFY_TOKEN"`
	NetlifyAPIURL string `mapstructure:"NETLIFY_API_URL" validate:"required,url"`
	VercelToken   string `mapstructure:"VERCEL_TOKEN"`
	VercelTeamID  string `mapstructure:"VERCEL_TEAM_ID"`
	VercelAPIURL  string `mapstructure:"VERCEL_API_URL" validate:"required,url"`

	PreviewAssetBase string `mapstructure:"PREVIEW_ASSET_BASE"`
}

var (
	cfg      *Config
	validate = validator.New(validator.WithRequiredStructEnabled())
)

var envKeys = []string{
	"APP_ENV",
	"HTTP_ADDR",
	"SHUTDOWN_TIMEOUT",
	"LOG_LEVEL",
	"LOG_FORMAT",
	"DATABASE_DRIVER",
	"DATABASE_URL",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"ASYNQ_CONCURRENCY",
	"GOMAXPROCS",
	"JWT_SECRET",
	"STORAGE_ROOT",
	"MAX_BUNDLE_BYTES",
	"DEPLOY_TIMEOUT",
	"LOCK_BACKEND",
	"LOCK_TTL",
	"NETLIFY_TOKEN",
	"NETLIFY_API_URL",
	"VERCEL_TOKEN",
	"VERCEL_TEAM_ID",
	"VERCEL_API_URL",
	"PREVIEW_ASSET_BASE",
}

// Load initializes configuration using Viper. It loads from .env if present,
// applies defaults, binds env vars, and validates the result.
func Load() (*Config, error) {
	// Load .env if present (non-fatal)
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("HTTP_ADDR", "0.0.0.0:8080")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("ASYNQ_CONCURRENCY", 10)
	v.SetDefault("GOMAXPROCS", 0)
	v.SetDefault("STORAGE_ROOT", "./data")
	v.SetDefault("MAX_BUNDLE_BYTES", 50<<20)
	v.SetDefault("DEPLOY_TIMEOUT", "60s")
	v.SetDefault("LOCK_BACKEND", "memory")
	v.SetDefault("LOCK_TTL", "10m")
	v.SetDefault("NETLIFY_API_URL", "https://api.netlify.com/api/v1")
	v.SetDefault("VERCEL_API_URL", "https://api.vercel.com")

	// Optional config file
	_ = v.ReadInConfig()

	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config unmarshal error: %w", err)
	}

	// Durations may arrive as plain strings from the environment.
	durations := map[string]*time.Duration{
		"SHUTDOWN_TIMEOUT": &c.ShutdownTimeout,
		"DEPLOY_TIMEOUT":   &c.DeployTimeout,
		"LOCK_TTL":         &c.LockTTL,
	}
	for key, dst := range durations {
		s := v.GetString(key)
		if s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if c.GoMaxProcs > 0 {
		runtime.GOMAXPROCS(c.GoMaxProcs)
	}

	cfg = &c
	return cfg, nil
}

// MustLoad loads configuration or exits the process on failure.
func MustLoad() *Config {
	c, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	return c
}

// Get returns the loaded configuration. Panics if not loaded.
func Get() *Config {
	if cfg == nil {
		panic("config not loaded: call config.Load or config.MustLoad first")
	}
	return cfg
}
