// Package config centralizes how SectionDrop reads environment variables and
// exposes them as strongly typed Go values.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Store backends selectable through SECTIONDROP_STORE.
const (
	StoreJSON     = "json"
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config represents runtime configuration for the service.
type Config struct {
	Address     string
	UploadsDir  string
	PublicDir   string
	StoreFile   string
	StoreKind   string
	DatabaseURL string
	MaxFileSize int64
	Workers     int

	// ExposeErrors controls whether raw error messages reach upload clients.
	ExposeErrors bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3Bucket    string
	S3Region    string
	S3UseSSL    bool

	LogLevel  slog.Level
	LogFormat string
}

const (
	defaultAddress     = ":3000"
	defaultUploadsDir  = "uploads"
	defaultPublicDir   = "public"
	defaultStoreFile   = "files.json"
	defaultMaxFileSize = 25 << 20 // 25 MiB
	defaultWorkerCount = 2
	defaultS3Bucket    = "sectiondrop-uploads"
	defaultS3Region    = "us-east-1"
)

// Load reads configuration from environment variables falling back to defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Address:       readEnv("SECTIONDROP_ADDRESS", defaultAddress),
		UploadsDir:    readEnv("SECTIONDROP_UPLOADS_DIR", defaultUploadsDir),
		PublicDir:     readEnv("SECTIONDROP_PUBLIC_DIR", defaultPublicDir),
		StoreFile:     readEnv("SECTIONDROP_STORE_FILE", defaultStoreFile),
		StoreKind:     strings.ToLower(readEnv("SECTIONDROP_STORE", StoreJSON)),
		DatabaseURL:   readEnv("SECTIONDROP_DATABASE_URL", ""),
		MaxFileSize:   parseInt64("SECTIONDROP_MAX_FILE_BYTES", defaultMaxFileSize),
		Workers:       parseInt("SECTIONDROP_WORKERS", defaultWorkerCount),
		ExposeErrors:  parseBool("SECTIONDROP_EXPOSE_ERRORS", true),
		RedisAddr:     readEnv("SECTIONDROP_REDIS_ADDR", ""),
		RedisPassword: readEnv("SECTIONDROP_REDIS_PASSWORD", ""),
		RedisDB:       parseInt("SECTIONDROP_REDIS_DB", 0),
		S3Endpoint:    readEnv("SECTIONDROP_S3_ENDPOINT", ""),
		S3AccessKey:   readEnv("SECTIONDROP_S3_ACCESS_KEY", ""),
		S3SecretKey:   readEnv("SECTIONDROP_S3_SECRET_KEY", ""),
		S3Bucket:      readEnv("SECTIONDROP_S3_BUCKET", defaultS3Bucket),
		S3Region:      readEnv("SECTIONDROP_S3_REGION", defaultS3Region),
		S3UseSSL:      parseBool("SECTIONDROP_S3_USE_SSL", false),
		LogFormat:     strings.ToLower(readEnv("SECTIONDROP_LOG_FORMAT", "text")),
	}
	level, err := parseLevel(readEnv("SECTIONDROP_LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	switch c.StoreKind {
	case StoreJSON, StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("SECTIONDROP_STORE=postgres requires SECTIONDROP_DATABASE_URL")
		}
	default:
		return fmt.Errorf("SECTIONDROP_STORE: unknown backend %q", c.StoreKind)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("SECTIONDROP_LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	if c.S3Endpoint != "" && c.S3Bucket == "" {
		return fmt.Errorf("SECTIONDROP_S3_BUCKET must not be empty when S3 is enabled")
	}
	return nil
}

// ThumbnailsDir is where preview cards are written; it lives under the
// public dir so /thumbnails/<name> is served by the static handler.
func (c *Config) ThumbnailsDir() string {
	return filepath.Join(c.PublicDir, "thumbnails")
}

// QueueEnabled reports whether thumbnail jobs go through Redis.
func (c *Config) QueueEnabled() bool {
	return c.RedisAddr != ""
}

// MirrorEnabled reports whether uploads are copied to object storage.
func (c *Config) MirrorEnabled() bool {
	return c.S3Endpoint != ""
}

// SetupLogger installs the process-wide slog logger and returns it.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt64(key string, def int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseLevel(v string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		return 0, fmt.Errorf("SECTIONDROP_LOG_LEVEL: %w", err)
	}
	return level, nil
}
