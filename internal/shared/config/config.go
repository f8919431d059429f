package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"callcenter-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port               string
	CORSAllowOrigin    []string
	ObjectStoreType    string
	LocalStoreDir      string
	AWSRegion          string
	S3Bucket           string
	S3Prefix           string
	S3Endpoint         string
	S3AccessKeyID      string
	S3SecretAccessKey  string
	SSEKMSKeyID        string
	DatabaseURL        string
	Env                string
	JWTSecret          string
	SessionTTL         time.Duration
	SessionPurgeCron   string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
	CacheBackend       string
	ValkeyAddr         string
	StatsCacheTTL      time.Duration
	StatsTimezone      string
	IngestToken        string
	QueueURL           string
	AnalysisEndpoint   string
	MaxUploadBytes     int64
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	loaded := loadEnvFiles(envFiles(os.Getenv("ENV"))...)

	env := normalizeEnv(getEnv("ENV", "dev"))
	if len(loaded) > 0 {
		telemetry.Info("config.dotenv.loaded", map[string]any{"files": loaded, "env": env})
	}
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		telemetry.Warn("config.missing", map[string]any{"key": "DATABASE_URL", "env": env})
	}

	return Config{
		Port:               getEnv("PORT", "8080"),
		CORSAllowOrigin:    splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),
		ObjectStoreType:    normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:      getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:          getEnv("AWS_REGION", ""),
		S3Bucket:           getEnv("S3_BUCKET", ""),
		S3Prefix:           getEnv("S3_PREFIX", "recordings"),
		S3Endpoint:         getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:      getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey:  getEnv("S3_SECRET_ACCESS_KEY", ""),
		SSEKMSKeyID:        getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:        dbURL,
		Env:                env,
		JWTSecret:          getEnv("JWT_SECRET", ""),
		SessionTTL:         getDuration("SESSION_TTL", 7*24*time.Hour),
		SessionPurgeCron:   getEnv("SESSION_PURGE_CRON", "@every 1h"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
		CacheBackend:       normalizeCacheBackend(getEnv("CACHE_BACKEND", "memory")),
		ValkeyAddr:         getEnv("VALKEY_ADDR", ""),
		StatsCacheTTL:      getDuration("STATS_CACHE_TTL", 30*time.Second),
		StatsTimezone:      getEnv("STATS_TIMEZONE", ""),
		IngestToken:        getEnv("INGEST_TOKEN", ""),
		QueueURL:           getEnv("CC_SQS_QUEUE_URL", ""),
		AnalysisEndpoint:   getEnv("ANALYSIS_ENDPOINT", ""),
		MaxUploadBytes:     getInt64("MAX_UPLOAD_BYTES", 100<<20),
	}
}

// IsDevLike reports whether env allows in-memory fallbacks.
func (c Config) IsDevLike() bool {
	return c.Env == "dev" || c.Env == "local"
}

// Validate reports settings that cannot work for the configured env.
// Dev-like environments may fall back to in-memory stores, so only
// contradictions are reported there.
func (c Config) Validate() error {
	var errs []error
	if c.ObjectStoreType == "s3" && strings.TrimSpace(c.S3Bucket) == "" {
		errs = append(errs, errors.New("OBJECT_STORE=s3 requires S3_BUCKET"))
	}
	if (c.S3AccessKeyID == "") != (c.S3SecretAccessKey == "") {
		errs = append(errs, errors.New("S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY must be set together"))
	}
	if _, err := c.StatsLocation(); err != nil {
		errs = append(errs, fmt.Errorf("STATS_TIMEZONE: %w", err))
	}
	if !c.IsDevLike() {
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required outside dev"))
		}
		if strings.TrimSpace(c.JWTSecret) == "" {
			errs = append(errs, errors.New("JWT_SECRET is required outside dev"))
		}
		if c.CacheBackend == "valkey" && c.ValkeyAddr == "" {
			errs = append(errs, errors.New("CACHE_BACKEND=valkey requires VALKEY_ADDR"))
		}
	}
	return errors.Join(errs...)
}

// StatsLocation is the zone "today" is counted in. Unset means the host's
// local zone.
func (c Config) StatsLocation() (*time.Location, error) {
	name := strings.TrimSpace(c.StatsTimezone)
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		telemetry.Warn("config.invalid", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}

func getInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || val <= 0 {
		telemetry.Warn("config.invalid", map[string]any{"key": key, "value": raw})
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeCacheBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "valkey", "redis":
		return "valkey"
	default:
		return "memory"
	}
}
