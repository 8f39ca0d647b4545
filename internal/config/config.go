// Package config provides configuration loading and validation for the travelog
// API server and tools. It uses koanf to merge environment variables with
// optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendS3       = "s3"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port     int    `koanf:"port"`
	Env      string `koanf:"env"`
	LogLevel string `koanf:"log_level"`

	// JWT Authentication (validation only; tokens are issued elsewhere)
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"`

	// Collection storage
	StorageBackend string `koanf:"storage_backend"`
	StorageCodec   string `koanf:"storage_codec"`
	DataDir        string `koanf:"data_dir"`

	// S3-compatible object storage (AWS, R2, MinIO)
	S3Bucket          string `koanf:"s3_bucket"`
	S3Endpoint        string `koanf:"s3_endpoint"`
	S3AccessKeyID     string `koanf:"s3_access_key_id"`
	S3SecretAccessKey string `koanf:"s3_secret_access_key"`
	S3Region          string `koanf:"s3_region"`
	S3Prefix          string `koanf:"s3_prefix"`

	// Redis
	RedisURL       string `koanf:"redis_url"`
	RedisKeyPrefix string `koanf:"redis_key_prefix"`

	// Postgres
	DatabaseURL string `koanf:"database_url"`

	// Observability
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	OTLPEndpoint      string  `koanf:"otlp_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`
	MetricsEnabled    bool    `koanf:"metrics_enabled"`

	// HTTP edge
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
	WriteRateLimit     int      `koanf:"write_rate_limit"` // Requests per minute per actor, 0 disables
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret         = errors.New("JWT_SECRET is required")
	ErrInvalidStorageBackend    = errors.New("STORAGE_BACKEND must be one of file, s3, redis, postgres, memory")
	ErrInvalidStorageCodec      = errors.New("STORAGE_CODEC must be json or cbor")
	ErrMissingDataDir           = errors.New("DATA_DIR is required for the file backend")
	ErrMissingS3Bucket          = errors.New("S3_BUCKET is required for the s3 backend")
	ErrMissingS3AccessKeyID     = errors.New("S3_ACCESS_KEY_ID is required for the s3 backend")
	ErrMissingS3SecretAccessKey = errors.New("S3_SECRET_ACCESS_KEY is required for the s3 backend")
	ErrMissingRedisURL          = errors.New("REDIS_URL is required for the redis backend")
	ErrMissingDatabaseURL       = errors.New("DATABASE_URL is required for the postgres backend")
	ErrInvalidSampleRate        = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrInvalidPort              = errors.New("PORT must be a valid integer")
	ErrInvalidWriteRateLimit    = errors.New("WRITE_RATE_LIMIT must be a non-negative integer")
	ErrInvalidBool              = errors.New("must be a valid boolean")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultStorageBackend    = BackendFile
	DefaultStorageCodec      = "json"
	DefaultDataDir           = "./data"
	DefaultS3Region          = "auto"
	DefaultRedisKeyPrefix    = "travelog:collection:"
	DefaultTracingExporter   = "otlp-http"
	DefaultTracingSampleRate = 0.1
	DefaultWriteRateLimit    = 30
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try TRAVELOG_PORT first, then PORT for container platforms
	port, err := getEnvIntOrDefaultMulti([]string{"TRAVELOG_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	tracingEnabled, err := getEnvBoolOrDefault("TRACING_ENABLED", k, "tracing_enabled", false)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	tracingInsecure, err := getEnvBoolOrDefault("TRACING_INSECURE", k, "tracing_insecure", false)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	metricsEnabled, err := getEnvBoolOrDefault("METRICS_ENABLED", k, "metrics_enabled", true)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	sampleRate, err := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), DefaultTracingSampleRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	writeRateLimit := DefaultWriteRateLimit
	if k.Exists("write_rate_limit") {
		writeRateLimit = k.Int("write_rate_limit")
	}
	if val := os.Getenv("WRITE_RATE_LIMIT"); val != "" {
		if n, convErr := strconv.Atoi(val); convErr != nil {
			loadErrs = append(loadErrs, fmt.Errorf("%w: %v", ErrInvalidWriteRateLimit, convErr))
		} else {
			writeRateLimit = n
		}
	}

	corsOrigins := k.Strings("cors_allowed_origins")
	if val := os.Getenv("CORS_ALLOWED_ORIGINS"); val != "" {
		corsOrigins = splitList(val)
	}

	env := getEnvOrDefaultMulti([]string{"TRAVELOG_ENV", "ENV"}, k.String("env"), DefaultEnv)
	defaultLevel := "info"
	if env == DefaultEnv {
		defaultLevel = "debug"
	}

	cfg := &Config{
		Port:              port,
		Env:               env,
		LogLevel:          strings.ToLower(getEnvOrDefault("LOG_LEVEL", k.String("log_level"), defaultLevel)),
		JWTSecret:         getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret: getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		StorageBackend:    strings.ToLower(getEnvOrDefault("STORAGE_BACKEND", k.String("storage_backend"), DefaultStorageBackend)),
		StorageCodec:      strings.ToLower(getEnvOrDefault("STORAGE_CODEC", k.String("storage_codec"), DefaultStorageCodec)),
		DataDir:           getEnvOrDefault("DATA_DIR", k.String("data_dir"), DefaultDataDir),
		S3Bucket:          getEnvOrKoanf("S3_BUCKET", k, "s3_bucket"),
		S3Endpoint:        getEnvOrKoanf("S3_ENDPOINT", k, "s3_endpoint"),
		S3AccessKeyID:     getEnvOrKoanf("S3_ACCESS_KEY_ID", k, "s3_access_key_id"),
		S3SecretAccessKey: getEnvOrKoanf("S3_SECRET_ACCESS_KEY", k, "s3_secret_access_key"),
		S3Region:          getEnvOrDefault("S3_REGION", k.String("s3_region"), DefaultS3Region),
		S3Prefix:          getEnvOrKoanf("S3_PREFIX", k, "s3_prefix"),
		RedisURL:          getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		RedisKeyPrefix:    getEnvOrDefault("REDIS_KEY_PREFIX", k.String("redis_key_prefix"), DefaultRedisKeyPrefix),
		DatabaseURL:       getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		TracingEnabled:    tracingEnabled,
		TracingExporter:   getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		OTLPEndpoint:      getEnvOrKoanf("OTEL_EXPORTER_OTLP_ENDPOINT", k, "otlp_endpoint"),
		TracingSampleRate: sampleRate,
		TracingInsecure:   tracingInsecure,
		MetricsEnabled:    metricsEnabled,

		CORSAllowedOrigins: corsOrigins,
		WriteRateLimit:     writeRateLimit,
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// IsProduction reports whether the server runs with production defaults.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// splitList splits a comma separated env value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
// Note: A port value of 0 from a YAML file will fall back to the default.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvBoolOrDefault reads a boolean flag. The env var wins over the file,
// which wins over defaultVal.
func getEnvBoolOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal bool) (bool, error) {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true, nil
		case "false", "0", "no", "off":
			return false, nil
		default:
			return defaultVal, fmt.Errorf("%s %w", envKey, ErrInvalidBool)
		}
	}
	if k.Exists(koanfKey) {
		return k.Bool(koanfKey), nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.StorageCodec != "json" && c.StorageCodec != "cbor" {
		errs = append(errs, ErrInvalidStorageCodec)
	}

	switch c.StorageBackend {
	case BackendMemory:
	case BackendFile:
		if c.DataDir == "" {
			errs = append(errs, ErrMissingDataDir)
		}
	case BackendS3:
		if c.S3Bucket == "" {
			errs = append(errs, ErrMissingS3Bucket)
		}
		if c.S3AccessKeyID == "" {
			errs = append(errs, ErrMissingS3AccessKeyID)
		}
		if c.S3SecretAccessKey == "" {
			errs = append(errs, ErrMissingS3SecretAccessKey)
		}
	case BackendRedis:
		if c.RedisURL == "" {
			errs = append(errs, ErrMissingRedisURL)
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
	default:
		errs = append(errs, ErrInvalidStorageBackend)
	}

	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	if c.WriteRateLimit < 0 {
		errs = append(errs, ErrInvalidWriteRateLimit)
	}
	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                 strconv.Itoa(c.Port),
		"env":                  c.Env,
		"log_level":            c.LogLevel,
		"jwt_secret":           maskSecret(c.JWTSecret),
		"jwt_previous_secret":  maskSecret(c.JWTPreviousSecret),
		"storage_backend":      c.StorageBackend,
		"storage_codec":        c.StorageCodec,
		"data_dir":             c.DataDir,
		"s3_bucket":            c.S3Bucket,
		"s3_endpoint":          c.S3Endpoint,
		"s3_access_key_id":     maskSecret(c.S3AccessKeyID),
		"s3_secret_access_key": maskSecret(c.S3SecretAccessKey),
		"s3_region":            c.S3Region,
		"redis_url":            maskDatabaseURL(c.RedisURL),
		"database_url":         maskDatabaseURL(c.DatabaseURL),
		"tracing_enabled":      strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":     c.TracingExporter,
		"otlp_endpoint":        c.OTLPEndpoint,
		"metrics_enabled":      strconv.FormatBool(c.MetricsEnabled),
		"cors_allowed_origins": strings.Join(c.CORSAllowedOrigins, ","),
		"write_rate_limit":     strconv.Itoa(c.WriteRateLimit),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a connection URL.
// Works for postgres://, postgresql:// and redis:// alike.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}
	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}
	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
