// Package config reads the trademark monitor's settings from the
// environment. LoadDotEnv may seed the environment from .env files first.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig carries the net/http server limits.
type ServerConfig struct {
	Port              string
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// CORSConfig lists the browser origins allowed to call the API; empty allows all.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig controls Strict-Transport-Security.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig configures trace export over OTLP/gRPC.
type OTELConfig struct {
	Enabled     bool
	Endpoint    string // host:port of the collector
	Insecure    bool
	ServiceName string
	SampleRatio float64 // parent-based ratio in [0,1]
}
// StoreConfig selects the persistence gateway.
type StoreConfig struct {
	Backend   string // STORE_BACKEND: gorm|redis
	DBPath    string // DB_PATH (SQLite file, also used for notifications and idempotency)
	RedisAddr string // REDIS_ADDR
	RedisDB   int    // REDIS_DB
}

// RegistryConfig selects the trademark registry gateway.
type RegistryConfig struct {
	Backend  string        // REGISTRY_BACKEND: fixture|http
	URL      string        // REGISTRY_URL (http backend)
	Fixtures string        // REGISTRY_FIXTURES (optional YAML file)
	Latency  time.Duration // REGISTRY_LATENCY (fixture backend)
	Timeout  time.Duration // REGISTRY_TIMEOUT (http backend)
}

// ExplainConfig configures the dispatch explanation gateway.
type ExplainConfig struct {
	APIKey  string        // GEMINI_API_KEY; empty disables the upstream call
	Model   string        // GEMINI_MODEL
	BaseURL string        // GEMINI_URL
	Timeout time.Duration // EXPLAIN_TIMEOUT
	RPS     float64       // EXPLAIN_RPS
}

// Config is the full process configuration. Field comments name the
// environment variable when it differs from the obvious one.
type Config struct {
	Server         ServerConfig
	GinMode        string // debug|release|test
	LogLevel       string
	LogPretty      bool
	SwaggerEnabled bool
	APIBasePath    string

	Store    StoreConfig
	Registry RegistryConfig
	Explain  ExplainConfig

	ReplyDelay      time.Duration
	MaxMessageRunes int
	NotifyCron      string
	VerifyCode      string

	RateRPS   float64
	RateBurst int

	CORS           CORSConfig
	Security       SecurityConfig
	IdempotencyTTL time.Duration
	OTEL           OTELConfig
}

// MustLoad is Load for main packages.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load builds a Config from the environment. Unparsable values fall back to
// their defaults; the result is then normalized and validated.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Port:              env("PORT", "8080", asString),
			ReadTimeout:       env("READ_TIMEOUT", 15*time.Second, time.ParseDuration),
			ReadHeaderTimeout: env("READ_HEADER_TIMEOUT", 10*time.Second, time.ParseDuration),
			WriteTimeout:      env("WRITE_TIMEOUT", 20*time.Second, time.ParseDuration),
			IdleTimeout:       env("IDLE_TIMEOUT", time.Minute, time.ParseDuration),
			MaxHeaderBytes:    env("MAX_HEADER_BYTES", 1<<20, strconv.Atoi),
		},
		GinMode:        env("GIN_MODE", "release", asLower),
		LogLevel:       env("LOG_LEVEL", "info", asLower),
		LogPretty:      env("LOG_PRETTY", false, asBool),
		SwaggerEnabled: env("SWAGGER_ENABLED", false, asBool),
		APIBasePath:    normalizeBasePath(env("API_BASE_PATH", "/api/v1", asString)),

		Store: StoreConfig{
			Backend:   env("STORE_BACKEND", "gorm", asLower),
			DBPath:    env("DB_PATH", "trademark.db", asString),
			RedisAddr: env("REDIS_ADDR", "localhost:6379", asString),
			RedisDB:   env("REDIS_DB", 0, strconv.Atoi),
		},
		Registry: RegistryConfig{
			Backend:  env("REGISTRY_BACKEND", "fixture", asLower),
			URL:      env("REGISTRY_URL", "", asString),
			Fixtures: env("REGISTRY_FIXTURES", "", asString),
			Latency:  env("REGISTRY_LATENCY", 1500*time.Millisecond, time.ParseDuration),
			Timeout:  env("REGISTRY_TIMEOUT", 10*time.Second, time.ParseDuration),
		},
		Explain: ExplainConfig{
			APIKey:  env("GEMINI_API_KEY", "", asString),
			Model:   env("GEMINI_MODEL", "gemini-2.5-flash", asString),
			BaseURL: env("GEMINI_URL", "https://generativelanguage.googleapis.com", asString),
			Timeout: env("EXPLAIN_TIMEOUT", 30*time.Second, time.ParseDuration),
			RPS:     env("EXPLAIN_RPS", 1.0, asFloat),
		},

		ReplyDelay:      env("REPLY_DELAY", 2500*time.Millisecond, time.ParseDuration),
		MaxMessageRunes: env("MAX_MESSAGE_RUNES", 2000, strconv.Atoi),
		NotifyCron:      env("NOTIFY_CRON", "@every 1m", asString),
		VerifyCode:      env("VERIFY_CODE", "123456", asString),

		RateRPS:   env("RATE_RPS", 5.0, asFloat),
		RateBurst: env("RATE_BURST", 10, strconv.Atoi),

		CORS: CORSConfig{AllowedOrigins: splitCSV(env("CORS_ALLOWED_ORIGINS", "", asString))},
		Security: SecurityConfig{
			EnableHSTS: env("ENABLE_HSTS", false, asBool),
			HSTSMaxAge: env("HSTS_MAX_AGE", 180*24*time.Hour, time.ParseDuration),
		},
		IdempotencyTTL: env("IDEMPOTENCY_TTL", 24*time.Hour, time.ParseDuration),
		OTEL: OTELConfig{
			Enabled:     env("OTEL_ENABLED", false, asBool),
			Endpoint:    env("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317", asString),
			Insecure:    env("OTEL_EXPORTER_OTLP_INSECURE", true, asBool),
			ServiceName: env("OTEL_SERVICE_NAME", "trademarkd", asString),
			SampleRatio: env("OTEL_TRACES_SAMPLER_ARG", 1.0, asFloat),
		},
	}

	cfg.normalize()
	return cfg, cfg.validate()
}

// normalize folds aliases and falls back on unknown modes.
func (c *Config) normalize() {
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	switch c.GinMode {
	case "debug", "release", "test":
	default:
		c.GinMode = "release"
	}
}

// validate reports the first invalid setting by its variable name.
func (c Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(c.Server.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if s := c.Server; s.ReadTimeout <= 0 || s.ReadHeaderTimeout <= 0 || s.WriteTimeout <= 0 || s.IdleTimeout <= 0 {
		return errors.New("timeouts must be positive durations")
	}
	if c.Server.MaxHeaderBytes <= 0 {
		return errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(c.Store.DBPath) == "" {
		return errors.New("DB_PATH must not be empty")
	}
	switch c.Store.Backend {
	case "gorm":
	case "redis":
		if strings.TrimSpace(c.Store.RedisAddr) == "" {
			return errors.New("REDIS_ADDR must not be empty when STORE_BACKEND=redis")
		}
	default:
		return errors.New("STORE_BACKEND must be one of: gorm, redis")
	}
	switch c.Registry.Backend {
	case "fixture":
		if c.Registry.Latency < 0 {
			return errors.New("REGISTRY_LATENCY must be >= 0")
		}
	case "http":
		if strings.TrimSpace(c.Registry.URL) == "" {
			return errors.New("REGISTRY_URL must not be empty when REGISTRY_BACKEND=http")
		}
	default:
		return errors.New("REGISTRY_BACKEND must be one of: fixture, http")
	}
	if c.Registry.Timeout <= 0 || c.Explain.Timeout <= 0 {
		return errors.New("REGISTRY_TIMEOUT and EXPLAIN_TIMEOUT must be positive durations")
	}
	if c.Explain.RPS <= 0 {
		return errors.New("EXPLAIN_RPS must be > 0")
	}
	if c.ReplyDelay < 0 {
		return errors.New("REPLY_DELAY must be >= 0")
	}
	if c.MaxMessageRunes < 1 {
		return errors.New("MAX_MESSAGE_RUNES must be >= 1")
	}
	if strings.TrimSpace(c.NotifyCron) == "" {
		return errors.New("NOTIFY_CRON must not be empty")
	}
	if strings.TrimSpace(c.VerifyCode) == "" {
		return errors.New("VERIFY_CODE must not be empty")
	}
	if c.RateRPS < 0 {
		return errors.New("RATE_RPS must be >= 0")
	}
	if c.RateBurst < 1 {
		return errors.New("RATE_BURST must be >= 1")
	}
	if c.Security.HSTSMaxAge < 0 {
		return errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if c.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be > 0")
	}
	if c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1 {
		return errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}
	return nil
}

// LoadDotEnv seeds the process environment from the given .env files
// (".env" when none are given). Variables already set win over file values,
// and missing files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// env parses the variable k, returning def when it is unset, empty or
// rejected by parse.
func env[T any](k string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(k)
	if !ok || raw == "" {
		return def
	}
	if v, err := parse(raw); err == nil {
		return v
	}
	return def
}

func asString(s string) (string, error) { return s, nil }

func asLower(s string) (string, error) { return strings.ToLower(strings.TrimSpace(s)), nil }

func asFloat(s string) (float64, error) { return strconv.ParseFloat(strings.TrimSpace(s), 64) }

var errNotBool = errors.New("not a boolean")

// asBool accepts the usual on/off spellings, not just strconv.ParseBool's.
func asBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	}
	return false, errNotBool
}

func splitCSV(s string) []string {
	var out []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// normalizeBasePath yields "/" or a "/"-prefixed path without trailing slash.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
