// Package config loads the server configuration.
//
// LAYERING (later wins):
//
//	built-in defaults → .env file → process environment → command-line flags
//
// The .env file is optional. The result is a plain value handed to
// constructors; nothing in the application reads the environment itself.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/sakif/knowledge-base/internal/cache"
)

// DevJWTSecret is the signing secret used when JWT_SECRET is unset. It is
// refused when ENV=production.
const DevJWTSecret = "dev-only-insecure-jwt-secret"

// MinJWTSecretLength is the shortest accepted signing secret.
const MinJWTSecretLength = 16

// Config holds everything the server needs to start.
type Config struct {
	Port           int
	DatabaseURL    string
	JWTSecret      string
	JWTTTL         time.Duration
	Redis          cache.Config
	LogLevel       slog.Level
	Env            string
	LoginRateLimit int // requests per minute per client IP on /user and /user/login
}

// UsesPostgres reports whether DatabaseURL points at Postgres. Anything
// else is a SQLite file path.
func (c Config) UsesPostgres() bool {
	return strings.HasPrefix(c.DatabaseURL, "postgres://") ||
		strings.HasPrefix(c.DatabaseURL, "postgresql://")
}

// IsProduction reports whether ENV is "production".
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Load reads ./.env, the environment and args (os.Args[1:]).
func Load(args []string) (Config, error) {
	return load(".env", os.LookupEnv, args)
}

func load(envFile string, lookup func(string) (string, bool), args []string) (Config, error) {
	dotenv, err := godotenv.Read(envFile)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading %s: %w", envFile, err)
	}

	env := func(key, def string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		if v, ok := dotenv[key]; ok && v != "" {
			return v
		}
		return def
	}

	var (
		cfg    Config
		errs   []error
		intVar = func(key string, def int) int {
			raw := env(key, strconv.Itoa(def))
			n, err := strconv.Atoi(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %q is not an integer", key, raw))
				return def
			}
			return n
		}
	)

	cfg.Port = intVar("PORT", 8080)
	cfg.DatabaseURL = env("DATABASE_URL", "data/kb.db")
	cfg.JWTSecret = env("JWT_SECRET", DevJWTSecret)
	ttlSeconds := intVar("JWT_TTL", 86400)
	cfg.Redis = cache.Config{
		Host:     env("REDIS_HOST", ""),
		Port:     intVar("REDIS_PORT", 6379),
		Password: env("REDIS_PASSWORD", ""),
	}
	if cfg.Redis.TLS, err = strconv.ParseBool(env("REDIS_TLS", "false")); err != nil {
		errs = append(errs, fmt.Errorf("REDIS_TLS: %q is not a boolean", env("REDIS_TLS", "")))
	}
	logLevel := env("LOG_LEVEL", "debug")
	cfg.Env = env("ENV", "dev")
	cfg.LoginRateLimit = intVar("LOGIN_RATE_LIMIT", 20)

	// Flags default to the values resolved so far, so only flags that are
	// actually passed override them.
	flags := pflag.NewFlagSet("server", pflag.ContinueOnError)
	flags.IntVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP listen port")
	flags.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "SQLite file path or postgres:// URL")
	flags.IntVar(&ttlSeconds, "jwt-ttl", ttlSeconds, "session token lifetime in seconds")
	flags.StringVar(&cfg.Redis.Host, "redis-host", cfg.Redis.Host, "Redis host (empty disables the cache)")
	flags.IntVar(&cfg.Redis.Port, "redis-port", cfg.Redis.Port, "Redis port")
	flags.BoolVar(&cfg.Redis.TLS, "redis-tls", cfg.Redis.TLS, "connect to Redis over TLS")
	flags.StringVar(&logLevel, "log-level", logLevel, "debug, info, warn or error")
	flags.StringVar(&cfg.Env, "env", cfg.Env, "deployment environment (dev, production)")
	flags.IntVar(&cfg.LoginRateLimit, "login-rate-limit", cfg.LoginRateLimit, "sign-up and login requests per minute per IP")
	if err := flags.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	cfg.JWTTTL = time.Duration(ttlSeconds) * time.Second
	if err := cfg.LogLevel.UnmarshalText([]byte(logLevel)); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %q is not a log level", logLevel))
	}

	errs = append(errs, cfg.validate()...)
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

func (c Config) validate() []error {
	var errs []error
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: %d is out of range", c.Port))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("DATABASE_URL: must not be empty"))
	}
	if len(c.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET: must be at least %d characters", MinJWTSecretLength))
	}
	if c.IsProduction() && c.JWTSecret == DevJWTSecret {
		errs = append(errs, errors.New("JWT_SECRET: must be set in production"))
	}
	if c.JWTTTL <= 0 {
		errs = append(errs, errors.New("JWT_TTL: must be positive"))
	}
	if c.Redis.Port < 1 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT: %d is out of range", c.Redis.Port))
	}
	if c.LoginRateLimit < 1 {
		errs = append(errs, errors.New("LOGIN_RATE_LIMIT: must be at least 1"))
	}
	return errs
}
