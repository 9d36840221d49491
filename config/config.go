package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const defaultJWTSecret = "rollcall-dev-secret-change-me"

// Config is the process configuration, read once at startup and passed down.
type Config struct {
	Port    string
	GinMode string

	DBFile      string
	DatabaseURL string

	JWTSecret   string
	TokenExpiry time.Duration
	BcryptCost  int

	AdminUser     string
	AdminPassword string

	StaticDir   string
	CORSOrigins []string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LoginMaxAttempts int
	LoginLockout     time.Duration

	LogLevel string
}

// Load reads an optional .env file and then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	env := func(key, fallback string) string {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		return fallback
	}

	expiryMinutes, err := envInt(env, "ACCESS_TOKEN_EXPIRE_MINUTES", 24*60)
	if err != nil {
		return Config{}, err
	}
	if expiryMinutes <= 0 {
		return Config{}, fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", expiryMinutes)
	}
	cost, err := envInt(env, "BCRYPT_COST", bcrypt.DefaultCost)
	if err != nil {
		return Config{}, err
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return Config{}, fmt.Errorf("BCRYPT_COST must be between %d and %d, got %d", bcrypt.MinCost, bcrypt.MaxCost, cost)
	}
	redisDB, err := envInt(env, "REDIS_DB", 0)
	if err != nil {
		return Config{}, err
	}
	maxAttempts, err := envInt(env, "LOGIN_MAX_ATTEMPTS", 5)
	if err != nil {
		return Config{}, err
	}
	lockoutMinutes, err := envInt(env, "LOGIN_LOCKOUT_MINUTES", 15)
	if err != nil {
		return Config{}, err
	}

	var origins []string
	for _, origin := range strings.Split(env("CORS_ORIGINS", "*"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}

	return Config{
		Port:    env("PORT", "8000"),
		GinMode: env("GIN_MODE", "release"),

		DBFile:      env("DB_FILE", "data/rollcall.db"),
		DatabaseURL: env("DATABASE_URL", ""),

		JWTSecret:   env("JWT_SECRET", defaultJWTSecret),
		TokenExpiry: time.Duration(expiryMinutes) * time.Minute,
		BcryptCost:  cost,

		AdminUser:     env("ADMIN_USER", "admin"),
		AdminPassword: env("ADMIN_PASSWORD", "123456"),

		StaticDir:   env("STATIC_DIR", "static"),
		CORSOrigins: origins,

		RedisAddr:     env("REDIS_ADDR", ""),
		RedisPassword: env("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		LoginMaxAttempts: maxAttempts,
		LoginLockout:     time.Duration(lockoutMinutes) * time.Minute,

		LogLevel: env("LOG_LEVEL", "info"),
	}, nil
}

// UsesDefaultSecret reports whether JWT_SECRET was left unset.
func (c Config) UsesDefaultSecret() bool {
	return c.JWTSecret == defaultJWTSecret
}

func envInt(env func(string, string) string, key string, fallback int) (int, error) {
	raw := env(key, "")
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, raw, err)
	}
	return value, nil
}
