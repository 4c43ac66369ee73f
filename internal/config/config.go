package config

import (
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// STORE_DRIVER=memory keeps users and sessions in process (local runs only).
	StoreDriver string

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Auth policies
	RefreshRotation    bool
	BcryptCost         int
	LoginMaxFailures   int
	LoginFailureWindow time.Duration
	RedisURL           string

	// Observability
	SentryDSN string
	AppEnv    string

	// Server
	Port          string
	CORSOrigins   string
	RateLimitAPI  int
	RateLimitAuth int
}

func Load() *Config {
	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "inflnara"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "720h"), 30*24*time.Hour),

		RefreshRotation:    parseBool(getEnv("REFRESH_ROTATION", "false")),
		BcryptCost:         parseBcryptCost(getEnv("BCRYPT_COST", "")),
		LoginMaxFailures:   parseInt(getEnv("LOGIN_MAX_FAILURES", "0"), 0),
		LoginFailureWindow: parseDuration(getEnv("LOGIN_FAILURE_WINDOW", "15m"), 15*time.Minute),
		RedisURL:           getEnv("REDIS_URL", ""),

		SentryDSN: getEnv("SENTRY_DSN", ""),
		AppEnv:    getEnv("APP_ENV", "development"),

		Port:          getEnv("PORT", "3005"),
		CORSOrigins:   getEnv("CORS_ORIGINS", "http://localhost:3000"),
		RateLimitAPI:  parseInt(getEnv("RATE_LIMIT_API", "60"), 60),
		RateLimitAuth: parseInt(getEnv("RATE_LIMIT_AUTH", "10"), 10),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// ThrottleEnabled reports whether failed logins should be counted in Redis.
func (c *Config) ThrottleEnabled() bool {
	return c.LoginMaxFailures > 0 && c.RedisURL != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false
	}
	return b
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func parseBcryptCost(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < bcrypt.MinCost || n > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return n
}
