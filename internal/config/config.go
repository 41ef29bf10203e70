package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Email     EmailConfig
}

type ServerConfig struct {
	Port            string
	Env             string // dev or prod
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	TrustedOrigins  []string // CORS allowed origins for cookie auth
}

type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	ChannelBinding string // "require" for Neon DB, empty for local
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type AuthConfig struct {
	// HMAC secret for access tokens. Required.
	AccessTokenSecret []byte
	// HMAC secret for refresh tokens. Falls back to AccessTokenSecret when unset.
	RefreshTokenSecret []byte
	// Issuer/audience claims stamped into every token; the audience identifies
	// the service boundary when running behind the gateway.
	TokenIssuer   string
	TokenAudience string

	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration

	// bcrypt cost factor for password hashing.
	BcryptCost int

	// Account lockout policy.
	MaxLoginAttempts int
	LockoutDuration  time.Duration

	// Upper bound on concurrently tracked refresh tokens per user.
	MaxRefreshTokens int

	// Validity window for password-reset tokens.
	ResetTokenDuration time.Duration
}

// RateLimitConfig holds the fixed-window limits per endpoint class.
type RateLimitConfig struct {
	Login         Limit
	Register      Limit
	PasswordReset Limit
	Refresh       Limit
	General       Limit
}

// Limit is a fixed-window rate limit: MaxAttempts requests per Window.
type Limit struct {
	Window      time.Duration
	MaxAttempts int
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	FrontendURL  string // Frontend URL for reset/verification links
	SendTimeout  time.Duration
}

// Load reads configuration from environment variables
// Call godotenv.Load() before this if using .env file
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Env:             getEnv("APP_ENV", "dev"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
			TrustedOrigins:  getSliceEnv("TRUSTED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			DBName:         getEnv("DB_NAME", "cinevault_auth"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			ChannelBinding: getEnv("DB_CHANNEL_BINDING", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			AccessTokenSecret:    []byte(getEnv("JWT_SECRET", "")),
			RefreshTokenSecret:   []byte(getEnv("JWT_REFRESH_SECRET", "")),
			TokenIssuer:          getEnv("JWT_ISSUER", "cinevault-auth"),
			TokenAudience:        getEnv("JWT_AUDIENCE", "cinevault"),
			AccessTokenDuration:  getDurationEnv("ACCESS_TOKEN_DURATION", 15*time.Minute),
			RefreshTokenDuration: getDurationEnv("REFRESH_TOKEN_DURATION", 7*24*time.Hour),
			BcryptCost:           getIntEnv("BCRYPT_COST", 12),
			MaxLoginAttempts:     getIntEnv("MAX_LOGIN_ATTEMPTS", 5),
			LockoutDuration:      getDurationEnv("LOCKOUT_DURATION", 2*time.Hour),
			MaxRefreshTokens:     getIntEnv("MAX_REFRESH_TOKENS", 5),
			ResetTokenDuration:   getDurationEnv("RESET_TOKEN_DURATION", 10*time.Minute),
		},
		RateLimit: RateLimitConfig{
			Login: Limit{
				Window:      getDurationEnv("RATE_LIMIT_LOGIN_WINDOW", 15*time.Minute),
				MaxAttempts: getIntEnv("RATE_LIMIT_LOGIN_MAX", 5),
			},
			Register: Limit{
				Window:      getDurationEnv("RATE_LIMIT_REGISTER_WINDOW", 15*time.Minute),
				MaxAttempts: getIntEnv("RATE_LIMIT_REGISTER_MAX", 3),
			},
			PasswordReset: Limit{
				Window:      getDurationEnv("RATE_LIMIT_RESET_WINDOW", time.Hour),
				MaxAttempts: getIntEnv("RATE_LIMIT_RESET_MAX", 3),
			},
			Refresh: Limit{
				Window:      getDurationEnv("RATE_LIMIT_REFRESH_WINDOW", 5*time.Minute),
				MaxAttempts: getIntEnv("RATE_LIMIT_REFRESH_MAX", 10),
			},
			General: Limit{
				Window:      getDurationEnv("RATE_LIMIT_GENERAL_WINDOW", 15*time.Minute),
				MaxAttempts: getIntEnv("RATE_LIMIT_GENERAL_MAX", 100),
			},
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUser:     getEnv("SMTP_USER", ""),
			SMTPPassword: getEnv("SMTP_PASS", ""),
			FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:3000"),
			SendTimeout:  getDurationEnv("EMAIL_SEND_TIMEOUT", 10*time.Second),
		},
	}

	if len(cfg.Auth.AccessTokenSecret) == 0 {
		return nil, fmt.Errorf("JWT_SECRET must be set")
	}
	// Refresh tokens share the access secret unless a dedicated one is provided.
	if len(cfg.Auth.RefreshTokenSecret) == 0 {
		cfg.Auth.RefreshTokenSecret = cfg.Auth.AccessTokenSecret
	}
	if cfg.Auth.BcryptCost < 4 || cfg.Auth.BcryptCost > 31 {
		return nil, fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", cfg.Auth.BcryptCost)
	}
	if cfg.Auth.MaxRefreshTokens < 1 {
		return nil, fmt.Errorf("MAX_REFRESH_TOKENS must be at least 1, got %d", cfg.Auth.MaxRefreshTokens)
	}

	return cfg, nil
}

func (c *DatabaseConfig) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)

	// Add channel_binding if configured (required for Neon DB)
	if c.ChannelBinding != "" {
		connStr += fmt.Sprintf(" channel_binding=%s", c.ChannelBinding)
	}

	return connStr
}

// Address returns Redis connection address (host:port)
func (c *RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDevelopment returns true if the environment is set to dev
func (c *ServerConfig) IsDevelopment() bool {
	return c.Env == "dev"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	seconds, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return time.Duration(seconds) * time.Second
}

func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Split by comma and trim whitespace
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	if len(result) == 0 {
		return defaultValue
	}

	return result
}
