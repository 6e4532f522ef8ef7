package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const devJWTSecret = "recoagua-dev-signing-key"

// Config holds all configuration for the server.
type Config struct {
	Port    string
	LogMode string

	// Database
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBSSLMode      string
	DBMaxOpenConns int

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Events
	RedisAddr    string
	RedisChannel string

	// Engine
	ReferencePolicy    string // "skip" or "strict"
	LevelBadgesEnabled bool

	CORSAllowedOrigins []string
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: ignoring .env: %v", err)
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		LogMode:            getEnv("LOG_MODE", "dev"),
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnv("DB_PORT", "5432"),
		DBUser:             getEnv("DB_USER", "recoagua"),
		DBPassword:         getEnv("DB_PASSWORD", "recoagua"),
		DBName:             getEnv("DB_NAME", "recoagua"),
		DBSSLMode:          getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
		JWTSecret:          getEnv("JWT_SECRET", devJWTSecret),
		TokenTTL:           time.Duration(getEnvInt("TOKEN_TTL_HOURS", 72)) * time.Hour,
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisChannel:       getEnv("REDIS_CHANNEL", "gamification"),
		ReferencePolicy:    strings.ToLower(getEnv("REFERENCE_POLICY", "skip")),
		LevelBadgesEnabled: getEnvBool("LEVEL_BADGES_ENABLED", true),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
	}

	if cfg.ReferencePolicy != "skip" && cfg.ReferencePolicy != "strict" {
		return nil, fmt.Errorf("REFERENCE_POLICY must be 'skip' or 'strict', got %q", cfg.ReferencePolicy)
	}
	if cfg.JWTSecret == devJWTSecret && cfg.IsProduction() {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	mode := strings.ToLower(c.LogMode)
	return mode == "prod" || mode == "production"
}

// CORSAllowCredentials reports whether browsers may send credentials
// cross-origin. Never with a wildcard origin.
func (c *Config) CORSAllowCredentials() bool {
	for _, o := range c.CORSAllowedOrigins {
		if o == "*" {
			return false
		}
	}
	return len(c.CORSAllowedOrigins) > 0
}

// DSN returns the lib/pq connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
