package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds application configuration.
type Config struct {
	// Server
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// A recorded payment deviating from the scheduled amount by more than
	// this triggers a schedule recalculation.
	RecalcThreshold decimal.Decimal

	// Progress cache (optional; empty address disables redis)
	RedisAddr        string
	ProgressCacheTTL time.Duration

	// Completion notifications (optional; empty token falls back to logging)
	TelegramToken  string
	TelegramChatID int64
}

var appConfig *Config

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Port: getEnv("PORT", "8080"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "debtwise"),
		DBPassword: getEnv("DB_PASSWORD", "debtwise"),
		DBName:     getEnv("DB_NAME", "debtwise"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		TelegramToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
	}

	// Parse JWT expiration duration
	expStr := getEnv("JWT_EXPIRES_IN", "24h")
	expDur, err := time.ParseDuration(expStr)
	if err != nil {
		log.Printf("Warning: invalid JWT_EXPIRES_IN value '%s', falling back to 24h\n", expStr)
		expDur = 24 * time.Hour
	}
	config.JWTExpirationDur = expDur

	thresholdStr := getEnv("RECALC_THRESHOLD", "10.00")
	threshold, err := decimal.NewFromString(thresholdStr)
	if err != nil || threshold.IsNegative() {
		log.Printf("Warning: invalid RECALC_THRESHOLD value '%s', falling back to 10.00\n", thresholdStr)
		threshold = decimal.RequireFromString("10.00")
	}
	config.RecalcThreshold = threshold

	ttlStr := getEnv("PROGRESS_CACHE_TTL", "5m")
	ttl, err := time.ParseDuration(ttlStr)
	if err != nil {
		log.Printf("Warning: invalid PROGRESS_CACHE_TTL value '%s', falling back to 5m\n", ttlStr)
		ttl = 5 * time.Minute
	}
	config.ProgressCacheTTL = ttl

	if chatStr := getEnv("TELEGRAM_CHAT_ID", ""); chatStr != "" {
		chatID, err := strconv.ParseInt(chatStr, 10, 64)
		if err != nil {
			log.Printf("Warning: invalid TELEGRAM_CHAT_ID value '%s', telegram notifications disabled\n", chatStr)
		} else {
			config.TelegramChatID = chatID
		}
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration.
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
