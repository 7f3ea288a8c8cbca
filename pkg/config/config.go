package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the radar backend
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	Database DatabaseConfig
	Redis    RedisConfig
	Tushare  TushareConfig
	Sync     SyncConfig
	Radar    RadarConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// TushareConfig holds the vendor feed credentials and call policy
type TushareConfig struct {
	Token         string
	BaseURL       string
	Timeout       time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	RateLimit     int // requests per minute across all processes sharing Redis
}

// SyncConfig controls the batch sync modes
type SyncConfig struct {
	StartDate time.Time     // first date of a full backfill
	UnitPause time.Duration // pause between instruments
	Workers   int
	IndexCode string // index whose constituents form the core universe
}

// RadarConfig controls the screening engine
type RadarConfig struct {
	ConfigPath string // optional YAML with filter presets and signal rules
	CacheTTL   time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function that calls os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	startDate, err := time.Parse("20060102", getEnv("SYNC_START_DATE", "20150101"))
	if err != nil {
		return nil, fmt.Errorf("parse SYNC_START_DATE: %w", err)
	}

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Tushare: TushareConfig{
			Token:         getEnv("TUSHARE_TOKEN", ""),
			BaseURL:       getEnv("TUSHARE_BASE_URL", "http://api.tushare.pro"),
			Timeout:       getEnvAsDuration("TUSHARE_TIMEOUT", "30s"),
			RetryAttempts: getEnvAsInt("TUSHARE_RETRY_ATTEMPTS", 3),
			RetryDelay:    getEnvAsDuration("TUSHARE_RETRY_DELAY", "1s"),
			RateLimit:     getEnvAsInt("TUSHARE_RATE_LIMIT", 200),
		},

		Sync: SyncConfig{
			StartDate: startDate,
			UnitPause: getEnvAsDuration("SYNC_UNIT_PAUSE", "500ms"),
			Workers:   getEnvAsInt("SYNC_WORKERS", 1),
			IndexCode: getEnv("SYNC_INDEX_CODE", "000906.SH"),
		},

		Radar: RadarConfig{
			ConfigPath: getEnv("RADAR_CONFIG", ""),
			CacheTTL:   getEnvAsDuration("RADAR_CACHE_TTL", "10m"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Tushare.Token == "" {
		return fmt.Errorf("TUSHARE_TOKEN is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Tushare.RetryAttempts < 1 {
		return fmt.Errorf("TUSHARE_RETRY_ATTEMPTS must be at least 1")
	}

	if c.Sync.Workers < 1 {
		return fmt.Errorf("SYNC_WORKERS must be at least 1")
	}

	return nil
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
