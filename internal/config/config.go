// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Workers        int
	Portfolios     int
	FrontierPoints int
	RiskFreeRate   float64
	PeriodsPerYear int
	Notional       float64

	// Universe is the ticker set re-optimized by the scheduler.
	Universe            []string
	Schedule            string // six-field cron; empty disables scheduled runs
	MaintenanceSchedule string

	RateLimit float64 // optimization runs per second; 0 disables throttling
	RateBurst int

	CacheTTL     time.Duration
	RiskLookback int

	Archive ArchiveConfig
}

// ArchiveConfig holds S3-compatible archive settings
type ArchiveConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Enabled reports whether archiving is configured
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("FRONTIER_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("FRONTIER_PORT", 8080),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		Workers:        getEnvAsInt("FRONTIER_WORKERS", defaultWorkers()),
		Portfolios:     getEnvAsInt("FRONTIER_PORTFOLIOS", 5000),
		FrontierPoints: getEnvAsInt("FRONTIER_FRONTIER_POINTS", 1000),
		RiskFreeRate:   getEnvAsFloat("FRONTIER_RISK_FREE", 0),
		PeriodsPerYear: getEnvAsInt("FRONTIER_PERIODS_PER_YEAR", 252),
		Notional:       getEnvAsFloat("FRONTIER_NOTIONAL", 0),

		Universe:            getEnvAsList("FRONTIER_UNIVERSE"),
		Schedule:            getEnv("FRONTIER_SCHEDULE", ""),
		MaintenanceSchedule: getEnv("FRONTIER_MAINTENANCE_SCHEDULE", "0 0 2 * * *"),

		RateLimit: getEnvAsFloat("FRONTIER_RATE_LIMIT", 0),
		RateBurst: getEnvAsInt("FRONTIER_RATE_BURST", 2),

		CacheTTL:     getEnvAsDuration("FRONTIER_CACHE_TTL", 24*time.Hour),
		RiskLookback: getEnvAsInt("FRONTIER_RISK_LOOKBACK", 756),

		Archive: ArchiveConfig{
			Bucket:          getEnv("FRONTIER_ARCHIVE_BUCKET", ""),
			Endpoint:        getEnv("FRONTIER_ARCHIVE_ENDPOINT", ""),
			Region:          getEnv("FRONTIER_ARCHIVE_REGION", "auto"),
			AccessKeyID:     getEnv("FRONTIER_ARCHIVE_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("FRONTIER_ARCHIVE_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("FRONTIER_ARCHIVE_RETENTION_DAYS", 90),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that numeric settings are usable and schedules parse
func (c *Config) Validate() error {
	positive := map[string]int{
		"FRONTIER_PORT":             c.Port,
		"FRONTIER_WORKERS":          c.Workers,
		"FRONTIER_PORTFOLIOS":       c.Portfolios,
		"FRONTIER_FRONTIER_POINTS":  c.FrontierPoints,
		"FRONTIER_PERIODS_PER_YEAR": c.PeriodsPerYear,
	}
	for key, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", key, v)
		}
	}
	if c.FrontierPoints < 3 {
		return fmt.Errorf("FRONTIER_FRONTIER_POINTS must be at least 3, got %d", c.FrontierPoints)
	}
	if c.Notional < 0 {
		return fmt.Errorf("FRONTIER_NOTIONAL must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("FRONTIER_RATE_LIMIT must not be negative")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("FRONTIER_CACHE_TTL must be positive")
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if c.Schedule != "" {
		if _, err := parser.Parse(c.Schedule); err != nil {
			return fmt.Errorf("invalid FRONTIER_SCHEDULE: %w", err)
		}
		if len(c.Universe) == 0 || c.Notional <= 0 {
			return fmt.Errorf("FRONTIER_SCHEDULE requires FRONTIER_UNIVERSE and a positive FRONTIER_NOTIONAL")
		}
	}
	if c.MaintenanceSchedule != "" {
		if _, err := parser.Parse(c.MaintenanceSchedule); err != nil {
			return fmt.Errorf("invalid FRONTIER_MAINTENANCE_SCHEDULE: %w", err)
		}
	}

	if c.Archive.Enabled() && (c.Archive.AccessKeyID == "" || c.Archive.SecretAccessKey == "") {
		return fmt.Errorf("FRONTIER_ARCHIVE_BUCKET requires access key id and secret")
	}
	return nil
}

func defaultWorkers() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
