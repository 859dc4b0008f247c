// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir   string // Directory for the price cache database (always absolute)
	Port      int
	LogLevel  string
	LogPretty bool

	Prices  PriceConfig
	LLM     LLMConfig
	Solver  SolverConfig
	Bounds  BoundsConfig
	Cleanup string // cron schedule for cache cleanup
}

// PriceConfig holds price history settings
type PriceConfig struct {
	LookbackYears int
	YahooBaseURL  string // empty = public Yahoo chart API
	CacheTTL      time.Duration
}

// LLMConfig holds the OpenAI-compatible endpoint used for parameter extraction
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// SolverConfig holds allocator worker settings
type SolverConfig struct {
	Workers       int
	Timeout       time.Duration
	MaxIterations int
}

// BoundsConfig holds the enterprise default bounds
type BoundsConfig struct {
	MinSectorAlloc float64
	MaxAssetWeight float64
	MaxSectorAlloc float64
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	absDataDir, err := filepath.Abs(getEnv("DATA_DIR", "./data"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		Port:      getEnvAsInt("PORT", 8001),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", true),
		Prices: PriceConfig{
			LookbackYears: getEnvAsInt("PRICE_LOOKBACK_YEARS", 5),
			YahooBaseURL:  getEnv("YAHOO_BASE_URL", ""),
			CacheTTL:      getEnvAsDuration("PRICE_CACHE_TTL", 12*time.Hour),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("LLM_API_KEY", ""),
			BaseURL: getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			Model:   getEnv("LLM_MODEL", "llama-3.1-8b-instant"),
		},
		Solver: SolverConfig{
			Workers:       getEnvAsInt("SOLVER_WORKERS", runtime.NumCPU()),
			Timeout:       getEnvAsDuration("SOLVER_TIMEOUT", 30*time.Second),
			MaxIterations: getEnvAsInt("SOLVER_MAX_ITERATIONS", 20000),
		},
		Bounds: BoundsConfig{
			MinSectorAlloc: getEnvAsFloat("MIN_SECTOR_ALLOC", 0.05),
			MaxAssetWeight: getEnvAsFloat("MAX_ASSET_WEIGHT", 0.15),
			MaxSectorAlloc: getEnvAsFloat("MAX_SECTOR_ALLOC", 0.40),
		},
		Cleanup: getEnv("CACHE_CLEANUP_SCHEDULE", "@hourly"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that numeric settings are usable
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.Solver.Workers <= 0 {
		return fmt.Errorf("SOLVER_WORKERS must be positive, got %d", c.Solver.Workers)
	}
	if c.Solver.MaxIterations <= 0 {
		return fmt.Errorf("SOLVER_MAX_ITERATIONS must be positive, got %d", c.Solver.MaxIterations)
	}
	if c.Solver.Timeout <= 0 {
		return fmt.Errorf("SOLVER_TIMEOUT must be positive, got %s", c.Solver.Timeout)
	}
	if c.Prices.LookbackYears <= 0 {
		return fmt.Errorf("PRICE_LOOKBACK_YEARS must be positive, got %d", c.Prices.LookbackYears)
	}

	bounds := map[string]float64{
		"MIN_SECTOR_ALLOC": c.Bounds.MinSectorAlloc,
		"MAX_ASSET_WEIGHT": c.Bounds.MaxAssetWeight,
		"MAX_SECTOR_ALLOC": c.Bounds.MaxSectorAlloc,
	}
	for name, v := range bounds {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0, 1], got %g", name, v)
		}
	}
	if c.Bounds.MinSectorAlloc > c.Bounds.MaxSectorAlloc {
		return fmt.Errorf("MIN_SECTOR_ALLOC (%g) exceeds MAX_SECTOR_ALLOC (%g)",
			c.Bounds.MinSectorAlloc, c.Bounds.MaxSectorAlloc)
	}

	return nil
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
