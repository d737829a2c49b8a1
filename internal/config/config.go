// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	Port     int
	DevMode  bool
	LogLevel string

	// Catalog import
	CompanyCatalogPath string // JSON company catalog, imported at startup when set
	ProductCatalogPath string // JSON product catalog, imported at startup when set

	// Forecasting
	ForecastSeed    int64         // Random seed recorded at model construction
	EnsembleSize    int           // Regressors per metric ensemble
	DefaultHorizon  string        // Horizon preset used when the caller does not name one
	FitTimeout      time.Duration // Upper bound for fitting all three metric models
	BatchWorkers    int           // Parallel companies during batch evaluation
	MinHistoryGuard int           // Periods required before forecasting (largest window + 1)

	// Supply chain
	SupplierTargetThreshold float64 // ESG score suppliers are measured against
	RiskPenaltyScale        float64 // Deficit-to-penalty scaling into [0,100] space

	// Scheduler
	EvaluationSchedule string // cron spec for the nightly batch evaluation
	CheckpointSchedule string // cron spec for WAL checkpoints
	BackupSchedule     string // cron spec for cloud backups

	// Object storage backups (disabled unless fully configured)
	Backup BackupConfig
}

// BackupConfig holds S3-compatible object storage settings.
type BackupConfig struct {
	Bucket          string
	Endpoint        string // custom endpoint for S3-compatible stores; empty = AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Enabled reports whether cloud backups are fully configured.
func (b BackupConfig) Enabled() bool {
	return b.Bucket != "" && b.AccessKeyID != "" && b.SecretAccessKey != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Resolve the data directory: ESGRADE_DATA_DIR, else ./data, always
	// absolute, created if missing.
	dataDir := getEnv("ESGRADE_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
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
		Port:     getEnvAsInt("PORT", 8090),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		CompanyCatalogPath: getEnv("COMPANY_CATALOG", ""),
		ProductCatalogPath: getEnv("PRODUCT_CATALOG", ""),

		ForecastSeed:    int64(getEnvAsInt("FORECAST_SEED", 42)),
		EnsembleSize:    getEnvAsInt("ENSEMBLE_SIZE", 25),
		DefaultHorizon:  getEnv("DEFAULT_HORIZON", "1Y"),
		FitTimeout:      time.Duration(getEnvAsInt("FIT_TIMEOUT_SECONDS", 30)) * time.Second,
		BatchWorkers:    getEnvAsInt("BATCH_WORKERS", 4),
		MinHistoryGuard: 7, // largest rolling window (6) + 1

		SupplierTargetThreshold: getEnvAsFloat("SUPPLIER_TARGET_THRESHOLD", 70.0),
		RiskPenaltyScale:        getEnvAsFloat("RISK_PENALTY_SCALE", 0.5),

		EvaluationSchedule: getEnv("EVALUATION_SCHEDULE", "0 30 2 * * *"),
		CheckpointSchedule: getEnv("CHECKPOINT_SCHEDULE", "0 15 * * * *"),
		BackupSchedule:     getEnv("BACKUP_SCHEDULE", "0 0 4 * * 0"),

		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
			Region:          getEnv("BACKUP_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and coherent
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.EnsembleSize < 2 {
		return fmt.Errorf("ensemble size must be at least 2, got %d", c.EnsembleSize)
	}
	switch c.DefaultHorizon {
	case "1Q", "2Q", "1Y", "3Y":
	default:
		return fmt.Errorf("unknown default horizon preset: %q", c.DefaultHorizon)
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("batch workers must be at least 1, got %d", c.BatchWorkers)
	}
	if c.RiskPenaltyScale < 0 {
		return fmt.Errorf("risk penalty scale cannot be negative, got %f", c.RiskPenaltyScale)
	}
	if c.SupplierTargetThreshold < 0 || c.SupplierTargetThreshold > 100 {
		return fmt.Errorf("supplier target threshold must be in [0,100], got %f", c.SupplierTargetThreshold)
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
