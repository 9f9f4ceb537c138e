package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// SweepTimeout bounds one usage sweep. The sweep lock must outlive it.
const SweepTimeout = 55 * time.Minute

type Config struct {
	ServiceName     string
	CoreDatabaseURL string
	TemporalAddress string
	HTTPListenAddr  string
	MetricsAddr     string
	LogLevel        string

	// CollectionConfig is the path of the YAML file holding meter mappings.
	CollectionConfig string
	// RatesFile is the path of the YAML rate schedule.
	RatesFile string
	// CollectionCron is the schedule the worker registers for usage sweeps.
	CollectionCron    string
	CollectionWorkers int

	MeteringURL   string
	MeteringToken string

	RedisURL     string
	SweepLockTTL time.Duration

	// AdminAPIKey protects the admin API. Empty disables the check.
	AdminAPIKey string

	ArchiveS3Endpoint  string
	ArchiveS3Region    string
	ArchiveS3Bucket    string
	ArchiveS3AccessKey string
	ArchiveS3SecretKey string
}

func Load() (*Config, error) {
	cfg := &Config{
		ServiceName:        getEnv("SERVICE_NAME", ""),
		CoreDatabaseURL:    getEnv("CORE_DATABASE_URL", ""),
		TemporalAddress:    getEnv("TEMPORAL_ADDRESS", "localhost:7233"),
		HTTPListenAddr:     getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:        getEnv("METRICS_ADDR", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CollectionConfig:   getEnv("COLLECTION_CONFIG", "config/collection.yaml"),
		RatesFile:          getEnv("RATES_FILE", "config/rates.yaml"),
		CollectionCron:     getEnv("COLLECTION_CRON", "5 * * * *"),
		MeteringURL:        getEnv("METERING_URL", ""),
		MeteringToken:      getEnv("METERING_TOKEN", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		ArchiveS3Endpoint:  getEnv("ARCHIVE_S3_ENDPOINT", ""),
		ArchiveS3Region:    getEnv("ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveS3Bucket:    getEnv("ARCHIVE_S3_BUCKET", ""),
		ArchiveS3AccessKey: getEnv("ARCHIVE_S3_ACCESS_KEY", ""),
		ArchiveS3SecretKey: getEnv("ARCHIVE_S3_SECRET_KEY", ""),
	}

	workers, err := strconv.Atoi(getEnv("COLLECTION_WORKERS", "1"))
	if err != nil {
		return nil, fmt.Errorf("parse COLLECTION_WORKERS: %w", err)
	}
	cfg.CollectionWorkers = workers

	ttl, err := time.ParseDuration(getEnv("SWEEP_LOCK_TTL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("parse SWEEP_LOCK_TTL: %w", err)
	}
	cfg.SweepLockTTL = ttl

	return cfg, nil
}

// Validate checks that the settings required by the named binary are present.
func (c *Config) Validate(component string) error {
	var missing []string
	require := func(value, name string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	switch component {
	case "billing-api":
		require(c.CoreDatabaseURL, "CORE_DATABASE_URL")
		require(c.HTTPListenAddr, "HTTP_LISTEN_ADDR")
		require(c.MeteringURL, "METERING_URL")
	case "worker":
		require(c.CoreDatabaseURL, "CORE_DATABASE_URL")
		require(c.TemporalAddress, "TEMPORAL_ADDRESS")
		require(c.MeteringURL, "METERING_URL")
		require(c.CollectionCron, "COLLECTION_CRON")
	default:
		return fmt.Errorf("unknown component %q", component)
	}
	require(c.CollectionConfig, "COLLECTION_CONFIG")
	require(c.RatesFile, "RATES_FILE")

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	if c.CollectionWorkers < 1 {
		return fmt.Errorf("COLLECTION_WORKERS must be at least 1")
	}
	if c.RedisURL != "" && c.SweepLockTTL < SweepTimeout {
		return fmt.Errorf("SWEEP_LOCK_TTL must be at least %s", SweepTimeout)
	}
	if c.ArchiveS3Bucket != "" && (c.ArchiveS3AccessKey == "") != (c.ArchiveS3SecretKey == "") {
		return fmt.Errorf("ARCHIVE_S3_ACCESS_KEY and ARCHIVE_S3_SECRET_KEY must both be set")
	}
	return nil
}

// ArchiveEnabled reports whether committed statements are archived to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3Bucket != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
