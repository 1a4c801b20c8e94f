// Package config loads the platform's runtime configuration from environment
// variables, following spec §6.6's enumerated option table.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every tunable named in spec §6.6.
type Config struct {
	// Server
	Port     int
	DevMode  bool
	LogLevel string

	// Storage
	DataDir string

	// Tiered Collector
	UpstreamCallBudget int           // B, calls/minute
	ConcurrencyCap     int           // C, max concurrent HTTP
	PriorityTimeframe  string        // always-collect timeframe
	RequestTimeout     time.Duration // per-HTTP-request timeout

	// Wallet / venues
	HomeChain         string
	HomeChainUSDCMint string
	WalletAddress     string
	PerpVenueEnabled  bool
	StreamVenueURL    string // perpetual venue websocket URL; empty disables the ingester
	StreamVenueTable  string // destination OHLC table for the perpetual venue feed

	// Learning Braid Manager
	ClusterThreshold int // N

	// Experiment Orchestrator
	MaxConcurrentExperiments int
	MaxExperimentsPerSource  int
	ExperimentTimeout        time.Duration

	// Resonance Prioritizer
	ResonanceFamilyCap float64 // fraction, default 0.30

	// Doctrine Keeper
	DoctrineMinEvidence     int
	DoctrineSuccessRate     float64
	DoctrineFailureRate     float64
	DoctrineRetireFailure   float64
	DoctrineContraindicated float64

	// Input Normalizer
	ConfluenceThreshold float64
	LeadLagMinSeconds   int
	LeadLagMaxSeconds   int

	// Observability
	HeartbeatInterval time.Duration

	// Object storage backup (optional)
	BackupBucket string
	BackupRegion string
}

// Load reads configuration from environment variables, defaulting per §6.6.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnvAsInt("PORT", 8090),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DataDir: getEnv("DATA_DIR", "./data"),

		UpstreamCallBudget: getEnvAsInt("UPSTREAM_CALL_BUDGET", 250),
		ConcurrencyCap:     getEnvAsInt("CONCURRENCY_CAP", 50),
		PriorityTimeframe:  getEnv("PRIORITY_TIMEFRAME", "1m"),
		RequestTimeout:     time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,

		HomeChain:         getEnv("HOME_CHAIN", "solana"),
		HomeChainUSDCMint: getEnv("HOME_CHAIN_USDC_MINT", ""),
		WalletAddress:     getEnv("WALLET_ADDRESS", ""),
		PerpVenueEnabled:  getEnvAsBool("PERP_VENUE_ENABLED", false),
		StreamVenueURL:    getEnv("STREAM_VENUE_URL", ""),
		StreamVenueTable:  getEnv("STREAM_VENUE_TABLE", "hyperliquid_price_data_ohlc"),

		ClusterThreshold: getEnvAsInt("CLUSTER_THRESHOLD", 3),

		MaxConcurrentExperiments: getEnvAsInt("MAX_CONCURRENT_EXPERIMENTS", 10),
		MaxExperimentsPerSource:  getEnvAsInt("MAX_EXPERIMENTS_PER_SOURCE", 3),
		ExperimentTimeout:        time.Duration(getEnvAsInt("EXPERIMENT_TIMEOUT_HOURS", 24)) * time.Hour,

		ResonanceFamilyCap: getEnvAsFloat("RESONANCE_FAMILY_CAP", 0.30),

		DoctrineMinEvidence:     getEnvAsInt("DOCTRINE_MIN_EVIDENCE", 10),
		DoctrineSuccessRate:     getEnvAsFloat("DOCTRINE_SUCCESS_RATE", 0.7),
		DoctrineFailureRate:     getEnvAsFloat("DOCTRINE_FAILURE_RATE", 0.3),
		DoctrineRetireFailure:   getEnvAsFloat("DOCTRINE_RETIRE_FAILURE", 0.7),
		DoctrineContraindicated: getEnvAsFloat("DOCTRINE_CONTRAINDICATED_FAILURE", 0.8),

		ConfluenceThreshold: getEnvAsFloat("CONFLUENCE_THRESHOLD", 0.7),
		LeadLagMinSeconds:   getEnvAsInt("LEAD_LAG_MIN_SECONDS", 60),
		LeadLagMaxSeconds:   getEnvAsInt("LEAD_LAG_MAX_SECONDS", 3600),

		HeartbeatInterval: time.Duration(getEnvAsInt("HEARTBEAT_INTERVAL_MINUTES", 5)) * time.Minute,

		BackupBucket: getEnv("BACKUP_BUCKET", ""),
		BackupRegion: getEnv("BACKUP_REGION", "auto"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required configuration invariants.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	if c.UpstreamCallBudget <= 0 {
		return fmt.Errorf("UPSTREAM_CALL_BUDGET must be positive")
	}
	if c.ConcurrencyCap <= 0 {
		return fmt.Errorf("CONCURRENCY_CAP must be positive")
	}
	if c.ClusterThreshold < 2 {
		return fmt.Errorf("CLUSTER_THRESHOLD must be at least 2")
	}
	return nil
}

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
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
