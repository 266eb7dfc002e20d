// Package config handles configuration parsing and validation for the
// decision core.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the decision core and its transport.
type Config struct {
	// Server settings
	Port     int
	LogLevel string

	// Agent router
	MaxWorkers     int
	EvaluatorTimeout time.Duration

	// Risk evaluator / model artifact
	ModelArtifactDir string
	UseModelPath     bool

	// Behavioral store
	BehaviorStoreBackend string // "memory" | "dynamodb"
	DDBTableProfiles     string
	AWSRegion            string

	// Network context provider
	NetworkStoreBackend string // "memory" | "redis"
	RedisAddr           string
	NetworkRedisPrefix  string
	NetworkRedisTTL     time.Duration

	// Operational metadata index
	MetadataIndexBackend string // "memory" | "dynamodb"
	DDBTableMetadata     string

	// Audit ledger
	AuditStoreBackend   string // "file" | "s3"
	AuditPartitionDir   string
	AuditS3Bucket       string
	AuditS3Prefix       string
	AuditQueueCapacity  int
	AuditOnFullBlocking bool
	AuditDrainDeadline  time.Duration

	// Policy engine
	PolicyDocumentPath    string
	PolicyCacheTTL        time.Duration
	PolicyCountersBackend string // "memory" | "redis"
	PolicyRedisPrefix     string

	// Request limits
	RequestMaxBytes int

	// Metrics
	EnableMetrics bool
	MetricsPort   int
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:                 8080,
		LogLevel:             "info",
		MaxWorkers:           3,
		EvaluatorTimeout:     1500 * time.Millisecond,
		ModelArtifactDir:     "./artifacts/risk-model",
		UseModelPath:         false,
		BehaviorStoreBackend: "memory",
		DDBTableProfiles:     "sentrydesk-behavioral-profiles",
		AWSRegion:            "us-east-1",
		NetworkStoreBackend:   "memory",
		RedisAddr:             "localhost:6379",
		NetworkRedisPrefix:    "sentrydesk:netctx",
		NetworkRedisTTL:       30 * time.Minute,
		MetadataIndexBackend:  "memory",
		DDBTableMetadata:      "sentrydesk-decision-metadata",
		AuditStoreBackend:     "file",
		AuditPartitionDir:     "./data/audit",
		AuditS3Bucket:         "",
		AuditS3Prefix:         "audit",
		AuditQueueCapacity:    1000,
		AuditOnFullBlocking:   true,
		AuditDrainDeadline:    10 * time.Second,
		PolicyDocumentPath:    "./config/policy.yaml",
		PolicyCacheTTL:        5 * time.Minute,
		PolicyCountersBackend: "memory",
		PolicyRedisPrefix:     "sentrydesk:policy",
		RequestMaxBytes:       1 << 20, // 1MB
		EnableMetrics:         true,
		MetricsPort:           9090,
	}
}

// LoadFromEnv loads configuration from environment variables, applying
// DefaultConfig first.
func LoadFromEnv() (*Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = port
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	if v := os.Getenv("MAX_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid MAX_WORKERS: %w", err)
		}
		cfg.MaxWorkers = n
	}

	if v := os.Getenv("EVALUATOR_TIMEOUT_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid EVALUATOR_TIMEOUT_MS: %w", err)
		}
		cfg.EvaluatorTimeout = time.Duration(ms) * time.Millisecond
	}

	if v := os.Getenv("MODEL_ARTIFACT_DIR"); v != "" {
		cfg.ModelArtifactDir = v
	}

	if v := os.Getenv("USE_MODEL_PATH"); v != "" {
		cfg.UseModelPath = v == "true" || v == "1"
	}

	if v := os.Getenv("BEHAVIOR_STORE_BACKEND"); v != "" {
		cfg.BehaviorStoreBackend = v
	}

	if v := os.Getenv("SENTRYDESK_DDB_TABLE_PROFILES"); v != "" {
		cfg.DDBTableProfiles = v
	}

	if v := os.Getenv("AWS_REGION"); v != "" {
		cfg.AWSRegion = v
	}

	if v := os.Getenv("NETWORK_STORE_BACKEND"); v != "" {
		cfg.NetworkStoreBackend = v
	}

	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}

	if v := os.Getenv("NETWORK_REDIS_PREFIX"); v != "" {
		cfg.NetworkRedisPrefix = v
	}

	if v := os.Getenv("NETWORK_REDIS_TTL_SECONDS"); v != "" {
		s, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid NETWORK_REDIS_TTL_SECONDS: %w", err)
		}
		cfg.NetworkRedisTTL = time.Duration(s) * time.Second
	}

	if v := os.Getenv("METADATA_INDEX_BACKEND"); v != "" {
		cfg.MetadataIndexBackend = v
	}

	if v := os.Getenv("SENTRYDESK_DDB_TABLE_METADATA"); v != "" {
		cfg.DDBTableMetadata = v
	}

	if v := os.Getenv("AUDIT_STORE_BACKEND"); v != "" {
		cfg.AuditStoreBackend = v
	}

	if v := os.Getenv("AUDIT_PARTITION_DIR"); v != "" {
		cfg.AuditPartitionDir = v
	}

	if v := os.Getenv("AUDIT_S3_BUCKET"); v != "" {
		cfg.AuditS3Bucket = v
	}

	if v := os.Getenv("AUDIT_S3_PREFIX"); v != "" {
		cfg.AuditS3Prefix = v
	}

	if v := os.Getenv("AUDIT_QUEUE_CAPACITY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid AUDIT_QUEUE_CAPACITY: %w", err)
		}
		cfg.AuditQueueCapacity = n
	}

	if v := os.Getenv("AUDIT_ON_FULL_BLOCKING"); v != "" {
		cfg.AuditOnFullBlocking = v == "true" || v == "1"
	}

	if v := os.Getenv("AUDIT_DRAIN_DEADLINE_SECONDS"); v != "" {
		s, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid AUDIT_DRAIN_DEADLINE_SECONDS: %w", err)
		}
		cfg.AuditDrainDeadline = time.Duration(s) * time.Second
	}

	if v := os.Getenv("POLICY_DOCUMENT_PATH"); v != "" {
		cfg.PolicyDocumentPath = v
	}

	if v := os.Getenv("POLICY_CACHE_TTL_SECONDS"); v != "" {
		s, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid POLICY_CACHE_TTL_SECONDS: %w", err)
		}
		cfg.PolicyCacheTTL = time.Duration(s) * time.Second
	}

	if v := os.Getenv("POLICY_COUNTERS_BACKEND"); v != "" {
		cfg.PolicyCountersBackend = v
	}

	if v := os.Getenv("POLICY_REDIS_PREFIX"); v != "" {
		cfg.PolicyRedisPrefix = v
	}

	if v := os.Getenv("REQUEST_MAX_BYTES"); v != "" {
		maxBytes, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid REQUEST_MAX_BYTES: %w", err)
		}
		cfg.RequestMaxBytes = maxBytes
	}

	if v := os.Getenv("ENABLE_METRICS"); v != "" {
		cfg.EnableMetrics = v == "true" || v == "1"
	}

	if v := os.Getenv("METRICS_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid METRICS_PORT: %w", err)
		}
		cfg.MetricsPort = n
	}

	return cfg, cfg.Validate()
}

// Validate checks if the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}

	if c.RequestMaxBytes < 1024 {
		return fmt.Errorf("REQUEST_MAX_BYTES must be at least 1024")
	}

	if c.MaxWorkers < 1 {
		return fmt.Errorf("MAX_WORKERS must be at least 1")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	ddbBackends := map[string]bool{"memory": true, "dynamodb": true}
	redisBackends := map[string]bool{"memory": true, "redis": true}
	if !ddbBackends[c.BehaviorStoreBackend] {
		return fmt.Errorf("BEHAVIOR_STORE_BACKEND must be one of: memory, dynamodb")
	}
	if !redisBackends[c.NetworkStoreBackend] {
		return fmt.Errorf("NETWORK_STORE_BACKEND must be one of: memory, redis")
	}
	if !ddbBackends[c.MetadataIndexBackend] {
		return fmt.Errorf("METADATA_INDEX_BACKEND must be one of: memory, dynamodb")
	}
	if !redisBackends[c.PolicyCountersBackend] {
		return fmt.Errorf("POLICY_COUNTERS_BACKEND must be one of: memory, redis")
	}

	validAuditBackends := map[string]bool{"file": true, "s3": true}
	if !validAuditBackends[c.AuditStoreBackend] {
		return fmt.Errorf("AUDIT_STORE_BACKEND must be one of: file, s3")
	}
	if c.AuditStoreBackend == "s3" && c.AuditS3Bucket == "" {
		return fmt.Errorf("AUDIT_S3_BUCKET is required when AUDIT_STORE_BACKEND=s3")
	}

	if c.AuditQueueCapacity < 1 {
		return fmt.Errorf("AUDIT_QUEUE_CAPACITY must be at least 1")
	}

	return nil
}
