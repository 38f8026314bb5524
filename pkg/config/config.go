// Package config loads the small fixed environment §9 names: policy
// module path, federation peer list path, decision store path, signal
// source URL, and timeouts, plus an optional named hyperparameter
// profile. Grounded on the teacher's config.Load env-var shape.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the router's startup configuration.
type Config struct {
	ListenAddr string

	// DecisionStorePath selects the durable backend: a filesystem path for
	// FileStore, a path ending in .db or .sqlite for SQLiteStore, a
	// postgres:// DSN for PostgresStore, or empty for an in-memory MemStore
	// (tests and ephemeral deployments only).
	DecisionStorePath string

	// PolicyBackend is "native" or "wasm" (pkg/policyhost.Backend).
	PolicyBackend    string
	PolicyModulePath string
	PolicyID         string

	FederationPeerListPath string

	SignalSourceURL string
	SignalTimeout   time.Duration

	DecisionDeadline time.Duration

	ProfileName string
	ProfilesDir string

	// RedisLimiterAddr selects a redis-backed per-tenant rate limiter
	// shared across router replicas. Empty uses an in-process limiter,
	// which does not coordinate across instances.
	RedisLimiterAddr string
	RedisLimiterDB   int

	// OTelEndpoint, if set, enables the OpenTelemetry exporter described
	// in SPEC_FULL.md's ambient-stack observability section.
	OTelEndpoint    string
	OTelServiceName string

	// AuditLogPath, if set, durably persists every audit entry (§4.3) to a
	// append-only log in which each event carries a hash of its own content.
	// Empty disables durable audit persistence; entries are still computed.
	AuditLogPath string
}

// Load reads configuration from the environment, applying the defaults
// documented in SPEC_FULL.md's ambient-stack section.
func Load() Config {
	return Config{
		ListenAddr:             getEnv("GPUROUTE_LISTEN_ADDR", ":8080"),
		DecisionStorePath:      os.Getenv("GPUROUTE_DECISION_STORE_PATH"),
		PolicyBackend:          getEnv("GPUROUTE_POLICY_BACKEND", "native"),
		PolicyModulePath:       os.Getenv("GPUROUTE_POLICY_MODULE_PATH"),
		PolicyID:               getEnv("GPUROUTE_POLICY_ID", "default"),
		FederationPeerListPath: os.Getenv("GPUROUTE_FEDERATION_PEERS_PATH"),
		SignalSourceURL:        os.Getenv("GPUROUTE_SIGNAL_URL"),
		SignalTimeout:          getDuration("GPUROUTE_SIGNAL_TIMEOUT", 200*time.Millisecond),
		DecisionDeadline:       getDuration("GPUROUTE_DECISION_DEADLINE", 2*time.Second),
		ProfileName:            getEnv("GPUROUTE_PROFILE", ""),
		ProfilesDir:            getEnv("GPUROUTE_PROFILES_DIR", "profiles"),
		RedisLimiterAddr:       os.Getenv("GPUROUTE_REDIS_LIMITER_ADDR"),
		RedisLimiterDB:         getInt("GPUROUTE_REDIS_LIMITER_DB", 0),
		OTelEndpoint:           os.Getenv("GPUROUTE_OTEL_ENDPOINT"),
		OTelServiceName:        getEnv("GPUROUTE_OTEL_SERVICE_NAME", "gpuroute"),
		AuditLogPath:           os.Getenv("GPUROUTE_AUDIT_LOG_PATH"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
