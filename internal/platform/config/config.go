// Package config builds runtime configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"warden/internal/governor"
)

// Server is the full runtime configuration for the gateway process.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string

	Postgres   Postgres
	Redis      Redis
	Kafka      Kafka
	Governance governor.Config

	ShutdownTimeout time.Duration
}

// Postgres configures the durable change log. An empty URL selects the
// in-memory store.
type Postgres struct {
	URL string
}

// Redis configures the graph node cache. An empty URL disables caching.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	NodeTTL      time.Duration
}

// Kafka configures change event streaming. No brokers means streaming off.
type Kafka struct {
	Brokers []string
	Topic   string
}

// FromEnv reads WARDEN_* environment variables, falling back to development
// defaults for anything unset.
func FromEnv() Server {
	cfg := Server{
		Addr:          envOr("WARDEN_ADDR", ":8080"),
		JWTSigningKey: envOr("WARDEN_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		JWTIssuer:     envOr("WARDEN_JWT_ISSUER", "warden"),
		Postgres: Postgres{
			URL: os.Getenv("WARDEN_POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("WARDEN_REDIS_URL"),
			PoolSize:     envInt("WARDEN_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("WARDEN_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("WARDEN_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("WARDEN_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("WARDEN_REDIS_WRITE_TIMEOUT", 3*time.Second),
			NodeTTL:      envDuration("WARDEN_REDIS_NODE_TTL", 5*time.Minute),
		},
		Kafka: Kafka{
			Brokers: envList("WARDEN_KAFKA_BROKERS"),
			Topic:   os.Getenv("WARDEN_KAFKA_TOPIC"),
		},
		Governance:      governanceFromEnv(),
		ShutdownTimeout: envDuration("WARDEN_SHUTDOWN_TIMEOUT", 15*time.Second),
	}
	return cfg
}

func governanceFromEnv() governor.Config {
	cfg := governor.DefaultConfig()
	cfg.AutoApproveThreshold = envInt("WARDEN_AUTO_APPROVE_THRESHOLD", cfg.AutoApproveThreshold)
	cfg.BlockThreshold = envInt("WARDEN_BLOCK_THRESHOLD", cfg.BlockThreshold)
	cfg.EnablePolicyChecks = envBool("WARDEN_ENABLE_POLICY_CHECKS", cfg.EnablePolicyChecks)
	cfg.AllowAgentAutoApprove = envBool("WARDEN_ALLOW_AGENT_AUTO_APPROVE", cfg.AllowAgentAutoApprove)
	cfg.MaxAutoApproveBlastRadius = envInt("WARDEN_MAX_AUTO_APPROVE_BLAST_RADIUS", cfg.MaxAutoApproveBlastRadius)
	cfg.BlastRadiusDepth = envInt("WARDEN_BLAST_RADIUS_DEPTH", cfg.BlastRadiusDepth)
	if envs := envList("WARDEN_PROTECTED_ENVIRONMENTS"); len(envs) > 0 {
		cfg.ProtectedEnvironments = envs
	}
	if types := envList("WARDEN_PROTECTED_RESOURCE_TYPES"); len(types) > 0 {
		cfg.ProtectedResourceTypes = types
	}
	cfg.EvidenceTimeout = envDuration("WARDEN_EVIDENCE_TIMEOUT", cfg.EvidenceTimeout)
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
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

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envDuration(key string, fallback time.Duration) time.Duration {
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

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
