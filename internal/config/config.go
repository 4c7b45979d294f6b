// Package config loads the platform's environment configuration. It follows
// the teacher's generated-service convention of a single typed Config struct
// built from os.Getenv with explicit defaults (the teacher has no DSL/viper
// config layer of its own; this mirrors compozy-compozy's plain env-struct
// loading in engine/infra/server for local dev ergonomics, enriched with
// godotenv for .env loading).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config enumerates every recognized environment variable from spec §6.4 and
// §10.4's ambient-stack expansion.
type Config struct {
	// Persistence
	DBURL         string
	DBPoolSize    int
	DBMaxOverflow int
	DBEcho        bool

	// Workflow engine
	WorkflowEngineBackend           string
	WorkflowEngineURL              string
	WorkflowNamespace              string
	WorkflowTaskQueueTasks         string
	WorkflowTaskQueueTriggers      string
	WorkflowMaxConcurrentActivities int
	WorkflowMaxConcurrentWorkflows  int

	// Event bus
	BrokerURL string

	// Auth (verification performed upstream; we only carry the inputs through)
	AuthJWKSB64  string
	AuthIssuer   string
	AuthAudience string

	WebhookBaseURL string

	// Agent/model catalog (spec §13 Non-goal: no agent/model CRUD — a static
	// YAML document stands in for it). Empty means no agents are registered.
	AgentCatalogPath string

	// LLM provider credentials. Either may be empty if that provider is not
	// configured; llm.Router reports a clear error at call time rather than
	// at startup, since a deployment may only ever route to one provider.
	AnthropicAPIKey string
	OpenAIAPIKey    string
	// AWSBedrockRegion enables the Bedrock adapter when set (e.g. "us-east-1");
	// credentials are resolved through the AWS SDK's default chain.
	AWSBedrockRegion string

	DefaultBudgetUSD float64
	BudgetWarnAt     float64
	MaxIterations    int

	// Ambient stack
	LogLevel             string
	LogFormat             string
	OTELExporterEndpoint string
	HTTPAddr              string
	ReconcilerInterval    time.Duration
}

// Load reads configuration from the environment, optionally loading a .env
// file first (ignored if absent — local dev convenience only).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBURL:                          getenv("DB_URL", "postgres://localhost:5432/agentcore?sslmode=disable"),
		DBPoolSize:                     getenvInt("DB_POOL_SIZE", 10),
		DBMaxOverflow:                  getenvInt("DB_MAX_OVERFLOW", 5),
		DBEcho:                         getenvBool("DB_ECHO", false),
		WorkflowEngineBackend:          getenv("WORKFLOW_ENGINE_BACKEND", "memory"),
		WorkflowEngineURL:              getenv("WORKFLOW_ENGINE_URL", "localhost:7233"),
		WorkflowNamespace:              getenv("WORKFLOW_NAMESPACE", "default"),
		WorkflowTaskQueueTasks:         getenv("WORKFLOW_TASK_QUEUE_TASKS", "agent-tasks"),
		WorkflowTaskQueueTriggers:      getenv("WORKFLOW_TASK_QUEUE_TRIGGERS", "trigger-execution-queue"),
		WorkflowMaxConcurrentActivities: getenvInt("WORKFLOW_MAX_CONCURRENT_ACTIVITIES", 100),
		WorkflowMaxConcurrentWorkflows:  getenvInt("WORKFLOW_MAX_CONCURRENT_WORKFLOWS", 100),
		BrokerURL:            getenv("BROKER_URL", "redis://localhost:6379/0"),
		AuthJWKSB64:          getenv("AUTH_JWKS_B64", ""),
		AuthIssuer:           getenv("AUTH_ISSUER", ""),
		AuthAudience:         getenv("AUTH_AUDIENCE", ""),
		WebhookBaseURL:       getenv("WEBHOOK_BASE_URL", "http://localhost:8080"),
		AgentCatalogPath:     getenv("AGENT_CATALOG_PATH", ""),
		AnthropicAPIKey:      getenv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:         getenv("OPENAI_API_KEY", ""),
		AWSBedrockRegion:     getenv("AWS_BEDROCK_REGION", ""),
		DefaultBudgetUSD:     getenvFloat("DEFAULT_BUDGET_USD", 10.0),
		BudgetWarnAt:         getenvFloat("BUDGET_WARN_AT", 0.8),
		MaxIterations:        getenvInt("MAX_ITERATIONS", 50),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		LogFormat:            getenv("LOG_FORMAT", "json"),
		OTELExporterEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		HTTPAddr:             getenv("HTTP_ADDR", ":8080"),
		ReconcilerInterval:   getenvDuration("RECONCILER_INTERVAL", 60*time.Second),
	}

	if cfg.DBURL == "" {
		return nil, fmt.Errorf("config: DB_URL is required")
	}
	return cfg, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
