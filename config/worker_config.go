package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// generateWorkerID creates a unique worker ID using hostname and PID
func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "worker"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

// Knowledge backends
const (
	KnowledgePgVector = "pgvector"
	KnowledgeNeo4j    = "neo4j"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Port        string
	Environment string
	WorkerID    string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL string
	MongoDBURL  string
	MongoDBName string
	RedisURL    string

	// Neo4j
	Neo4jURL      string
	Neo4jUsername string
	Neo4jPassword string

	// OpenAI
	OpenAIAPIKey   string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeoutSec  int
	EmbeddingModel string

	// Gmail
	GmailCredentialsFile string
	GmailTokenFile       string
	MyEmail              string
	MailLookback         time.Duration
	MailMaxResults       int64
	HandledLabel         string

	// Knowledge
	KnowledgeBackend  string
	KnowledgeTopK     int
	KnowledgeMinScore float64
	AnswerCacheTTL    time.Duration
	ChunkSize         int
	ChunkOverlap      int
	IndexConcurrency  int

	// Workflow
	WorkflowStepLimit  int
	AutoSendCategories []string

	// Scheduler
	PollInterval time.Duration

	// Events (Redis Streams)
	EventStreamPrefix string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		WorkerID:    getEnv("WORKER_ID", generateWorkerID()),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", ""),
		MongoDBURL:  getEnv("MONGODB_URL", ""),
		MongoDBName: getEnv("MONGODB_DATABASE", "support_worker"),
		RedisURL:    getEnv("REDIS_URL", ""),

		// Neo4j
		Neo4jURL:      getEnv("NEO4J_URL", ""),
		Neo4jUsername: getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", ""),

		// OpenAI
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 2048),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.1),
		LLMTimeoutSec:  getEnvInt("LLM_TIMEOUT_SEC", 60),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),

		// Gmail
		GmailCredentialsFile: getEnv("GMAIL_CREDENTIALS_FILE", "credentials.json"),
		GmailTokenFile:       getEnv("GMAIL_TOKEN_FILE", "token.json"),
		MyEmail:              getEnv("MY_EMAIL", ""),
		MailLookback:         getEnvDuration("MAIL_LOOKBACK", 8*time.Hour),
		MailMaxResults:       int64(getEnvInt("MAIL_MAX_RESULTS", 50)),
		HandledLabel:         getEnv("HANDLED_LABEL", "support-handled"),

		// Knowledge
		KnowledgeBackend:  strings.ToLower(getEnv("KNOWLEDGE_BACKEND", KnowledgePgVector)),
		KnowledgeTopK:     getEnvInt("KNOWLEDGE_TOP_K", 3),
		KnowledgeMinScore: getEnvFloat("KNOWLEDGE_MIN_SCORE", 0),
		AnswerCacheTTL:    getEnvDuration("ANSWER_CACHE_TTL", 6*time.Hour),
		ChunkSize:         getEnvInt("INDEX_CHUNK_SIZE", 1000),
		ChunkOverlap:      getEnvInt("INDEX_CHUNK_OVERLAP", 200),
		IndexConcurrency:  getEnvInt("INDEX_CONCURRENCY", 4),

		// Workflow
		WorkflowStepLimit:  getEnvInt("WORKFLOW_STEP_LIMIT", 100),
		AutoSendCategories: getEnvSlice("WORKFLOW_AUTO_SEND_CATEGORIES", []string{"product_enquiry"}),

		// Scheduler
		PollInterval: getEnvDuration("POLL_INTERVAL", 5*time.Minute),

		// Events
		EventStreamPrefix: getEnv("EVENT_STREAM_PREFIX", "support"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	var problems []string
	if c.WorkflowStepLimit <= 0 {
		problems = append(problems, "WORKFLOW_STEP_LIMIT must be positive")
	}
	if c.KnowledgeBackend != KnowledgePgVector && c.KnowledgeBackend != KnowledgeNeo4j {
		problems = append(problems, fmt.Sprintf("KNOWLEDGE_BACKEND %q is not one of pgvector, neo4j", c.KnowledgeBackend))
	}
	if c.KnowledgeTopK <= 0 {
		problems = append(problems, "KNOWLEDGE_TOP_K must be positive")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		problems = append(problems, "INDEX_CHUNK_OVERLAP must be smaller than INDEX_CHUNK_SIZE")
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "POLL_INTERVAL must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

// RequireRuntime reports the settings a workflow run cannot start without.
func (c *Config) RequireRuntime() error {
	var missing []string
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.KnowledgeBackend == KnowledgePgVector && c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.KnowledgeBackend == KnowledgeNeo4j && c.Neo4jURL == "" {
		missing = append(missing, "NEO4J_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// ConsoleLogs reports whether human-readable log output was requested.
func (c *Config) ConsoleLogs() bool {
	return getEnvBool("LOG_CONSOLE", false) || c.LogFormat == "console"
}
