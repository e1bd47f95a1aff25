package config

import "time"

// LLMConfig selects and configures the language model provider (spec §6.4).
type LLMConfig struct {
	Provider string `yaml:"provider"` // "openai" | "anthropic" | "custom"
	APIKey   string `yaml:"apiKey"`
	BaseURL  string `yaml:"baseUrl,omitempty"`

	ClarificationModel string `yaml:"clarificationModel"`
	EmbeddingModel      string `yaml:"embeddingModel"`
	ReasoningModel      string `yaml:"reasoningModel"`
	WorkflowModel       string `yaml:"workflowModel"`

	RequestTimeout time.Duration `yaml:"requestTimeout"`
	MaxRetries     int           `yaml:"maxRetries"`
}

// QueueConfig configures the durable queue backend and its topics.
type QueueConfig struct {
	RedisAddr        string `yaml:"redisAddr"`
	RedisPassword     string `yaml:"redisPassword,omitempty"`
	RedisDB           int    `yaml:"redisDb"`
	TaskEventTopic    string `yaml:"taskEventTopic"`
	MessageQueueTopic string `yaml:"messageQueueTopic"`
}

// CacheConfig configures the advisory status/dialogue cache.
type CacheConfig struct {
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword,omitempty"`
	RedisDB       int           `yaml:"redisDb"`
	TTL           time.Duration `yaml:"ttl"` // REDIS_TTL_SECONDS
}

// StoreConfig configures the durable Postgres-backed task/processor store.
type StoreConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// VectorIndexConfig configures the semantic-search backend (spec §6.3).
type VectorIndexConfig struct {
	DSN        string `yaml:"dsn"` // defaults to StoreConfig.DSN when empty
	Dimensions int    `yaml:"dimensions"`
}

// BlobStoreConfig configures the object store for specs and workflow plans.
type BlobStoreConfig struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"` // non-empty for S3-compatible stores
	AccessKey string `yaml:"accessKey,omitempty"`
	SecretKey string `yaml:"secretKey,omitempty"`
}

// MatchingConfig tunes the discovery/health/evaluation/workflow pipeline.
type MatchingConfig struct {
	DisableProcessorFiltering bool          `yaml:"disableProcessorFiltering"`
	DisableMultiStepWorkflow  bool          `yaml:"disableMultiStepWorkflow"`
	HealthCheckTimeout        time.Duration `yaml:"healthCheckTimeout"` // HEALTH_CHECK_TIMEOUT_MS
	DefaultMaxCandidates      int           `yaml:"defaultMaxCandidates"`
	MaxClarificationTurns     int           `yaml:"maxClarificationTurns"`
}

// BackendConfig is the optional external registration backend (spec §6.4:
// "when absent a mock-success path is used and a synthetic taskId is
// returned from registration").
type BackendConfig struct {
	URL    string `yaml:"url,omitempty"`
	APIKey string `yaml:"apiKey,omitempty"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// Config is the fully resolved, validated configuration surface (spec §6.4).
type Config struct {
	LogLevel string `yaml:"logLevel"`

	Server      ServerConfig      `yaml:"server"`
	LLM         LLMConfig         `yaml:"llm"`
	Queue       QueueConfig       `yaml:"queue"`
	Cache       CacheConfig       `yaml:"cache"`
	Store       StoreConfig       `yaml:"store"`
	VectorIndex VectorIndexConfig `yaml:"vectorIndex"`
	BlobStore   BlobStoreConfig   `yaml:"blobStore"`
	Matching    MatchingConfig    `yaml:"matching"`
	Backend     BackendConfig     `yaml:"backend"`
}
