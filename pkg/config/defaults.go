package config

import "time"

// applyDefaults fills zero-valued fields with the bus's built-in defaults,
// mirroring the teacher's Defaults-merge step in Initialize.
func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.ClarificationModel == "" {
		cfg.LLM.ClarificationModel = "claude-sonnet-4-5"
	}
	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.LLM.ReasoningModel == "" {
		cfg.LLM.ReasoningModel = cfg.LLM.ClarificationModel
	}
	if cfg.LLM.WorkflowModel == "" {
		cfg.LLM.WorkflowModel = cfg.LLM.ClarificationModel
	}
	if cfg.LLM.RequestTimeout == 0 {
		cfg.LLM.RequestTimeout = 30 * time.Second
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}

	if cfg.Queue.RedisAddr == "" {
		cfg.Queue.RedisAddr = "localhost:6379"
	}
	if cfg.Queue.TaskEventTopic == "" {
		cfg.Queue.TaskEventTopic = "task-pending-match"
	}
	if cfg.Queue.MessageQueueTopic == "" {
		cfg.Queue.MessageQueueTopic = "broker-messages"
	}

	if cfg.Cache.RedisAddr == "" {
		cfg.Cache.RedisAddr = cfg.Queue.RedisAddr
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 24 * time.Hour
	}

	if cfg.Store.MaxOpenConns == 0 {
		cfg.Store.MaxOpenConns = 20
	}
	if cfg.Store.MaxIdleConns == 0 {
		cfg.Store.MaxIdleConns = 5
	}
	if cfg.Store.ConnMaxLifetime == 0 {
		cfg.Store.ConnMaxLifetime = 30 * time.Minute
	}

	if cfg.VectorIndex.DSN == "" {
		cfg.VectorIndex.DSN = cfg.Store.DSN
	}
	if cfg.VectorIndex.Dimensions == 0 {
		cfg.VectorIndex.Dimensions = 1536
	}

	if cfg.Matching.HealthCheckTimeout == 0 {
		cfg.Matching.HealthCheckTimeout = 5 * time.Second
	}
	if cfg.Matching.DefaultMaxCandidates == 0 {
		cfg.Matching.DefaultMaxCandidates = 5
	}
	if cfg.Matching.MaxClarificationTurns == 0 {
		cfg.Matching.MaxClarificationTurns = 10
	}
}
