package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Initialize loads configuration from path (if non-empty and present),
// expands environment variable references, applies defaults, and validates
// the result. An empty or missing path is not an error — the bus can run
// on environment-supplied defaults alone (teacher's Initialize permits the
// same for deployments with no on-disk config).
func Initialize(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			expanded := ExpandEnv(raw)
			if err := yaml.Unmarshal(expanded, cfg); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
			}
		case os.IsNotExist(err):
			// fall through to env-only defaults
		default:
			return nil, fmt.Errorf("%w: %v", ErrConfigNotFound, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the documented environment variables (spec §6.4)
// take precedence over file-sourced values, independent of YAML presence.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && cfg.LLM.Provider == "anthropic" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.Provider == "openai" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("DISABLE_PROCESSOR_FILTERING"); v == "true" {
		cfg.Matching.DisableProcessorFiltering = true
	}
	if v := os.Getenv("DISABLE_MULTI_STEP_WORKFLOW"); v == "true" {
		cfg.Matching.DisableMultiStepWorkflow = true
	}
	if v := os.Getenv("TASK_EVENT_TOPIC"); v != "" {
		cfg.Queue.TaskEventTopic = v
	}
	if v := os.Getenv("MESSAGE_QUEUE_TOPIC"); v != "" {
		cfg.Queue.MessageQueueTopic = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("BACKEND_API_KEY"); v != "" {
		cfg.Backend.APIKey = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Queue.RedisAddr = v
		cfg.Cache.RedisAddr = v
	}
	intEnv("HEALTH_CHECK_TIMEOUT_MS", func(ms int) { cfg.Matching.HealthCheckTimeout = msToDuration(ms) })
	intEnv("DEFAULT_MAX_CANDIDATES", func(n int) { cfg.Matching.DefaultMaxCandidates = n })
	intEnv("REDIS_TTL_SECONDS", func(s int) { cfg.Cache.TTL = secToDuration(s) })
}
