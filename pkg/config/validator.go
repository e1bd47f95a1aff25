package config

import "fmt"

// validate checks required fields are present and values are sane,
// returning the first violation wrapped in ErrValidationFailed.
func validate(cfg *Config) error {
	switch cfg.LLM.Provider {
	case "openai", "anthropic", "custom":
	default:
		return fmt.Errorf("%w: %v", ErrValidationFailed,
			NewValidationError("llm", "provider", fmt.Errorf("must be one of openai|anthropic|custom, got %q", cfg.LLM.Provider)))
	}
	if cfg.LLM.Provider != "custom" && cfg.LLM.APIKey == "" {
		return fmt.Errorf("%w: %v", ErrValidationFailed,
			NewValidationError("llm", "apiKey", ErrMissingRequiredField))
	}
	if cfg.Store.DSN == "" {
		return fmt.Errorf("%w: %v", ErrValidationFailed,
			NewValidationError("store", "dsn", ErrMissingRequiredField))
	}
	if cfg.Matching.DefaultMaxCandidates <= 0 {
		return fmt.Errorf("%w: %v", ErrValidationFailed,
			NewValidationError("matching", "defaultMaxCandidates", ErrInvalidValue))
	}
	return nil
}
