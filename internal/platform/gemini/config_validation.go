package gemini

import (
	"fmt"

	"github.com/englishprint/papergen/internal/config"
	"github.com/englishprint/papergen/internal/generation"
)

// validateConfig reports settings that make every call fail. Invalid retry
// settings are not errors; callWithRetry falls back to defaults.
func validateConfig(cfg config.LLMConfig) error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("%w: gemini API key is not set", generation.ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return fmt.Errorf("%w: gemini model name is not set", generation.ErrInvalidConfig)
	}
	return nil
}
