// Package llm implements the narrative-generation providers.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/interfaces"
)

// DefaultTimeout bounds one narrative call when the config leaves it empty
const DefaultTimeout = 60 * time.Second

// NewNarrativeService creates the configured provider. It returns (nil, nil) when
// narrative generation is disabled, so callers render the disabled notice instead.
func NewNarrativeService(ctx context.Context, config *common.Config, logger arbor.ILogger) (interfaces.NarrativeService, error) {
	timeout := common.ParseDurationOr(config.LLM.Timeout, DefaultTimeout)

	switch config.LLM.DefaultProvider {
	case common.LLMProviderNone, "":
		logger.Info().Msg("Narrative generation disabled")
		return nil, nil

	case common.LLMProviderClaude:
		if strings.TrimSpace(config.Claude.APIKey) == "" {
			return nil, fmt.Errorf("Anthropic API key is required for the claude provider (set ANTHROPIC_API_KEY or claude.api_key)")
		}
		return NewClaudeService(config.Claude, timeout, logger), nil

	case common.LLMProviderGemini:
		if strings.TrimSpace(config.Gemini.APIKey) == "" {
			return nil, fmt.Errorf("Google API key is required for the gemini provider (set GEMINI_API_KEY or gemini.api_key)")
		}
		service, err := NewGeminiService(ctx, config.Gemini, timeout, logger)
		if err != nil {
			return nil, err
		}
		return service, nil

	default:
		return nil, fmt.Errorf("unknown llm provider %q", config.LLM.DefaultProvider)
	}
}

// capTokens applies the provider's configured ceiling to a requested length
func capTokens(requested, configured int) int {
	switch {
	case requested <= 0:
		return configured
	case configured > 0 && requested > configured:
		return configured
	default:
		return requested
	}
}
