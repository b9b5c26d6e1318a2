package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus the cross-field rules tags cannot express.
// All problems are reported together.
func (c *Config) Validate() error {
	var problems []string

	if err := configValidator.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			for _, fe := range validationErrors {
				problems = append(problems, fmt.Sprintf("%s failed '%s' (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	seen := make(map[string]bool, len(c.Entities))
	for i, e := range c.Entities {
		ticker := strings.ToUpper(strings.TrimSpace(e.Ticker))
		if seen[ticker] {
			problems = append(problems, fmt.Sprintf("entities[%d]: duplicate ticker %s", i, ticker))
		}
		seen[ticker] = true
	}

	durations := map[string]string{
		"finnhub.timeout":          c.Finnhub.Timeout,
		"finnhub.call_delay":       c.Finnhub.CallDelay,
		"finnhub.cache_ttl":        c.Finnhub.CacheTTL,
		"edgar.timeout":            c.Edgar.Timeout,
		"llm.timeout":              c.LLM.Timeout,
		"rotation.interval":        c.Rotation.Interval,
		"rotation.tick_timeout":    c.Rotation.TickTimeout,
		"discord.dispatch_timeout": c.Discord.DispatchTimeout,
	}
	for name, value := range durations {
		if value == "" {
			continue
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: invalid duration %q", name, value))
			continue
		}
		if d < 0 {
			problems = append(problems, fmt.Sprintf("%s: must not be negative", name))
		}
	}

	if c.Rotation.Enabled && ParseDurationOr(c.Rotation.Interval, 0) < time.Minute {
		problems = append(problems, "rotation.interval: must be at least 1m")
	}

	switch c.LLM.DefaultProvider {
	case LLMProviderClaude, LLMProviderGemini, LLMProviderNone:
	default:
		problems = append(problems, fmt.Sprintf("llm.default_provider: unknown provider %q", c.LLM.DefaultProvider))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
