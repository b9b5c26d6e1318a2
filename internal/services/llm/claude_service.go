package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
)

const defaultClaudeModel = "claude-sonnet-4-6"

// ClaudeService generates narratives with the Anthropic Messages API.
// The SDK's own retry loop is switched off: a failed call is reported once.
type ClaudeService struct {
	config  common.ClaudeConfig
	logger  arbor.ILogger
	client  anthropic.Client
	timeout time.Duration
}

// NewClaudeService creates a Claude provider. Extra request options are appended to
// the defaults (tests point the client at a local server with option.WithBaseURL).
func NewClaudeService(config common.ClaudeConfig, timeout time.Duration, logger arbor.ILogger, opts ...option.RequestOption) *ClaudeService {
	if config.Model == "" {
		config.Model = defaultClaudeModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	requestOpts := append([]option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithMaxRetries(0),
	}, opts...)

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Float32("temperature", config.Temperature).
		Int("max_tokens", config.MaxTokens).
		Msg("Claude narrative service initialized")

	return &ClaudeService{
		config:  config,
		logger:  logger,
		client:  anthropic.NewClient(requestOpts...),
		timeout: timeout,
	}
}

// Generate sends prompt as a single user message
func (s *ClaudeService) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(s.config.Model),
		MaxTokens: int64(capTokens(maxTokens, s.config.MaxTokens)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if s.config.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(s.config.Temperature))
	}

	start := time.Now()
	resp, err := s.client.Messages.New(timeoutCtx, params)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("model", s.config.Model).
			Dur("elapsed", time.Since(start)).
			Msg("Claude narrative call failed")
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", fmt.Errorf("empty response from Claude API")
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("response_length", text.Len()).
		Str("stop_reason", string(resp.StopReason)).
		Dur("elapsed", time.Since(start)).
		Msg("Claude narrative generated")

	return text.String(), nil
}
