package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiService generates narratives with the Gemini API
type GeminiService struct {
	config  common.GeminiConfig
	logger  arbor.ILogger
	client  *genai.Client
	timeout time.Duration
}

// GeminiOption customizes the genai client
type GeminiOption func(*genai.ClientConfig)

// WithGeminiBaseURL points the client at another endpoint
func WithGeminiBaseURL(baseURL string) GeminiOption {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = baseURL
	}
}

// NewGeminiService creates a Gemini provider
func NewGeminiService(ctx context.Context, config common.GeminiConfig, timeout time.Duration, logger arbor.ILogger, opts ...GeminiOption) (*GeminiService, error) {
	if config.Model == "" {
		config.Model = defaultGeminiModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(clientConfig)
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Debug().
		Str("model", config.Model).
		Dur("timeout", timeout).
		Float32("temperature", config.Temperature).
		Msg("Gemini narrative service initialized")

	return &GeminiService{
		config:  config,
		logger:  logger,
		client:  client,
		timeout: timeout,
	}, nil
}

// Generate sends prompt as a single user turn
func (s *GeminiService) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(capTokens(maxTokens, s.config.MaxTokens)),
	}
	if s.config.Temperature > 0 {
		config.Temperature = genai.Ptr(s.config.Temperature)
	}

	start := time.Now()
	resp, err := s.client.Models.GenerateContent(timeoutCtx, s.config.Model, genai.Text(prompt), config)
	if err != nil {
		s.logger.Warn().
			Err(err).
			Str("model", s.config.Model).
			Dur("elapsed", time.Since(start)).
			Msg("Gemini narrative call failed")
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("empty response from Gemini API")
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("empty text in Gemini response")
	}

	s.logger.Debug().
		Str("model", s.config.Model).
		Int("response_length", len(text)).
		Dur("elapsed", time.Since(start)).
		Msg("Gemini narrative generated")

	return text, nil
}
