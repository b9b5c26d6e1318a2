package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
)

func TestCapTokens(t *testing.T) {
	tests := []struct {
		name       string
		requested  int
		configured int
		want       int
	}{
		{"requested within ceiling", 800, 1200, 800},
		{"requested above ceiling", 4000, 1200, 1200},
		{"nothing requested", 0, 1200, 1200},
		{"no ceiling", 4000, 0, 4000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, capTokens(tt.requested, tt.configured))
		})
	}
}

func TestNewNarrativeService(t *testing.T) {
	logger := arbor.NewLogger()

	t.Run("disabled", func(t *testing.T) {
		config := common.NewDefaultConfig()
		config.LLM.DefaultProvider = common.LLMProviderNone

		svc, err := NewNarrativeService(context.Background(), config, logger)
		require.NoError(t, err)
		assert.Nil(t, svc)
	})

	t.Run("claude without key", func(t *testing.T) {
		config := common.NewDefaultConfig()
		config.LLM.DefaultProvider = common.LLMProviderClaude
		config.Claude.APIKey = ""

		_, err := NewNarrativeService(context.Background(), config, logger)
		assert.ErrorContains(t, err, "ANTHROPIC_API_KEY")
	})

	t.Run("claude", func(t *testing.T) {
		config := common.NewDefaultConfig()
		config.LLM.DefaultProvider = common.LLMProviderClaude
		config.Claude.APIKey = "sk-test"

		svc, err := NewNarrativeService(context.Background(), config, logger)
		require.NoError(t, err)
		assert.IsType(t, &ClaudeService{}, svc)
	})

	t.Run("unknown provider", func(t *testing.T) {
		config := common.NewDefaultConfig()
		config.LLM.DefaultProvider = "openai"

		_, err := NewNarrativeService(context.Background(), config, logger)
		assert.ErrorContains(t, err, "openai")
	})
}

func TestClaudeService_Generate(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-test", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_01",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-6",
			"content": [{"type": "text", "text": "📋 **SUMMARY**\nSolid quarter."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 120, "output_tokens": 8}
		}`))
	}))
	defer srv.Close()

	svc := NewClaudeService(common.ClaudeConfig{APIKey: "sk-test", Model: "claude-sonnet-4-6", MaxTokens: 1200, Temperature: 0.3},
		5*time.Second, arbor.NewLogger(), option.WithBaseURL(srv.URL))

	text, err := svc.Generate(context.Background(), "Write the report.", 900)
	require.NoError(t, err)
	assert.Equal(t, "📋 **SUMMARY**\nSolid quarter.", text)

	assert.Equal(t, "claude-sonnet-4-6", body["model"])
	assert.EqualValues(t, 900, body["max_tokens"])
	messages, ok := body["messages"].([]interface{})
	require.True(t, ok)
	assert.Len(t, messages, 1)
}

func TestClaudeService_GenerateFailsWithoutRetry(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"quota exceeded"}}`))
	}))
	defer srv.Close()

	svc := NewClaudeService(common.ClaudeConfig{APIKey: "sk-test"}, 5*time.Second, arbor.NewLogger(), option.WithBaseURL(srv.URL))

	_, err := svc.Generate(context.Background(), "Write the report.", 900)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Claude API call failed")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClaudeService_EmptyPrompt(t *testing.T) {
	svc := NewClaudeService(common.ClaudeConfig{APIKey: "sk-test"}, time.Second, arbor.NewLogger())
	_, err := svc.Generate(context.Background(), "  ", 100)
	assert.Error(t, err)
}

func TestGeminiService_Generate(t *testing.T) {
	var body map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/gemini-2.5-flash:generateContent"), r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{
				"content": {"role": "model", "parts": [{"text": "⚖️ **VERDICT: NEUTRAL**"}]},
				"finishReason": "STOP"
			}]
		}`))
	}))
	defer srv.Close()

	svc, err := NewGeminiService(context.Background(),
		common.GeminiConfig{APIKey: "g-test", Model: "gemini-2.5-flash", MaxTokens: 1200},
		5*time.Second, arbor.NewLogger(), WithGeminiBaseURL(srv.URL))
	require.NoError(t, err)

	text, err := svc.Generate(context.Background(), "Write the report.", 2000)
	require.NoError(t, err)
	assert.Equal(t, "⚖️ **VERDICT: NEUTRAL**", text)

	generation, ok := body["generationConfig"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 1200, generation["maxOutputTokens"])
}

func TestGeminiService_GenerateFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	svc, err := NewGeminiService(context.Background(), common.GeminiConfig{APIKey: "g-test"},
		5*time.Second, arbor.NewLogger(), WithGeminiBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = svc.Generate(context.Background(), "Write the report.", 500)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Gemini API call failed")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
