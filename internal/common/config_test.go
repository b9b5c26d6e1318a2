package common

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finbot.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewDefaultConfig_IsValid(t *testing.T) {
	config := NewDefaultConfig()
	require.NoError(t, config.Validate())

	entities := config.TrackedEntities()
	require.Len(t, entities, 4)
	assert.Equal(t, "SPY", entities[0].Ticker)
	assert.Equal(t, "", entities[0].CIK)
	assert.Equal(t, "0001045810", entities[1].CIK)
	assert.Equal(t, "CDR.WA", entities[3].Ticker)
	assert.Equal(t, "PLN", entities[3].Currency)
	assert.Equal(t, "USD", entities[3].FilingsCurrency)
}

func TestLoadFromFiles_EntitiesReplaceDefaults(t *testing.T) {
	path := writeConfig(t, `
[rotation]
interval = "30m"

[[entities]]
ticker = "aapl"
cik = "320193"
currency = "usd"
name = "Apple"
`)

	config, err := LoadFromFiles(path)
	require.NoError(t, err)

	assert.Equal(t, "30m", config.Rotation.Interval)
	entities := config.TrackedEntities()
	require.Len(t, entities, 1)
	assert.Equal(t, "AAPL", entities[0].Ticker)
	assert.Equal(t, "0000320193", entities[0].CIK)
	assert.Equal(t, "USD", entities[0].Currency)
}

func TestLoadFromFiles_LaterFileWins(t *testing.T) {
	base := writeConfig(t, `
[report]
language = "Polish"
max_words = 400
`)
	override := writeConfig(t, `
[report]
max_words = 300
`)

	config, err := LoadFromFiles(base, override)
	require.NoError(t, err)

	assert.Equal(t, "Polish", config.Report.Language)
	assert.Equal(t, 300, config.Report.MaxWords)
	// Entities untouched by either file keep the defaults
	assert.Len(t, config.Entities, 4)
}

func TestLoadFromFiles_EnvOverrides(t *testing.T) {
	t.Setenv("FINBOT_SERVER_PORT", "9999")
	t.Setenv("FINNHUB_API_KEY", "fh-key")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("FINBOT_LOG_OUTPUT", "stdout, file")
	t.Setenv("FINBOT_ROTATION_PERSIST_CURSOR", "true")

	config, err := LoadFromFiles()
	require.NoError(t, err)

	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "fh-key", config.Finnhub.APIKey)
	assert.Equal(t, "sk-ant", config.Claude.APIKey)
	assert.Equal(t, []string{"stdout", "file"}, config.Logging.Output)
	assert.True(t, config.Rotation.PersistCursor)
}

func TestLoadFromFiles_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, "finbot.env")
	require.NoError(t, os.WriteFile(envPath, []byte("FINBOT_DISCORD_TOKEN=from-dotenv\n"), 0644))
	path := writeConfig(t, "env_files = ['"+filepath.ToSlash(envPath)+"']\n")

	os.Unsetenv("FINBOT_DISCORD_TOKEN")
	t.Cleanup(func() { os.Unsetenv("FINBOT_DISCORD_TOKEN") })

	config, err := LoadFromFiles(path)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", config.Discord.Token)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name: "duplicate ticker",
			mutate: func(c *Config) {
				c.Entities = append(c.Entities, EntityConfig{Ticker: "nvda", Currency: "USD", Name: "dup"})
			},
			wantErr: "duplicate ticker NVDA",
		},
		{
			name:    "non numeric cik",
			mutate:  func(c *Config) { c.Entities[1].CIK = "NVDA" },
			wantErr: "CIK",
		},
		{
			name:    "no entities",
			mutate:  func(c *Config) { c.Entities = nil },
			wantErr: "Entities",
		},
		{
			name:    "bad interval",
			mutate:  func(c *Config) { c.Rotation.Interval = "soon" },
			wantErr: "rotation.interval",
		},
		{
			name:    "interval too short",
			mutate:  func(c *Config) { c.Rotation.Interval = "10s" },
			wantErr: "at least 1m",
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.LLM.DefaultProvider = "gpt" },
			wantErr: "unknown provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewDefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNormalizeCIK(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1045810", "0001045810"},
		{"0001045810", "0001045810"},
		{"CIK0001045810", "0001045810"},
		{" 320193 ", "0000320193"},
		{"", ""},
		{"NVDA", ""},
		{"12345678901", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCIK(tt.input))
		})
	}
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, 15*time.Minute, ParseDurationOr("15m", time.Second))
	assert.Equal(t, time.Second, ParseDurationOr("", time.Second))
	assert.Equal(t, time.Second, ParseDurationOr("bogus", time.Second))
}
