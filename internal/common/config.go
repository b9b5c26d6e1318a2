package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/ternarybob/finbot/internal/models"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"`
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Logging     LoggingConfig   `toml:"logging"`
	Finnhub     FinnhubConfig   `toml:"finnhub"`
	Edgar       EdgarConfig     `toml:"edgar"`
	LLM         LLMConfig       `toml:"llm"`
	Claude      ClaudeConfig    `toml:"claude"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Rotation    RotationConfig  `toml:"rotation"`
	Report      ReportConfig    `toml:"report"`
	Discord     DiscordConfig   `toml:"discord"`
	Operator    OperatorConfig  `toml:"operator"`
	WebSocket   WebSocketConfig `toml:"websocket"`
	Entities    []EntityConfig  `toml:"entities" validate:"required,min=1,dive"`
	EnvFiles    []string        `toml:"env_files"`
}

type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port" validate:"omitempty,min=1,max=65535"`
	Host    string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig holds the on-disk store used for history and the rotation cursor
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level      string   `toml:"level" validate:"oneof=trace debug info warn error"`
	Output     []string `toml:"output"`
	TimeFormat string   `toml:"time_format"`
}

// FinnhubConfig configures the quote source
type FinnhubConfig struct {
	APIKey    string `toml:"api_key"`
	BaseURL   string `toml:"base_url" validate:"required,url"`
	Timeout   string `toml:"timeout"`    // per-call timeout for one ticker snapshot, e.g. "10s"
	CallDelay string `toml:"call_delay"` // minimum gap between requests, e.g. "1.2s"
	CacheTTL  string `toml:"cache_ttl"`  // quote cache lifetime, "0" disables
}

// EdgarConfig configures the SEC filings source
type EdgarConfig struct {
	BaseURL    string `toml:"base_url" validate:"required,url"`
	ArchiveURL string `toml:"archive_url" validate:"required,url"`
	UserAgent  string `toml:"user_agent" validate:"required"`
	Timeout    string `toml:"timeout"`
	RateLimit  int    `toml:"rate_limit"` // requests per second
}

// LLMProvider identifies the narrative-generation backend
type LLMProvider string

const (
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderNone   LLMProvider = "none"
)

type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"`
	Timeout         string      `toml:"timeout"`
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

// RotationConfig drives the periodic report cycle
type RotationConfig struct {
	Enabled        bool   `toml:"enabled"`
	Interval       string `toml:"interval"` // e.g. "15m"
	RunOnStart     bool   `toml:"run_on_start"`
	PersistCursor  bool   `toml:"persist_cursor"`
	PersistHistory bool   `toml:"persist_history"`
	TickTimeout    string `toml:"tick_timeout"`
}

// ReportConfig shapes the composed report and the narrative prompt
type ReportConfig struct {
	Language      string `toml:"language"`
	MaxWords      int    `toml:"max_words"`
	MaxTokens     int    `toml:"max_tokens"`
	RecentFilings int    `toml:"recent_filings"`
}

type DiscordConfig struct {
	Enabled         bool   `toml:"enabled"`
	Token           string `toml:"token"`
	ReportChannelID string `toml:"report_channel_id"`
	CommandPrefix   string `toml:"command_prefix"`
	DispatchTimeout string `toml:"dispatch_timeout"`
}

// OperatorConfig routes dispatch failures to a human
type OperatorConfig struct {
	DiscordChannelID string     `toml:"discord_channel_id"`
	Email            string     `toml:"email" validate:"omitempty,email"`
	SMTP             SMTPConfig `toml:"smtp"`
}

type SMTPConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	FromEmail string `toml:"from_email"`
	FromName  string `toml:"from_name"`
	UseTLS    bool   `toml:"use_tls"`
}

type WebSocketConfig struct {
	Enabled bool `toml:"enabled"`
}

// EntityConfig is the TOML shape of one tracked entity
type EntityConfig struct {
	Ticker          string `toml:"ticker" validate:"required"`
	CIK             string `toml:"cik" validate:"omitempty,numeric,max=10"`
	Currency        string `toml:"currency" validate:"required,len=3"`
	Name            string `toml:"name" validate:"required"`
	Exchange        string `toml:"exchange"`
	FilingsCurrency string `toml:"filings_currency" validate:"omitempty,len=3"`
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Enabled: true,
			Port:    8086,
			Host:    "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05",
		},
		Finnhub: FinnhubConfig{
			BaseURL:   "https://finnhub.io/api/v1",
			Timeout:   "10s",
			CallDelay: "1.2s",
			CacheTTL:  "25m",
		},
		Edgar: EdgarConfig{
			BaseURL:    "https://data.sec.gov",
			ArchiveURL: "https://www.sec.gov",
			UserAgent:  "finbot contact@example.com",
			Timeout:    "20s",
			RateLimit:  5,
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
			Timeout:         "60s",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-6",
			MaxTokens:   1200,
			Temperature: 0.3,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			MaxTokens:   1200,
			Temperature: 0.3,
		},
		Rotation: RotationConfig{
			Enabled:        true,
			Interval:       "15m",
			RunOnStart:     true,
			PersistCursor:  false,
			PersistHistory: true,
			TickTimeout:    "3m",
		},
		Report: ReportConfig{
			Language:      "English",
			MaxWords:      520,
			MaxTokens:     1200,
			RecentFilings: 3,
		},
		Discord: DiscordConfig{
			Enabled:         true,
			CommandPrefix:   "!",
			DispatchTimeout: "15s",
		},
		Operator: OperatorConfig{
			SMTP: SMTPConfig{
				Port:     587,
				FromName: "finbot",
				UseTLS:   true,
			},
		},
		WebSocket: WebSocketConfig{
			Enabled: true,
		},
		Entities: []EntityConfig{
			{Ticker: "SPY", Currency: "USD", Name: "S&P 500"},
			{Ticker: "NVDA", CIK: "0001045810", Currency: "USD", Name: "NVIDIA"},
			{Ticker: "UBER", CIK: "0001543151", Currency: "USD", Name: "Uber"},
			{Ticker: "CDR.WA", Currency: "PLN", Name: "CD Projekt", Exchange: "WSE"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> .env -> env
// Later files override earlier files. CLI flags are applied afterwards via ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		// An [[entities]] array in a later file replaces the earlier list rather than appending to it
		entities := config.Entities
		config.Entities = nil
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
		if len(config.Entities) == 0 {
			config.Entities = entities
		}
	}

	// .env files never override variables already present in the environment
	envFiles := config.EnvFiles
	if len(envFiles) == 0 {
		if _, err := os.Stat(".env"); err == nil {
			envFiles = []string{".env"}
		}
	}
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("failed to load env files %v: %w", envFiles, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FINBOT_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("FINBOT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("FINBOT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if enabled := os.Getenv("FINBOT_SERVER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Server.Enabled = e
		}
	}

	// Storage configuration
	if path := os.Getenv("FINBOT_STORAGE_PATH"); path != "" {
		config.Storage.Badger.Path = path
	}

	// Logging configuration
	if level := os.Getenv("FINBOT_LOG_LEVEL"); level != "" {
		config.Logging.Level = strings.ToLower(level)
	}
	if output := os.Getenv("FINBOT_LOG_OUTPUT"); output != "" {
		var outputs []string
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Data sources
	if key := firstEnv("FINBOT_FINNHUB_API_KEY", "FINNHUB_API_KEY", "FINNHUB_KEY"); key != "" {
		config.Finnhub.APIKey = key
	}
	if delay := os.Getenv("FINBOT_FINNHUB_CALL_DELAY"); delay != "" {
		config.Finnhub.CallDelay = delay
	}
	if ttl := os.Getenv("FINBOT_FINNHUB_CACHE_TTL"); ttl != "" {
		config.Finnhub.CacheTTL = ttl
	}
	if ua := firstEnv("FINBOT_EDGAR_USER_AGENT", "SEC_USER_AGENT"); ua != "" {
		config.Edgar.UserAgent = ua
	}

	// LLM configuration
	if provider := os.Getenv("FINBOT_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(provider))
	}
	if timeout := os.Getenv("FINBOT_LLM_TIMEOUT"); timeout != "" {
		config.LLM.Timeout = timeout
	}
	if key := firstEnv("FINBOT_CLAUDE_API_KEY", "ANTHROPIC_API_KEY"); key != "" {
		config.Claude.APIKey = key
	}
	if model := os.Getenv("FINBOT_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}
	if key := firstEnv("FINBOT_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"); key != "" {
		config.Gemini.APIKey = key
	}
	if model := os.Getenv("FINBOT_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}

	// Rotation configuration
	if interval := os.Getenv("FINBOT_ROTATION_INTERVAL"); interval != "" {
		config.Rotation.Interval = interval
	}
	if enabled := os.Getenv("FINBOT_ROTATION_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Rotation.Enabled = e
		}
	}
	if persist := os.Getenv("FINBOT_ROTATION_PERSIST_CURSOR"); persist != "" {
		if p, err := strconv.ParseBool(persist); err == nil {
			config.Rotation.PersistCursor = p
		}
	}

	// Report configuration
	if language := os.Getenv("FINBOT_REPORT_LANGUAGE"); language != "" {
		config.Report.Language = language
	}

	// Discord configuration
	if token := firstEnv("FINBOT_DISCORD_TOKEN", "DISCORD_TOKEN"); token != "" {
		config.Discord.Token = token
	}
	if channel := firstEnv("FINBOT_DISCORD_CHANNEL_ID", "DISCORD_CHANNEL_ID"); channel != "" {
		config.Discord.ReportChannelID = channel
	}
	if channel := os.Getenv("FINBOT_OPERATOR_CHANNEL_ID"); channel != "" {
		config.Operator.DiscordChannelID = channel
	}
	if email := os.Getenv("FINBOT_OPERATOR_EMAIL"); email != "" {
		config.Operator.Email = email
	}
	if password := os.Getenv("FINBOT_SMTP_PASSWORD"); password != "" {
		config.Operator.SMTP.Password = password
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
// Flags have highest priority and override both env vars and config file
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// TrackedEntities converts the configured [[entities]] into the immutable rotation list
func (c *Config) TrackedEntities() []models.TrackedEntity {
	entities := make([]models.TrackedEntity, 0, len(c.Entities))
	for _, e := range c.Entities {
		filingsCurrency := strings.ToUpper(e.FilingsCurrency)
		if filingsCurrency == "" {
			filingsCurrency = "USD"
		}
		entities = append(entities, models.TrackedEntity{
			Ticker:          strings.ToUpper(strings.TrimSpace(e.Ticker)),
			CIK:             NormalizeCIK(e.CIK),
			Currency:        strings.ToUpper(e.Currency),
			Name:            e.Name,
			Exchange:        strings.ToUpper(e.Exchange),
			FilingsCurrency: filingsCurrency,
		})
	}
	return entities
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// NormalizeCIK zero-pads a numeric CIK to the ten digits SEC endpoints expect.
// Empty or non-numeric input yields "".
func NormalizeCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	cik = strings.TrimPrefix(strings.ToUpper(cik), "CIK")
	if cik == "" || len(cik) > 10 {
		return ""
	}
	for _, r := range cik {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

// ParseDurationOr parses s, falling back to def when s is empty or invalid
func ParseDurationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
