package common

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and a one-line summary of what will run
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("FinBot", GetVersion())

	logger.Info().
		Str("version", GetFullVersion()).
		Str("environment", config.Environment).
		Int("entities", len(config.Entities)).
		Str("interval", config.Rotation.Interval).
		Str("llm_provider", string(config.LLM.DefaultProvider)).
		Bool("discord", config.Discord.Enabled).
		Bool("http", config.Server.Enabled).
		Msg("Starting FinBot")
}
