package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
)

// Bot owns the gateway session. The session doubles as the Sender for messengers.
type Bot struct {
	session  *discordgo.Session
	listener *Listener
	logger   arbor.ILogger
}

// NewBot creates a bot for token. listener may be nil to only post reports.
func NewBot(token string, listener *Listener, logger arbor.ILogger) (*Bot, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token is required (set DISCORD_TOKEN or discord.token)")
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return &Bot{
		session:  session,
		listener: listener,
		logger:   logger,
	}, nil
}

// Session returns the underlying session
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Start registers handlers and opens the gateway connection
func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		b.logger.Info().
			Str("user", r.User.Username).
			Int("guilds", len(r.Guilds)).
			Msg("Discord session ready")
	})

	if b.listener != nil {
		b.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
			common.SafeGo(b.logger, "discord-command", func() {
				b.listener.HandleMessage(ctx, s, m.Message)
			})
		})
	}

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

// Stop closes the gateway connection
func (b *Bot) Stop() error {
	if err := b.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	b.logger.Info().Msg("Discord session closed")
	return nil
}
