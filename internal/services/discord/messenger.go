package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/models"
)

// DefaultDispatchTimeout bounds the delivery of one payload
const DefaultDispatchTimeout = 15 * time.Second

// Sender is the part of *discordgo.Session used to post messages
type Sender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Messenger posts report payloads to one channel
type Messenger struct {
	sender    Sender
	channelID string
	timeout   time.Duration
	logger    arbor.ILogger
}

// NewMessenger creates a messenger for channelID
func NewMessenger(sender Sender, channelID string, timeout time.Duration, logger arbor.ILogger) *Messenger {
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Messenger{
		sender:    sender,
		channelID: channelID,
		timeout:   timeout,
		logger:    logger,
	}
}

// Deliver sends the non-omitted sections as sequential embeds, stopping at the first
// failure. A partially delivered payload is reported as an error.
func (m *Messenger) Deliver(ctx context.Context, payload *models.ReportPayload) error {
	if payload == nil {
		return fmt.Errorf("nil payload")
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	sent, err := sendSections(ctx, m.sender, m.channelID, payload)
	if err != nil {
		m.logger.Warn().
			Err(err).
			Str("run_id", payload.RunID).
			Str("ticker", payload.Entity.Ticker).
			Int("sent", sent).
			Msg("Report delivery failed")
		return err
	}

	m.logger.Debug().
		Str("run_id", payload.RunID).
		Str("ticker", payload.Entity.Ticker).
		Int("messages", sent).
		Msg("Report delivered")
	return nil
}

// Post sends markdown text to channelID, split to the message limit
func (m *Messenger) Post(ctx context.Context, channelID, text string) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return sendText(ctx, m.sender, channelID, text)
}

func sendSections(ctx context.Context, sender Sender, channelID string, payload *models.ReportPayload) (int, error) {
	sections := payload.Sections()
	for i, section := range sections {
		if err := ctx.Err(); err != nil {
			return i, fmt.Errorf("section %d/%d (%s): %w", i+1, len(sections), section.Kind, err)
		}
		if _, err := sender.ChannelMessageSendEmbed(channelID, SectionEmbed(section, payload.GeneratedAt), discordgo.WithContext(ctx)); err != nil {
			return i, fmt.Errorf("section %d/%d (%s): %w", i+1, len(sections), section.Kind, err)
		}
	}
	return len(sections), nil
}

func sendText(ctx context.Context, sender Sender, channelID, text string) error {
	for _, chunk := range splitMessage(text) {
		if _, err := sender.ChannelMessageSend(channelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("send message: %w", err)
		}
	}
	return nil
}
