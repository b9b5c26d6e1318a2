package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/services/commands"
)

// DefaultCommandTimeout bounds one on-demand report, narrative included
const DefaultCommandTimeout = 3 * time.Minute

// CommandDispatcher answers parsed commands
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd commands.Command) (*commands.Response, error)
}

// Listener turns channel messages starting with the prefix into commands
type Listener struct {
	dispatcher CommandDispatcher
	prefix     string
	timeout    time.Duration
	logger     arbor.ILogger
}

// NewListener creates a listener
func NewListener(dispatcher CommandDispatcher, prefix string, timeout time.Duration, logger arbor.ILogger) *Listener {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Listener{
		dispatcher: dispatcher,
		prefix:     prefix,
		timeout:    timeout,
		logger:     logger,
	}
}

// HandleMessage answers one message. Messages from bots (this one included) are ignored.
func (l *Listener) HandleMessage(ctx context.Context, sender Sender, msg *discordgo.Message) {
	if msg == nil || msg.Author == nil || msg.Author.Bot {
		return
	}
	cmd, ok := commands.Parse(msg.Content, l.prefix)
	if !ok {
		return
	}
	name, known := commands.Resolve(cmd.Name)
	if !known {
		// Other bots may share the prefix
		return
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if name == commands.CmdReport && len(cmd.Args) > 0 {
		l.send(ctx, sender, msg.ChannelID, fmt.Sprintf("⏳ Fetching data and generating the report for `%s`...", strings.ToUpper(cmd.Args[0])))
	}

	resp, err := l.dispatcher.Dispatch(ctx, cmd)
	if err != nil {
		l.send(ctx, sender, msg.ChannelID, "❌ "+err.Error())
		return
	}

	if err := l.reply(ctx, sender, msg.ChannelID, resp); err != nil {
		l.logger.Warn().
			Err(err).
			Str("channel_id", msg.ChannelID).
			Str("command", string(resp.Command)).
			Msg("Command reply failed")
	}
}

func (l *Listener) reply(ctx context.Context, sender Sender, channelID string, resp *commands.Response) error {
	switch resp.Kind {
	case commands.ResponseReport:
		_, err := sendSections(ctx, sender, channelID, resp.Payload)
		return err

	case commands.ResponseSection:
		if resp.Section.Omitted() {
			name := ""
			if resp.Entity != nil {
				name = resp.Entity.Ticker
			}
			return sendText(ctx, sender, channelID, fmt.Sprintf("No SEC filings for `%s` (no CIK: ETF or foreign listing).", name))
		}
		_, err := sender.ChannelMessageSendEmbed(channelID, SectionEmbed(resp.Section, time.Now()), discordgo.WithContext(ctx))
		return err

	default:
		return sendText(ctx, sender, channelID, resp.Text)
	}
}

func (l *Listener) send(ctx context.Context, sender Sender, channelID, text string) {
	if err := sendText(ctx, sender, channelID, text); err != nil {
		l.logger.Warn().Err(err).Str("channel_id", channelID).Msg("Failed to send message")
	}
}
