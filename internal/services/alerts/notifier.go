// Package alerts routes operator alerts to the log, a Discord channel and email.
package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/services/report"
)

// DefaultTimeout bounds each delivery channel
const DefaultTimeout = 10 * time.Second

// ChannelPoster posts markdown text to a chat channel
type ChannelPoster interface {
	Post(ctx context.Context, channelID, text string) error
}

// EmailSender sends one email
type EmailSender interface {
	SendHTMLEmail(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// Option adds a delivery channel
type Option func(*Notifier)

// WithChannel posts alerts to a chat channel
func WithChannel(poster ChannelPoster, channelID string) Option {
	return func(n *Notifier) {
		if poster != nil && channelID != "" {
			n.poster = poster
			n.channelID = channelID
		}
	}
}

// WithEmail mails alerts to address
func WithEmail(sender EmailSender, address string) Option {
	return func(n *Notifier) {
		if sender != nil && address != "" {
			n.mailer = sender
			n.email = address
		}
	}
}

// Notifier always logs an alert, then forwards it to the configured channels.
// Delivery failures are logged and never returned.
type Notifier struct {
	logger    arbor.ILogger
	poster    ChannelPoster
	channelID string
	mailer    EmailSender
	email     string
	timeout   time.Duration
}

// NewNotifier creates a notifier
func NewNotifier(logger arbor.ILogger, opts ...Option) *Notifier {
	n := &Notifier{
		logger:  logger,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify reports alert on every configured channel
func (n *Notifier) Notify(ctx context.Context, alert interfaces.Alert) {
	event := n.logger.Warn()
	if alert.Severity == interfaces.AlertError {
		event = n.logger.Error()
	}
	if alert.Err != nil {
		event = event.Err(alert.Err)
	}
	event.
		Str("ticker", alert.Ticker).
		Str("run_id", alert.RunID).
		Str("severity", string(alert.Severity)).
		Msg(alert.Title)

	// Deliveries outlive a cancelled tick context
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.timeout)
	defer cancel()

	text := Markdown(alert)

	if n.poster != nil {
		if err := n.poster.Post(ctx, n.channelID, text); err != nil {
			n.logger.Warn().Err(err).Str("channel_id", n.channelID).Msg("Failed to post operator alert")
		}
	}

	if n.mailer != nil {
		html, err := report.HTML(text)
		if err != nil {
			n.logger.Warn().Err(err).Msg("Failed to render alert HTML, sending plain text")
			html = ""
		}
		if err := n.mailer.SendHTMLEmail(ctx, n.email, Subject(alert), html, text); err != nil {
			n.logger.Warn().Err(err).Str("to", n.email).Msg("Failed to email operator alert")
		}
	}
}

// Subject is the email subject line of alert
func Subject(alert interfaces.Alert) string {
	subject := "[finbot] " + alert.Title
	if alert.Ticker != "" {
		subject += " · " + alert.Ticker
	}
	return subject
}

// Markdown renders alert as a short markdown message
func Markdown(alert interfaces.Alert) string {
	icon := "⚠️"
	if alert.Severity == interfaces.AlertError {
		icon = "🚨"
	}

	lines := []string{fmt.Sprintf("%s **%s**", icon, alert.Title)}
	if alert.Body != "" {
		lines = append(lines, "", alert.Body)
	}

	var meta []string
	if alert.Ticker != "" {
		meta = append(meta, "ticker `"+alert.Ticker+"`")
	}
	if alert.RunID != "" {
		meta = append(meta, "run `"+alert.RunID+"`")
	}
	if len(meta) > 0 {
		lines = append(lines, "", strings.Join(meta, " · "))
	}
	return strings.Join(lines, "\n")
}
