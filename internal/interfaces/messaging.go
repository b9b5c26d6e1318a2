package interfaces

import (
	"context"

	"github.com/ternarybob/finbot/internal/models"
)

// Messenger delivers a report payload to the destination channel as up to three
// sequential messages. A returned error means the payload was not (fully) delivered.
type Messenger interface {
	Deliver(ctx context.Context, payload *models.ReportPayload) error
}

// PayloadObserver receives a copy of every successfully delivered payload (live feeds)
type PayloadObserver interface {
	Observe(payload *models.ReportPayload)
}

// AlertSeverity grades operator alerts
type AlertSeverity string

const (
	AlertWarning AlertSeverity = "warning"
	AlertError   AlertSeverity = "error"
)

// Alert is a message for the human operating the bot
type Alert struct {
	Severity AlertSeverity
	Title    string
	Body     string // markdown
	Ticker   string
	RunID    string
	Err      error
}

// OperatorNotifier reports failures to the operator channel. Implementations must not block for long.
type OperatorNotifier interface {
	Notify(ctx context.Context, alert Alert)
}
