package models

import "time"

// HistoryEntry is the last successful dispatch time for one tracked entity
type HistoryEntry struct {
	Ticker   string     `json:"ticker"`
	Name     string     `json:"name"`
	LastSent *time.Time `json:"last_sent,omitempty"` // nil: never sent
}

// SentRecord is the persisted form of a history entry
type SentRecord struct {
	Ticker    string
	SentAt    time.Time
	RunID     string
	UpdatedAt time.Time
}

// RotationCursor is the persisted rotation position
type RotationCursor struct {
	Key       string
	Position  int
	Ticker    string // entity at Position when saved; used to detect a changed entity list
	UpdatedAt time.Time
}

// RotationStatus is a point-in-time view of the scheduler
type RotationStatus struct {
	Enabled    bool       `json:"enabled"`
	Interval   string     `json:"interval"`
	Cursor     int        `json:"cursor"`
	NextTicker string     `json:"next_ticker"`
	Running    bool       `json:"running"`
	LastRun    *time.Time `json:"last_run,omitempty"`
	LastTicker string     `json:"last_ticker,omitempty"`
	LastError  string     `json:"last_error,omitempty"`
	NextRun    *time.Time `json:"next_run,omitempty"`
}
