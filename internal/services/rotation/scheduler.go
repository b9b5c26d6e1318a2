// Package rotation serves the tracked entities one per tick in round-robin order.
package rotation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
)

const (
	cursorKey = "rotation"

	DefaultInterval    = 15 * time.Minute
	DefaultTickTimeout = 3 * time.Minute
)

// ErrTickInProgress is returned when a tick is requested while another is running
var ErrTickInProgress = errors.New("rotation tick already in progress")

// Config drives the scheduler
type Config struct {
	Interval      time.Duration
	RunOnStart    bool
	TickTimeout   time.Duration
	PersistCursor bool
}

// Option configures optional collaborators
type Option func(*Scheduler)

// WithNotifier reports dispatch failures to the operator
func WithNotifier(notifier interfaces.OperatorNotifier) Option {
	return func(s *Scheduler) { s.notifier = notifier }
}

// WithCursorStorage persists the cursor across restarts (only when Config.PersistCursor is set)
func WithCursorStorage(storage interfaces.CursorStorage) Option {
	return func(s *Scheduler) { s.cursorStorage = storage }
}

// WithObserver receives every delivered payload, asynchronously after the tick
func WithObserver(observer interfaces.PayloadObserver) Option {
	return func(s *Scheduler) { s.observers = append(s.observers, observer) }
}

// Scheduler owns the rotation cursor. The cursor advances by one after a successful
// dispatch only; a failed dispatch leaves it in place so the next tick retries the entity.
type Scheduler struct {
	entities      []models.TrackedEntity
	pipeline      interfaces.ReportPipeline
	messenger     interfaces.Messenger
	history       interfaces.HistoryWriter
	notifier      interfaces.OperatorNotifier
	cursorStorage interfaces.CursorStorage
	observers     []interfaces.PayloadObserver
	logger        arbor.ILogger
	config        Config

	cron    *cron.Cron
	entryID cron.EntryID

	tickMu sync.Mutex // held for the duration of a tick

	mu         sync.RWMutex // protects the fields below
	cursor     int
	running    bool
	started    bool
	lastRun    *time.Time
	lastTicker string
	lastError  string

	now func() time.Time
}

// New creates a scheduler over entities in their configured order
func New(entities []models.TrackedEntity, pipeline interfaces.ReportPipeline, messenger interfaces.Messenger, history interfaces.HistoryWriter, logger arbor.ILogger, config Config, opts ...Option) (*Scheduler, error) {
	if len(entities) == 0 {
		return nil, fmt.Errorf("rotation requires at least one tracked entity")
	}
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.TickTimeout <= 0 {
		config.TickTimeout = DefaultTickTimeout
	}

	s := &Scheduler{
		entities:  append([]models.TrackedEntity(nil), entities...),
		pipeline:  pipeline,
		messenger: messenger,
		history:   history,
		logger:    logger,
		config:    config,
		cron:      cron.New(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start restores the cursor when persistence is enabled and schedules ticks every interval
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("rotation already started")
	}
	s.started = true
	s.mu.Unlock()

	if s.config.PersistCursor && s.cursorStorage != nil {
		s.restoreCursor(ctx)
	}

	spec := "@every " + s.config.Interval.String()
	entryID, err := s.cron.AddFunc(spec, s.scheduledTick)
	if err != nil {
		return fmt.Errorf("failed to schedule rotation: %w", err)
	}
	s.entryID = entryID
	s.cron.Start()

	s.logger.Info().
		Str("interval", s.config.Interval.String()).
		Int("entities", len(s.entities)).
		Str("next_ticker", s.entities[s.Cursor()].Ticker).
		Bool("run_on_start", s.config.RunOnStart).
		Msg("Rotation started")

	if s.config.RunOnStart {
		common.SafeGo(s.logger, "rotation-first-tick", s.scheduledTick)
	}

	return nil
}

// Stop halts scheduling and waits up to the tick timeout for a running tick
func (s *Scheduler) Stop() {
	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()
	if !started {
		return
	}

	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(s.config.TickTimeout):
		s.logger.Warn().Msg("Rotation tick still running at shutdown")
	}
	s.logger.Info().Msg("Rotation stopped")
}

func (s *Scheduler) scheduledTick() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Str("panic", fmt.Sprintf("%v", r)).Msg("Recovered from panic in rotation tick")
		}
	}()

	if _, err := s.Tick(context.Background()); err != nil {
		if errors.Is(err, ErrTickInProgress) {
			s.logger.Warn().Msg("Previous rotation tick still running, skipping")
			return
		}
		s.logger.Error().Err(err).Msg("Rotation tick failed")
	}
}

// TriggerNow runs one tick out of schedule. It shares the cursor with scheduled ticks.
func (s *Scheduler) TriggerNow(ctx context.Context) (*models.ReportPayload, error) {
	return s.Tick(ctx)
}

// Tick serves the entity at the cursor: build the report, deliver it, then advance
// the cursor and record the send. Overlapping calls return ErrTickInProgress.
func (s *Scheduler) Tick(ctx context.Context) (*models.ReportPayload, error) {
	if !s.tickMu.TryLock() {
		return nil, ErrTickInProgress
	}
	defer s.tickMu.Unlock()

	s.mu.Lock()
	position := s.cursor
	s.running = true
	s.mu.Unlock()

	entity := s.entities[position]
	runID := uuid.New().String()
	start := s.now()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	s.logger.Info().
		Str("run_id", runID).
		Str("ticker", entity.Ticker).
		Int("position", position).
		Msg("Rotation tick")

	tickCtx, cancel := context.WithTimeout(ctx, s.config.TickTimeout)
	defer cancel()

	payload := s.pipeline.Run(tickCtx, entity, runID)

	if err := s.messenger.Deliver(tickCtx, payload); err != nil {
		err = fmt.Errorf("%w: %s: %w", common.ErrDispatchFailure, entity.Ticker, err)
		s.finish(start, entity.Ticker, err)
		s.alert(ctx, entity, runID, err)
		return payload, err
	}

	sentAt := s.now()
	next := (position + 1) % len(s.entities)

	s.mu.Lock()
	s.cursor = next
	s.mu.Unlock()
	s.finish(start, entity.Ticker, nil)

	s.history.RecordSent(ctx, entity.Ticker, sentAt, runID)
	if s.config.PersistCursor && s.cursorStorage != nil {
		s.saveCursor(ctx, next)
	}
	s.notifyObservers(payload)

	s.logger.Info().
		Str("run_id", runID).
		Str("ticker", entity.Ticker).
		Str("next_ticker", s.entities[next].Ticker).
		Dur("elapsed", s.now().Sub(start)).
		Msg("Rotation report dispatched")

	return payload, nil
}

// notifyObservers hands the payload to the observers off the tick, so a slow
// observer never holds the tick lock.
func (s *Scheduler) notifyObservers(payload *models.ReportPayload) {
	if len(s.observers) == 0 {
		return
	}
	observers := s.observers
	common.SafeGo(s.logger, "rotation-observers", func() {
		for _, observer := range observers {
			observer.Observe(payload)
		}
	})
}

func (s *Scheduler) finish(start time.Time, ticker string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ran := start
	s.lastRun = &ran
	s.lastTicker = ticker
	if err != nil {
		s.lastError = err.Error()
	} else {
		s.lastError = ""
	}
}

func (s *Scheduler) alert(ctx context.Context, entity models.TrackedEntity, runID string, err error) {
	s.logger.Error().
		Err(err).
		Str("run_id", runID).
		Str("ticker", entity.Ticker).
		Msg("Report dispatch failed, cursor kept")

	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, interfaces.Alert{
		Severity: interfaces.AlertError,
		Title:    "Report dispatch failed",
		Body: fmt.Sprintf("The report for **%s** could not be delivered.\n\n`%v`\n\nThe next rotation tick will retry it.",
			entity.DisplayName(), err),
		Ticker: entity.Ticker,
		RunID:  runID,
		Err:    err,
	})
}

func (s *Scheduler) restoreCursor(ctx context.Context) {
	saved, err := s.cursorStorage.LoadCursor(ctx, cursorKey)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to load rotation cursor, starting from the first entity")
		return
	}
	if saved == nil {
		return
	}

	position := -1
	if saved.Position >= 0 && saved.Position < len(s.entities) && s.entities[saved.Position].Ticker == saved.Ticker {
		position = saved.Position
	} else {
		// Entity list changed since the save: follow the ticker if it is still tracked
		for i, e := range s.entities {
			if e.Ticker == saved.Ticker {
				position = i
				break
			}
		}
	}
	if position < 0 {
		s.logger.Info().Str("ticker", saved.Ticker).Msg("Saved rotation cursor no longer tracked, starting from the first entity")
		return
	}

	s.mu.Lock()
	s.cursor = position
	s.mu.Unlock()
	s.logger.Info().Int("position", position).Str("ticker", saved.Ticker).Msg("Rotation cursor restored")
}

func (s *Scheduler) saveCursor(ctx context.Context, position int) {
	cursor := &models.RotationCursor{
		Key:       cursorKey,
		Position:  position,
		Ticker:    s.entities[position].Ticker,
		UpdatedAt: s.now(),
	}
	if err := s.cursorStorage.SaveCursor(ctx, cursor); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to persist rotation cursor")
	}
}

// Cursor returns the position of the next entity to serve
func (s *Scheduler) Cursor() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor
}

// Entities returns the rotation order
func (s *Scheduler) Entities() []models.TrackedEntity {
	return append([]models.TrackedEntity(nil), s.entities...)
}

// Status returns a snapshot of the scheduler state
func (s *Scheduler) Status() models.RotationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := models.RotationStatus{
		Enabled:    s.started,
		Interval:   s.config.Interval.String(),
		Cursor:     s.cursor,
		NextTicker: s.entities[s.cursor].Ticker,
		Running:    s.running,
		LastTicker: s.lastTicker,
		LastError:  s.lastError,
	}
	if s.lastRun != nil {
		ran := *s.lastRun
		status.LastRun = &ran
	}
	if s.started {
		if entry := s.cron.Entry(s.entryID); entry.Valid() && !entry.Next.IsZero() {
			next := entry.Next
			status.NextRun = &next
		}
	}
	return status
}
