package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/finbot/internal/common"
	"github.com/ternarybob/finbot/internal/edgar"
	"github.com/ternarybob/finbot/internal/finnhub"
	"github.com/ternarybob/finbot/internal/handlers"
	"github.com/ternarybob/finbot/internal/interfaces"
	"github.com/ternarybob/finbot/internal/models"
	"github.com/ternarybob/finbot/internal/services/alerts"
	"github.com/ternarybob/finbot/internal/services/commands"
	"github.com/ternarybob/finbot/internal/services/discord"
	"github.com/ternarybob/finbot/internal/services/filings"
	"github.com/ternarybob/finbot/internal/services/history"
	"github.com/ternarybob/finbot/internal/services/llm"
	"github.com/ternarybob/finbot/internal/services/mailer"
	"github.com/ternarybob/finbot/internal/services/quotes"
	"github.com/ternarybob/finbot/internal/services/report"
	"github.com/ternarybob/finbot/internal/services/rotation"
	"github.com/ternarybob/finbot/internal/storage"
	"github.com/ternarybob/finbot/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	Entities  []models.TrackedEntity
	ctx       context.Context
	cancelCtx context.CancelFunc

	StorageManager *badger.Manager // nil when nothing persists

	// Data sources
	QuoteSource   *finnhub.Client
	FilingsSource *edgar.Client

	// Report pipeline
	QuoteService     *quotes.Service
	FilingsService   *filings.Service
	NarrativeService interfaces.NarrativeService // nil when narratives are disabled
	Composer         *report.Composer
	Pipeline         *report.Pipeline

	History    *history.Store
	Dispatcher *commands.Dispatcher
	Scheduler  *rotation.Scheduler // nil when rotation is disabled

	// Delivery
	DiscordBot *discord.Bot       // nil when Discord is disabled
	Messenger  *discord.Messenger // nil when Discord is disabled
	Mailer     *mailer.Service
	Notifier   *alerts.Notifier

	// HTTP handlers
	APIHandler    *handlers.APIHandler
	ReportHandler *handlers.ReportHandler
	FeedHandler   *handlers.FeedHandler // nil when the websocket feed is disabled
}

// New initializes the application with all dependencies. Nothing connects to a
// remote service until Start.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		Entities:  cfg.TrackedEntities(),
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initDelivery(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize delivery: %w", err)
	}

	app.initHandlers()

	if err := app.initRotation(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize rotation: %w", err)
	}

	// A nil *Scheduler must not reach the handler as a non-nil interface
	var controller handlers.RotationController
	if app.Scheduler != nil {
		controller = app.Scheduler
	}
	app.ReportHandler = handlers.NewReportHandler(app.Dispatcher, controller, app.History, app.Logger)

	logger.Info().
		Int("entities", len(app.Entities)).
		Bool("narrative", app.NarrativeService != nil).
		Bool("discord", app.DiscordBot != nil).
		Bool("rotation", app.Scheduler != nil).
		Bool("persistence", app.StorageManager != nil).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase opens Badger when history or the cursor persist
func (a *App) initDatabase() error {
	manager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}
	a.StorageManager = manager
	return nil
}

// initServices builds the sources, the report pipeline, history and the dispatcher
func (a *App) initServices() error {
	cfg := a.Config

	if cfg.Finnhub.APIKey == "" {
		a.Logger.Warn().Msg("Finnhub API key not set, quote sections will be unavailable")
	}
	a.QuoteSource = finnhub.NewClient(cfg.Finnhub.APIKey,
		finnhub.WithBaseURL(cfg.Finnhub.BaseURL),
		finnhub.WithCallDelay(common.ParseDurationOr(cfg.Finnhub.CallDelay, finnhub.DefaultCallDelay)),
		finnhub.WithLogger(a.Logger),
	)

	a.FilingsSource = edgar.NewClient(cfg.Edgar.UserAgent,
		edgar.WithBaseURL(cfg.Edgar.BaseURL),
		edgar.WithArchiveURL(cfg.Edgar.ArchiveURL),
		edgar.WithRateLimit(cfg.Edgar.RateLimit),
		edgar.WithLogger(a.Logger),
	)

	quoteService, err := quotes.NewService(a.QuoteSource, a.Logger,
		common.ParseDurationOr(cfg.Finnhub.Timeout, quotes.DefaultTimeout),
		common.ParseDurationOr(cfg.Finnhub.CacheTTL, quotes.DefaultCacheTTL),
	)
	if err != nil {
		return err
	}
	a.QuoteService = quoteService

	a.FilingsService = filings.NewService(a.FilingsSource, a.Logger,
		common.ParseDurationOr(cfg.Edgar.Timeout, filings.DefaultTimeout),
		cfg.Report.RecentFilings,
	)

	a.NarrativeService, err = llm.NewNarrativeService(a.ctx, cfg, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create narrative service: %w", err)
	}

	a.Composer = report.NewComposer(a.NarrativeService, a.Logger, report.Options{
		Language:         cfg.Report.Language,
		MaxWords:         cfg.Report.MaxWords,
		MaxTokens:        cfg.Report.MaxTokens,
		NarrativeTimeout: common.ParseDurationOr(cfg.LLM.Timeout, report.DefaultNarrativeTimeout),
	})
	a.Pipeline = report.NewPipeline(a.QuoteService, a.FilingsService, a.Composer, a.Logger)

	var historyStorage interfaces.HistoryStorage
	if a.StorageManager != nil && cfg.Rotation.PersistHistory {
		historyStorage = a.StorageManager.HistoryStorage()
	}
	a.History = history.NewStore(a.ctx, a.Entities, historyStorage, a.Logger)

	a.Dispatcher = commands.NewDispatcher(a.Entities, a.Pipeline, a.History, a.FilingsSource, a.Logger, cfg.Discord.CommandPrefix)

	return nil
}

// initDelivery builds the Discord session, the mailer and the operator notifier
func (a *App) initDelivery() error {
	cfg := a.Config

	var notifyOpts []alerts.Option

	if cfg.Discord.Enabled {
		listener := discord.NewListener(a.Dispatcher, cfg.Discord.CommandPrefix, discord.DefaultCommandTimeout, a.Logger)
		bot, err := discord.NewBot(cfg.Discord.Token, listener, a.Logger)
		if err != nil {
			return err
		}
		a.DiscordBot = bot
		a.Messenger = discord.NewMessenger(bot.Session(), cfg.Discord.ReportChannelID,
			common.ParseDurationOr(cfg.Discord.DispatchTimeout, discord.DefaultDispatchTimeout), a.Logger)

		if cfg.Operator.DiscordChannelID != "" {
			notifyOpts = append(notifyOpts, alerts.WithChannel(a.Messenger, cfg.Operator.DiscordChannelID))
		}
	}

	a.Mailer = mailer.NewService(cfg.Operator.SMTP, a.Logger)
	if cfg.Operator.Email != "" {
		if a.Mailer.IsConfigured() {
			notifyOpts = append(notifyOpts, alerts.WithEmail(a.Mailer, cfg.Operator.Email))
		} else {
			a.Logger.Warn().Msg("Operator email set but SMTP is not configured, alerts will not be mailed")
		}
	}

	a.Notifier = alerts.NewNotifier(a.Logger, notifyOpts...)
	return nil
}

func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	if a.Config.WebSocket.Enabled {
		a.FeedHandler = handlers.NewFeedHandler(a.Logger)
	}
}

// initRotation builds the scheduler. Rotation needs a report channel to deliver to.
func (a *App) initRotation() error {
	cfg := a.Config

	if !cfg.Rotation.Enabled {
		a.Logger.Info().Msg("Rotation disabled")
		return nil
	}
	if a.Messenger == nil {
		a.Logger.Warn().Msg("Rotation enabled but Discord is disabled, rotation will not run")
		return nil
	}

	opts := []rotation.Option{rotation.WithNotifier(a.Notifier)}
	if a.StorageManager != nil && cfg.Rotation.PersistCursor {
		opts = append(opts, rotation.WithCursorStorage(a.StorageManager.CursorStorage()))
	}
	if a.FeedHandler != nil {
		opts = append(opts, rotation.WithObserver(a.FeedHandler))
	}

	scheduler, err := rotation.New(a.Entities, a.Pipeline, a.Messenger, a.History, a.Logger, rotation.Config{
		Interval:      common.ParseDurationOr(cfg.Rotation.Interval, rotation.DefaultInterval),
		RunOnStart:    cfg.Rotation.RunOnStart,
		TickTimeout:   common.ParseDurationOr(cfg.Rotation.TickTimeout, rotation.DefaultTickTimeout),
		PersistCursor: cfg.Rotation.PersistCursor,
	}, opts...)
	if err != nil {
		return err
	}
	a.Scheduler = scheduler
	return nil
}

// Start opens the Discord session and starts the rotation
func (a *App) Start() error {
	if a.DiscordBot != nil {
		if err := a.DiscordBot.Start(a.ctx); err != nil {
			return err
		}
	}

	if a.Scheduler != nil {
		if err := a.Scheduler.Start(a.ctx); err != nil {
			return fmt.Errorf("failed to start rotation: %w", err)
		}
	}

	return nil
}

// Close stops background work and releases every resource. Safe after a partial New.
func (a *App) Close() error {
	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.Scheduler != nil {
		a.Scheduler.Stop()
		a.Logger.Info().Msg("Rotation stopped")
	}

	if a.DiscordBot != nil {
		if err := a.DiscordBot.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop Discord session")
		}
	}

	if a.FeedHandler != nil {
		a.FeedHandler.Close()
	}

	if a.QuoteService != nil {
		a.QuoteService.Close()
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
