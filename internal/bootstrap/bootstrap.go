// Package bootstrap wires configuration, logging, error tracking, storage
// and the pipeline dependencies shared by every binary.
package bootstrap

import (
	"context"

	"midas/internal/adapters/ai"
	"midas/internal/adapters/config"
	"midas/internal/adapters/discord"
	"midas/internal/adapters/errors/noop"
	"midas/internal/adapters/errors/sentry"
	"midas/internal/adapters/postgres"
	"midas/internal/adapters/reddit"
	"midas/internal/adapters/yahoo"
	"midas/internal/agents"
	"midas/internal/persistence"
	"midas/internal/pipeline"
	"midas/internal/services/execution"
	pkgerrors "midas/pkg/errors"
	"midas/pkg/logger"
)

// App is the assembled runtime for one binary invocation.
type App struct {
	Config  *config.Config
	Store   persistence.Store
	Deps    pipeline.Deps
	Tracker pkgerrors.Tracker

	pg *postgres.Client
}

// New loads config, initializes logging and error tracking, connects to
// postgres, migrates the schema and builds the pipeline dependencies.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		return nil, err
	}

	var tracker pkgerrors.Tracker = noop.New()
	if cfg.ErrorTracking.Enabled && cfg.ErrorTracking.SentryDSN != "" {
		tracker, err = sentry.New(cfg.ErrorTracking.SentryDSN, cfg.ErrorTracking.Environment)
		if err != nil {
			return nil, err
		}
	}
	logger.SetErrorTracker(tracker)

	pg, err := postgres.NewClient(cfg.Postgres)
	if err != nil {
		return nil, err
	}
	if err := pg.Health(ctx); err != nil {
		_ = pg.Close()
		return nil, err
	}

	store := persistence.NewPostgresStore(pg.DB(), persistence.DefaultSchema())
	if err := persistence.Migrate(ctx, store); err != nil {
		_ = pg.Close()
		return nil, err
	}

	aiClient := ai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.Temperature, cfg.OpenAI.Timeout)
	executor := execution.NewExecutor(store)

	deps := pipeline.Deps{
		Posts:       reddit.NewScraper(cfg.Reddit),
		Market:      yahoo.NewClient(cfg.Yahoo.HTTPTimeout),
		Notify:      discord.NewNotifier(cfg.Discord.WebhookURL, cfg.Discord.Timeout),
		Recommender: agents.NewRecommender(aiClient),
		Planner:     agents.NewPlanner(aiClient),
		Picker:      agents.NewPicker(aiClient),
		Trader:      agents.NewTrader(aiClient),
		Executor:    executor,
		Trading:     cfg.Trading,
	}

	return &App{
		Config:  cfg,
		Store:   store,
		Deps:    deps,
		Tracker: tracker,
		pg:      pg,
	}, nil
}

// Close releases the app's resources.
func (a *App) Close() {
	_ = a.Tracker.Flush(context.Background())
	if a.pg != nil {
		_ = a.pg.Close()
	}
	_ = logger.Sync()
}
