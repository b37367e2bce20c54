package app

import (
	"context"
	"fmt"
	"log/slog"

	"EditorialPlanner/internal/clock"
	"EditorialPlanner/internal/config"
	"EditorialPlanner/internal/infrastructure/scheduler"
	"EditorialPlanner/internal/infrastructure/storage"
	"EditorialPlanner/internal/infrastructure/storage/memory"
	"EditorialPlanner/internal/infrastructure/telegram"
	"EditorialPlanner/internal/logging"
	"EditorialPlanner/internal/ports"
	"EditorialPlanner/internal/registry"
	"EditorialPlanner/internal/usecase"
)

// Application wires configuration to the engine and the planning loop.
type Application struct {
	cfg     config.Config
	logger  *slog.Logger
	engine  *usecase.Engine
	planner *usecase.Planner
	closer  func() error
}

// New builds a runnable application. An empty database DSN selects the
// in-memory store, which is only useful for dry runs.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	clk := clock.System{}

	var (
		routingStore ports.RoutingStore
		pubStore     ports.PublicationStore
		closer       = func() error { return nil }
	)
	if cfg.Database.DSN != "" {
		pg, err := storage.Open(cfg.Database.DSN, clk)
		if err != nil {
			return nil, fmt.Errorf("connect storage: %w", err)
		}
		routingStore, pubStore, closer = pg, pg, pg.Close
	} else {
		baseLogger.Warn("no database DSN configured, using in-memory store")
		mem := memory.New(clk)
		routingStore, pubStore = mem, mem
	}

	reg := registry.New(pubStore)
	engine := usecase.NewEngine(usecase.EngineDeps{
		Registry:     reg,
		Store:        routingStore,
		Clock:        clk,
		Thresholds:   cfg.Planner.Thresholds,
		StaleHorizon: cfg.Planner.StaleHorizon(),
		Logger:       baseLogger.With("component", "engine"),
	})

	var notifier ports.Notifier
	tg := telegram.NewNotifier(telegram.Config{
		BotToken: cfg.Notifications.Telegram.BotToken,
		ChatID:   cfg.Notifications.Telegram.ChatID,
	})
	if tg.Enabled() {
		notifier = tg
	}

	planner := usecase.NewPlanner(usecase.PlannerDeps{
		Engine:      engine,
		Registry:    reg,
		Driver:      scheduler.NewDaily(cfg.Scheduler.Interval(), cfg.Scheduler.Location()),
		Notifier:    notifier,
		HorizonDays: cfg.Planner.HorizonDays,
		Logger:      baseLogger.With("component", "planner"),
	})

	return &Application{
		cfg:     cfg,
		logger:  baseLogger,
		engine:  engine,
		planner: planner,
		closer:  closer,
	}, nil
}

// Engine exposes the lifecycle and allocation operations.
func (a *Application) Engine() *usecase.Engine {
	return a.engine
}

// Planner exposes the recurring planning job.
func (a *Application) Planner() *usecase.Planner {
	return a.planner
}

// Run starts the planning loop and blocks until the context ends.
func (a *Application) Run(ctx context.Context) error {
	if err := a.planner.Start(ctx); err != nil {
		return fmt.Errorf("start planner: %w", err)
	}
	<-ctx.Done()
	return a.planner.Stop(context.WithoutCancel(ctx))
}

// Close releases storage resources.
func (a *Application) Close() error {
	return a.closer()
}
