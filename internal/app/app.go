package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"rentwise/internal/config"
	"rentwise/internal/domain"
	"rentwise/internal/infrastructure/datagov"
	"rentwise/internal/infrastructure/geocode"
	"rentwise/internal/infrastructure/scheduler"
	"rentwise/internal/infrastructure/storage"
	"rentwise/internal/logging"
	"rentwise/internal/ports"
	"rentwise/internal/recommend"
	"rentwise/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db          *sql.DB
	repository  *storage.Repository
	sync        *usecase.Sync
	schedule    *usecase.ScheduleManager
	aggregator  *usecase.Aggregator
	recommender *usecase.Recommender
	cron        *scheduler.CronScheduler
}

// New connects the database and builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	repository := storage.NewRepository(db, baseLogger.With("component", "storage"))

	source := datagov.NewClient(nil, cfg.Dataset.BaseURL, cfg.Dataset.APIKey,
		baseLogger.With("component", "datagov"))

	sync := usecase.NewSync(usecase.SyncDeps{
		Source:     source,
		Repository: repository,
		Status:     repository,
		Logger:     baseLogger.With("component", "sync"),
		ResourceID: cfg.Dataset.ResourceID,
		PageSize:   cfg.Dataset.PageSize,
		MaxPages:   cfg.Dataset.MaxPages,
	})

	cron := scheduler.New(cfg.Scheduler.Location(), baseLogger.With("component", "scheduler"))

	jobLogger := baseLogger.With("component", "scheduled-sync")
	job := func() {
		jobLogger.Info("scheduled sync firing")
		if _, err := sync.Run(context.Background()); err != nil {
			// A failed run must not unregister the timer.
			jobLogger.Error("scheduled sync failed", "error", err)
		}
	}

	schedule := usecase.NewScheduleManager(repository, cron, job,
		baseLogger.With("component", "schedule"))

	geocoder := geocode.NewClient(cfg.Geocoder.Endpoint, cfg.Geocoder.APIKey, cfg.Geocoder.Country, nil)

	ranker, err := recommend.NewRanker()
	if err != nil {
		return nil, fmt.Errorf("load town reference data: %w", err)
	}

	aggregator := usecase.NewAggregator(repository)
	recommender := usecase.NewRecommender(geocoder, aggregator, ranker,
		baseLogger.With("component", "recommend"))

	return &Application{
		cfg:         cfg,
		logger:      baseLogger,
		db:          db,
		repository:  repository,
		sync:        sync,
		schedule:    schedule,
		aggregator:  aggregator,
		recommender: recommender,
		cron:        cron,
	}, nil
}

// Run ensures the schema, installs the persisted sync schedule and
// blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.repository.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	if err := a.schedule.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	a.logger.Info("rentwise core running")
	<-ctx.Done()

	a.logger.Info("shutting down")
	return a.cron.Stop(context.Background())
}

// SyncNow runs a one-shot ingestion, safe to overlap a timer firing.
func (a *Application) SyncNow(ctx context.Context) (int, error) {
	return a.sync.Run(ctx)
}

// Schedule reports the active cron expression and its label.
func (a *Application) Schedule(ctx context.Context) (string, string, error) {
	return a.schedule.Schedule(ctx)
}

// SetSchedule switches the sync cadence to a supported label.
func (a *Application) SetSchedule(ctx context.Context, label string) error {
	return a.schedule.SetSchedule(ctx, label)
}

// Recommend answers a best-town-between-locations query.
func (a *Application) Recommend(ctx context.Context, locations []string, alpha float64) (domain.Recommendation, error) {
	return a.recommender.RecommendBetween(ctx, locations, alpha)
}

// TownStatistic returns the read-time aggregate for one town.
func (a *Application) TownStatistic(ctx context.Context, town string) (domain.TownStatistic, error) {
	return a.aggregator.TownStatistic(ctx, town)
}

// AllTownStatistics returns per-town aggregates, optionally split by
// flat type with explicit unavailable entries for missing categories.
func (a *Application) AllTownStatistics(ctx context.Context, byFlatType bool) (any, error) {
	if byFlatType {
		return a.aggregator.AllTownStatisticsByFlatType(ctx)
	}
	return a.aggregator.AllTownStatistics(ctx)
}

// Search returns stored records matching the given filters, cheapest first.
func (a *Application) Search(ctx context.Context, filters ports.SearchFilters) ([]domain.TransactionRecord, error) {
	return a.repository.SearchByFilters(ctx, filters)
}

// Count reports the number of stored transaction records.
func (a *Application) Count(ctx context.Context) (int, error) {
	return a.repository.Count(ctx)
}

// Sample returns the most recently updated records.
func (a *Application) Sample(ctx context.Context, limit int) ([]domain.TransactionRecord, error) {
	return a.repository.Sample(ctx, limit)
}

// Close releases the database connection.
func (a *Application) Close() error {
	return a.db.Close()
}
