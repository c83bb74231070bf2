// Package app wires the engine together: storage, archive clients,
// domain services and the scheduler.
package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/grid"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/landsat"
	"github.com/ternarybob/orbiter/internal/modis"
	badgerstore "github.com/ternarybob/orbiter/internal/storage/badger"

	"github.com/ternarybob/orbiter/internal/services/cache"
	"github.com/ternarybob/orbiter/internal/services/disposition"
	"github.com/ternarybob/orbiter/internal/services/housekeeping"
	"github.com/ternarybob/orbiter/internal/services/mailer"
	"github.com/ternarybob/orbiter/internal/services/orchestrator"
	"github.com/ternarybob/orbiter/internal/services/production"
	"github.com/ternarybob/orbiter/internal/services/reconcile"
	"github.com/ternarybob/orbiter/internal/services/scheduler"
)

// App holds all application components and dependencies.
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager

	// External clients
	LandsatClient interfaces.LandsatArchive
	ModisClient   interfaces.ModisArchive
	GridClient    interfaces.JobGrid

	// Domain services
	CacheService        interfaces.OnlineCache
	MailerService       interfaces.Notifier
	Classifier          *disposition.Classifier
	ProductionService   *production.Service
	ReconcileService    *reconcile.Service
	HousekeepingService *housekeeping.Service
	Orchestrator        *orchestrator.Service
	SchedulerService    *scheduler.Service
}

// New initializes the application with all dependencies.
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	store, err := badgerstore.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = store

	app.LandsatClient = landsat.NewClient(cfg, logger)
	app.ModisClient = modis.NewClient(cfg, logger)
	app.GridClient = grid.NewClient(cfg, logger)

	cacheService, err := cache.NewService(cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	app.CacheService = cacheService

	app.MailerService = mailer.NewService(cfg, logger)
	app.Classifier = disposition.NewClassifier(cfg.Production)

	app.ProductionService = production.NewService(
		app.StorageManager,
		app.LandsatClient,
		app.CacheService,
		app.MailerService,
		app.Classifier,
		cfg,
		logger,
	)
	app.ReconcileService = reconcile.NewService(
		app.StorageManager,
		app.LandsatClient,
		app.ModisClient,
		app.ProductionService,
		cfg,
		logger,
	)
	app.HousekeepingService = housekeeping.NewService(
		app.StorageManager,
		app.GridClient,
		app.CacheService,
		app.MailerService,
		cfg,
		logger,
	)
	app.Orchestrator = orchestrator.NewService(
		app.StorageManager,
		app.ReconcileService,
		app.HousekeepingService,
		cfg,
		logger,
	)
	app.SchedulerService = scheduler.NewService(app.Orchestrator, logger)

	logger.Info().
		Str("badger_path", cfg.Storage.Badger.Path).
		Str("cache_root", cfg.Cache.Root).
		Msg("Application initialized")
	return app, nil
}

// Start begins scheduled production passes.
func (a *App) Start() error {
	return a.SchedulerService.Start(a.Config.Production.Schedule)
}

// RunOnce executes a single production pass without the scheduler.
func (a *App) RunOnce(ctx context.Context) error {
	return a.Orchestrator.Run(ctx)
}

// Close stops the scheduler and releases resources.
func (a *App) Close() {
	if a.SchedulerService != nil {
		if err := a.SchedulerService.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}
