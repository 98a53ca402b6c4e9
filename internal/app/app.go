// Package app wires configuration, stores, the upstream client and the
// services into one runnable unit shared by the serve and sync commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"adinsights/internal/delivery"
	"adinsights/internal/domain"
	"adinsights/internal/infrastructure"
	"adinsights/internal/usecase"
	"adinsights/pkg/config"
	"adinsights/pkg/logger"
	"adinsights/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const callBudgetKey = "adinsights:call_budget"

type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Metrics  *metrics.Metrics
	Registry *prometheus.Registry

	Facts      domain.FactRepository
	Structures domain.StructureRepository
	Accounts   domain.AccountRepository
	Budget     domain.CallBudget
	APIClient  domain.InsightsAPIClient

	SyncService    *usecase.SyncService
	MetricsService *usecase.MetricsService

	closers []func() error
}

// New builds the application. Postgres backs the stores when a DSN is set,
// memory otherwise; Redis backs the call budget when an address is set.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &App{
		Config:   cfg,
		Logger:   log,
		Metrics:  metrics.New(reg),
		Registry: reg,
	}

	if err := a.openStores(cfg, log); err != nil {
		return nil, err
	}
	if err := a.openBudget(ctx, cfg, log); err != nil {
		_ = a.Close()
		return nil, err
	}

	if len(cfg.Sync.AccountIDs) > 0 {
		if err := a.Accounts.EnsureAccounts(ctx, cfg.Sync.AccountIDs); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to seed accounts: %w", err)
		}
	}

	a.APIClient = infrastructure.NewGraphAPIClient(cfg.Upstream, a.Budget, log, a.Metrics)
	a.SyncService = usecase.NewSyncService(
		a.Facts,
		a.Structures,
		a.Accounts,
		a.APIClient,
		usecase.NewTransformer(log, a.Metrics),
		usecase.NewValidator(),
		log,
		a.Metrics,
		usecase.SyncOptions{
			WindowDays:   cfg.Sync.WindowDays,
			AccountDelay: cfg.Sync.AccountDelay,
		},
	)
	a.MetricsService = usecase.NewMetricsService(a.Facts, log, a.Metrics)

	return a, nil
}

func (a *App) openStores(cfg *config.Config, log *logger.Logger) error {
	if cfg.Database.DSN == "" {
		log.Warn("No database DSN configured, using in-memory stores")
		a.Facts = infrastructure.NewMemoryFactRepository(log)
		a.Structures = infrastructure.NewMemoryStructureRepository()
		a.Accounts = infrastructure.NewMemoryAccountRepository()
		return nil
	}

	db, err := infrastructure.OpenPostgres(cfg.Database, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	a.closers = append(a.closers, sqlDB.Close)

	a.Facts = infrastructure.NewPostgresFactRepository(db, cfg.Sync.BatchSize, log)
	a.Structures = infrastructure.NewPostgresStructureRepository(db)
	a.Accounts = infrastructure.NewPostgresAccountRepository(db)
	return nil
}

func (a *App) openBudget(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.Redis.Addr == "" {
		a.Budget = infrastructure.NewHourlyCallBudget(cfg.Sync.HourlyCallBudget, log, a.Metrics)
		return nil
	}

	client, err := infrastructure.OpenRedis(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, client.Close)
	a.Budget = infrastructure.NewRedisCallBudget(client, callBudgetKey, cfg.Sync.HourlyCallBudget, log, a.Metrics)
	return nil
}

// Router builds the HTTP surface.
func (a *App) Router() *gin.Engine {
	handlers := delivery.NewHTTPHandlers(a.SyncService, a.MetricsService, a.Accounts, a.Logger)
	return delivery.NewHTTPRouter(handlers, a.Logger, a.Metrics, a.Registry, a.Config.Server.Mode).SetupRoutes()
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
