// Package app wires the long-lived components a command needs. Every command
// builds one App and hands its pieces to the dispatchers, the API or the
// ingest worker; nothing is global.
package app

import (
	"fmt"

	"github.com/PromoBrothers/Projeto-2026/internal/config"
	"github.com/PromoBrothers/Projeto-2026/internal/db"
	"github.com/PromoBrothers/Projeto-2026/internal/gateway"
	"github.com/PromoBrothers/Projeto-2026/internal/logger"
	"github.com/PromoBrothers/Projeto-2026/internal/repository"
	"github.com/PromoBrothers/Projeto-2026/internal/service/destination"
	"github.com/PromoBrothers/Projeto-2026/internal/service/queue"
	"github.com/PromoBrothers/Projeto-2026/internal/worker"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type App struct {
	Cfg config.Config
	Log *zap.Logger

	MySQL *sqlx.DB
	CH    *sqlx.DB // nil unless clickhouse.enabled

	Gateway    *gateway.Client
	Products   *repository.ProductsRepositoryImpl
	Queue      *repository.QueueRepositoryImpl
	Groups     *repository.GroupsRepositoryImpl
	Deliveries repository.CHDeliveriesRepository // nil unless clickhouse.enabled
	Resolver   *destination.Resolver
	Settings   *config.QueueSettingsStore
	QueueSvc   *queue.Service
	Recorder   worker.Recorder

	batch *worker.BatchRecorder
}

// Bootstrap loads the config file plus env overrides and builds the process logger.
func Bootstrap(cfgPath string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

// Open connects the stores and builds the shared services. Close releases them.
func Open(cfg config.Config, log *zap.Logger) (*App, error) {
	mysqlDB, err := db.NewMySQLConnection(cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("mysql connect: %w", err)
	}

	a := &App{
		Cfg:      cfg,
		Log:      log,
		MySQL:    mysqlDB,
		Gateway:  gateway.NewClient(cfg.Gateway, log),
		Products: repository.NewProductsRepository(mysqlDB),
		Queue:    repository.NewQueueRepository(mysqlDB),
		Groups:   repository.NewGroupsRepository(mysqlDB),
		Settings: config.NewQueueSettingsStore(cfg.Scheduler.CloneQueue.SettingsFile, cfg.Scheduler.CloneQueue.SpacingMinutes),
		Recorder: worker.NopRecorder{},
	}
	a.Resolver = destination.NewResolver(a.Groups, cfg.Gateway.FallbackGroupIDs(), cfg.Scheduler.ResolverTTL, log)
	a.QueueSvc = queue.New(a.Queue, a.Settings, cfg.Scheduler.CloneQueue)

	if cfg.ClickHouse.Enabled {
		chDB, err := db.NewClickHouseConnection(cfg.ClickHouse.DatabaseConfig)
		if err != nil {
			_ = mysqlDB.Close()
			return nil, fmt.Errorf("clickhouse connect: %w", err)
		}
		a.CH = chDB
		a.Deliveries = repository.NewCHDeliveriesRepository(chDB)
		a.batch = worker.NewBatchRecorder(a.Deliveries, cfg.ClickHouse.BatchSize, cfg.ClickHouse.BatchWait, log)
		a.Recorder = a.batch
	}

	return a, nil
}

// StartRecorder begins flushing delivery attempts to ClickHouse. It is not
// tied to the shutdown signal: Close stops it once the dispatchers are done.
// No-op when the audit log is disabled.
func (a *App) StartRecorder() {
	if a.batch != nil {
		a.batch.Start()
	}
}

func (a *App) NewProductDispatcher() *worker.ProductDispatcher {
	return worker.NewProductDispatcher(
		a.Cfg.Scheduler.Products,
		a.Cfg.Scheduler.Location(),
		a.Products,
		a.Gateway,
		a.Resolver,
		a.Recorder,
		a.Log,
	)
}

func (a *App) NewCloneDispatcher() *worker.CloneDispatcher {
	return worker.NewCloneDispatcher(
		a.Cfg.Scheduler.CloneQueue,
		a.Queue,
		a.Gateway,
		a.Resolver,
		a.Settings,
		a.Recorder,
		a.Log,
	)
}

// Close stops the recorder (flushing what it buffered) and closes the stores.
// Dispatchers must be stopped first.
func (a *App) Close() {
	if a.batch != nil {
		a.batch.Close()
	}
	if a.CH != nil {
		_ = a.CH.Close()
	}
	_ = a.MySQL.Close()
	_ = a.Log.Sync()
}
