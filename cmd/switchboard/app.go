package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/arbiterhq/switchboard/capability"
	"github.com/arbiterhq/switchboard/config"
	"github.com/arbiterhq/switchboard/internal/cache"
	"github.com/arbiterhq/switchboard/internal/metrics"
	"github.com/arbiterhq/switchboard/internal/telemetry"
	"github.com/arbiterhq/switchboard/orchestrator"
	"github.com/arbiterhq/switchboard/providers/openai"
	"github.com/arbiterhq/switchboard/server"
	"github.com/arbiterhq/switchboard/store"
)

// app owns the wired service and its shutdown order.
type app struct {
	srv       *server.Server
	telemetry *telemetry.Providers
	cache     *cache.Manager
	logger    *zap.Logger
}

// buildApp wires provider, store, cache, catalog, loop, and transport from
// the loaded configuration.
func buildApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("telemetry initialization failed", zap.Error(err))
	}

	db, err := openDatabase(cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	st, err := store.New(db, logger)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	var cacheMgr *cache.Manager
	if cfg.Redis.Enabled {
		cacheMgr, err = cache.NewManager(cache.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DefaultTTL:   cfg.Orchestrator.ContextCacheTTL,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, logger)
		if err != nil {
			// The summary provider degrades to uncached reads.
			logger.Warn("redis unavailable, context caching disabled", zap.Error(err))
			cacheMgr = nil
		}
	}

	provider := openai.New(openai.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	catalog := capability.NewCatalog()
	if err := catalog.Register(capability.AgentCustomerMgmt, capability.CustomerSpecs); err != nil {
		return nil, fmt.Errorf("register customer_mgmt: %w", err)
	}
	if err := catalog.Register(capability.AgentProductMgmt, capability.ProductSpecs); err != nil {
		return nil, fmt.Errorf("register product_mgmt: %w", err)
	}

	profiles := []orchestrator.AgentProfile{
		{Name: capability.AgentCustomerMgmt, BasePrompt: cfg.Agents.CustomerMgmt.SystemPrompt},
		{Name: capability.AgentProductMgmt, BasePrompt: cfg.Agents.ProductMgmt.SystemPrompt},
	}

	gapAgents := make([]capability.AgentName, 0, len(cfg.Orchestrator.GapDetectionAgents))
	for _, a := range cfg.Orchestrator.GapDetectionAgents {
		gapAgents = append(gapAgents, capability.AgentName(a))
	}

	collector := metrics.NewCollector("switchboard", logger)
	summaries := store.NewSummaryProvider(st, cacheMgr, cfg.Orchestrator.ContextCacheTTL, logger)

	loop, err := orchestrator.NewLoop(
		provider,
		catalog,
		profiles,
		st,
		summaries,
		st,
		collector,
		orchestrator.Options{
			MaxHandoffs:          cfg.Orchestrator.MaxHandoffs,
			MaxStepsPerSession:   cfg.Orchestrator.MaxStepsPerSession,
			DefaultAgent:         capability.AgentName(cfg.Orchestrator.DefaultAgent),
			ReadOnlyCapabilities: cfg.Orchestrator.ReadOnlyCapabilities,
			GapDetectionAgents:   gapAgents,
			GapMinMessageLen:     cfg.Orchestrator.GapMinMessageLen,
			GapDescriptionLimit:  cfg.Orchestrator.GapDescriptionLimit,
			Model:                cfg.LLM.Model,
			MaxTokens:            cfg.LLM.MaxTokens,
			Temperature:          float32(cfg.LLM.Temperature),
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("init orchestrator: %w", err)
	}

	return &app{
		srv:       server.New(loop, provider, collector, cfg.Server, logger),
		telemetry: otelProviders,
		cache:     cacheMgr,
		logger:    logger,
	}, nil
}

// Run serves until SIGINT/SIGTERM, then shuts everything down in order.
func (a *app) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(a.srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown signal received")
		return a.srv.Shutdown(context.Background())
	})

	err := g.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if a.telemetry != nil {
		if terr := a.telemetry.Shutdown(shutdownCtx); terr != nil {
			a.logger.Warn("telemetry shutdown failed", zap.Error(terr))
		}
	}
	if a.cache != nil {
		if cerr := a.cache.Close(); cerr != nil {
			a.logger.Warn("cache shutdown failed", zap.Error(cerr))
		}
	}
	return err
}

// openDatabase opens the configured relational backend. SQLite uses the
// cgo-free driver so the binary stays portable.
func openDatabase(dbCfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch dbCfg.Driver {
	case "postgres":
		dialector = postgres.Open(dbCfg.DSN())
	case "mysql":
		dialector = mysql.Open(dbCfg.DSN())
	case "sqlite":
		dialector = sqlite.Open(dbCfg.DSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, mysql, sqlite)", dbCfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		if dbCfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(dbCfg.MaxOpenConns)
		}
		if dbCfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(dbCfg.MaxIdleConns)
		}
		if dbCfg.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(dbCfg.ConnMaxLifetime)
		}
	}

	logger.Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
