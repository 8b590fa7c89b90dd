package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bverbist/tenderwatch/internal/api"
	"github.com/bverbist/tenderwatch/internal/config"
	"github.com/bverbist/tenderwatch/internal/db"
	"github.com/bverbist/tenderwatch/internal/ingest"
	"github.com/bverbist/tenderwatch/internal/match"
	"github.com/bverbist/tenderwatch/internal/models"
	"github.com/bverbist/tenderwatch/internal/notify"
	"github.com/bverbist/tenderwatch/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		logger.Fatal("database connect failed", zap.Error(err))
	}
	defer pool.Close()

	if err := db.ApplyMigrations(ctx, pool, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	store := db.NewStore(pool)

	registry, err := ingest.LoadRegistry(cfg.Ingest.RegistryPath)
	if err != nil {
		logger.Fatal("source registry load failed", zap.Error(err))
	}
	nationalCfg := registry.Lookup("national")
	euCfg := registry.Lookup("eu")
	if nationalCfg == nil || euCfg == nil {
		logger.Fatal("source registry must define the national and eu sources")
	}
	national := ingest.NewNationalConnector(nationalCfg)
	eu := ingest.NewTEDConnector(euCfg)

	importer := ingest.NewImporter(store, national, national, eu, logger)
	importer.Fetch[models.SourceNational] = nationalCfg.Fetch.Options()
	importer.Fetch[models.SourceEU] = euCfg.Fetch.Options()
	backfiller := ingest.NewBackfiller(store, nil, logger)
	cleaner := ingest.NewCleaner(store, logger)

	var dispatcher notify.Dispatcher = notify.NoopDispatcher{}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			logger.Fatal("invalid redis URL", zap.Error(err))
		}
		dispatcher = notify.NewRedisDispatcher(redis.NewClient(opts), cfg.Redis.AlertQueue, logger)
	} else {
		logger.Info("redis.url not set, alert dispatch disabled")
	}
	matcher := match.NewEngine(store, nil, dispatcher, logger)

	sched := scheduler.New(cfg, importer, backfiller, cleaner, matcher, logger)
	if err := sched.Start(ctx); err != nil {
		logger.Fatal("scheduler start failed", zap.Error(err))
	}
	defer sched.Stop()

	srv := api.NewServer(cfg, store, importer, backfiller, cleaner, matcher, logger)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.Start(addr); err != nil {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Echo.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var zc zap.Config
	if cfg.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
