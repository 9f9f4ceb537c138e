package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/edvin/metering/internal/api"
	"github.com/edvin/metering/internal/archive"
	"github.com/edvin/metering/internal/config"
	"github.com/edvin/metering/internal/core"
	"github.com/edvin/metering/internal/db"
	"github.com/edvin/metering/internal/lock"
	"github.com/edvin/metering/internal/logging"
	"github.com/edvin/metering/internal/metering"
	"github.com/edvin/metering/internal/metrics"
	"github.com/edvin/metering/internal/pricing"
	"github.com/edvin/metering/internal/store"
)

func main() {
	migrateFlag := flag.Bool("migrate", false, "Run database migrations before starting")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("billing-api"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg, "billing-api")

	if *migrateFlag {
		logger.Info().Msg("running database migrations")
		if err := db.RunMigrations(cfg.CoreDatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
	}

	collectionCfg, err := config.LoadCollection(cfg.CollectionConfig)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.CollectionConfig).Msg("failed to load collection config")
	}
	rates, err := pricing.LoadRates(cfg.RatesFile)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.RatesFile).Msg("failed to load rates")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL, "billing-api")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()
	metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, corePool)

	checks := map[string]metrics.ReadyFunc{"core_db": corePool.Ping}

	var locker core.Locker
	if cfg.RedisURL != "" {
		redisLocker, err := lock.NewRedisLocker(ctx, cfg.RedisURL, cfg.SweepLockTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisLocker.Close()
		locker = redisLocker
		checks["redis"] = redisLocker.Ping
	} else {
		logger.Warn().Msg("REDIS_URL not set, concurrent sweeps are not prevented across replicas")
	}

	var archiver core.Archiver
	if cfg.ArchiveEnabled() {
		archiver = archive.NewS3Archiver(cfg.ArchiveS3Endpoint, cfg.ArchiveS3Region,
			cfg.ArchiveS3Bucket, cfg.ArchiveS3AccessKey, cfg.ArchiveS3SecretKey)
		logger.Info().Str("bucket", cfg.ArchiveS3Bucket).Msg("sales order archive enabled")
	}

	st := store.New(corePool)
	source := metering.NewClient(cfg.MeteringURL, cfg.MeteringToken)

	collection, err := core.NewCollectionService(st, source, collectionCfg, locker, cfg.CollectionWorkers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build collection service")
	}
	engine := pricing.NewEngine(rates, logger)

	srv := api.NewServer(logger, api.Services{
		Collection:  collection,
		Usage:       core.NewUsageService(st),
		SalesOrders: core.NewSalesOrderService(st, engine, archiver, logger),
	}, cfg.AdminAPIKey, checks)

	// collect_usage runs a full sweep inside the request.
	httpServer := &http.Server{
		Addr:              cfg.HTTPListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr, nil)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Msg("starting billing API server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
}
