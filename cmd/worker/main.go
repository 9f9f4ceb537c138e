package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	enumspb "go.temporal.io/api/enums/v1"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/interceptor"
	"go.temporal.io/sdk/worker"

	"github.com/edvin/metering/internal/activity"
	"github.com/edvin/metering/internal/config"
	"github.com/edvin/metering/internal/core"
	"github.com/edvin/metering/internal/db"
	"github.com/edvin/metering/internal/lock"
	"github.com/edvin/metering/internal/logging"
	"github.com/edvin/metering/internal/metering"
	"github.com/edvin/metering/internal/metrics"
	"github.com/edvin/metering/internal/store"
	"github.com/edvin/metering/internal/workflow"
)

const (
	taskQueue          = "metering-tasks"
	collectionSchedule = "usage-collection-cron"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg, "worker")

	collectionCfg, err := config.LoadCollection(cfg.CollectionConfig)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.CollectionConfig).Msg("failed to load collection config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	corePool, err := db.NewCorePool(ctx, cfg.CoreDatabaseURL, "metering-worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to core database")
	}
	defer corePool.Close()
	metrics.RegisterPgxPoolMetrics(prometheus.DefaultRegisterer, corePool)

	var locker core.Locker
	if cfg.RedisURL != "" {
		redisLocker, err := lock.NewRedisLocker(ctx, cfg.RedisURL, cfg.SweepLockTTL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisLocker.Close()
		locker = redisLocker
	}

	collection, err := core.NewCollectionService(
		store.New(corePool),
		metering.NewClient(cfg.MeteringURL, cfg.MeteringToken),
		collectionCfg, locker, cfg.CollectionWorkers, logger,
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build collection service")
	}

	tc, err := temporalclient.Dial(temporalclient.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to temporal")
	}
	defer tc.Close()

	w := worker.New(tc, taskQueue, worker.Options{
		Interceptors: []interceptor.WorkerInterceptor{workflow.NewActivityLogInterceptor(logger)},
	})
	w.RegisterActivity(activity.NewCollection(collection))
	w.RegisterWorkflow(workflow.CollectUsageWorkflow)

	if cfg.MetricsAddr != "" {
		metricsSrv := metrics.NewServer(cfg.MetricsAddr, corePool.Ping)
		go func() {
			logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
	}

	go func() {
		logger.Info().Str("taskQueue", taskQueue).Msg("starting temporal worker")
		if err := w.Run(worker.InterruptCh()); err != nil {
			logger.Fatal().Err(err).Msg("worker failed")
		}
	}()

	registerCollectionSchedule(ctx, tc, cfg.CollectionCron, logger)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down worker")
	cancel()
}

// registerCollectionSchedule creates the hourly sweep schedule. An existing
// schedule is left as is so that re-deploys do not fail.
func registerCollectionSchedule(ctx context.Context, tc temporalclient.Client, cron string, logger zerolog.Logger) {
	_, err := tc.ScheduleClient().Create(ctx, temporalclient.ScheduleOptions{
		ID: collectionSchedule,
		Spec: temporalclient.ScheduleSpec{
			CronExpressions: []string{cron},
		},
		Overlap: enumspb.SCHEDULE_OVERLAP_POLICY_SKIP,
		Action: &temporalclient.ScheduleWorkflowAction{
			ID:        collectionSchedule,
			Workflow:  workflow.CollectUsageWorkflow,
			TaskQueue: taskQueue,
		},
	})
	if err != nil {
		if strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "AlreadyExists") || strings.Contains(err.Error(), "already registered") {
			logger.Info().Str("id", collectionSchedule).Msg("collection schedule already exists, skipping")
			return
		}
		logger.Fatal().Err(err).Str("id", collectionSchedule).Msg("failed to create collection schedule")
	}
	logger.Info().Str("id", collectionSchedule).Str("cron", cron).Msg("created collection schedule")
}
