// Command sloengine runs a single batch pass of the SLO recommendation
// engine: load configuration, connect to Postgres, provision the schema,
// and fan the recommendation pipeline out over every eligible service.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sloengine/internal/batch"
	"sloengine/internal/graph"
	"sloengine/internal/pipeline"
	"sloengine/internal/recommendation"
	"sloengine/internal/telemetry"
	"sloengine/migrations"
	"sloengine/pkg/cache"
	"sloengine/pkg/config"
	"sloengine/pkg/database"
	"sloengine/pkg/logger"
	"sloengine/pkg/metrics"
)

func main() {
	sliFilter := flag.String("sli", "all", "sli type filter: availability, latency, or all")
	lookbackDays := flag.Int("lookback-days", 30, "requested lookback window in days")
	excludeDiscoveredOnly := flag.Bool("exclude-discovered", true, "skip auto-discovered placeholder services")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load configuration: " + err.Error())
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgresDB(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, migrations.FS, "."); err != nil {
		logger.Fatal("failed to run migrations", "error", err)
	}

	m := metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	m.SetServiceInfo(cfg.App.Version, cfg.App.Environment)

	store := graph.NewPostgresStore(db)
	repo := recommendation.NewPostgresRepository(db)
	alertRepo := graph.NewPostgresAlertRepository(db)

	var telemetryPort telemetry.Port = telemetry.NewSeedPort()
	if cfg.Cache.Enabled {
		completenessCache, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Fatal("failed to initialize telemetry completeness cache", "error", err)
		}
		defer completenessCache.Close()
		telemetryPort = telemetry.NewCachedPort(telemetryPort, completenessCache, cfg.Cache.DefaultTTL)
	}

	orchestrator := pipeline.NewOrchestrator(store, telemetryPort, repo, m)
	batchOrchestrator := batch.NewOrchestrator(store, orchestrator, m)
	cycleDetection := graph.NewCycleDetectionUseCase(store, alertRepo)

	logger.Info("running circular dependency detection pass")
	if run, err := cycleDetection.Execute(ctx); err != nil {
		logger.Error("circular dependency detection failed", "error", err)
	} else {
		logger.Info("circular dependency detection complete",
			"cycles_found", run.CyclesFound, "alerts_created", run.AlertsCreated, "alerts_known", run.AlertsKnown)
	}

	logger.Info("starting batch run", "sli_filter", *sliFilter, "lookback_days", *lookbackDays)

	start := time.Now()
	summary, err := batchOrchestrator.Run(ctx, batch.Request{
		SLITypeFilter:         pipeline.SLIFilter(*sliFilter),
		LookbackDays:          *lookbackDays,
		ExcludeDiscoveredOnly: *excludeDiscoveredOnly,
	})
	if err != nil {
		logger.Fatal("batch run failed", "error", err)
	}

	logger.Info("batch run finished",
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"wall_clock_seconds", time.Since(start).Seconds(),
	)

	if summary.Failed > 0 {
		os.Exit(1)
	}
}
