package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"community-atlas/internal/db"
	"community-atlas/internal/models"
	"community-atlas/internal/pipeline"
	"community-atlas/internal/redis"
	"community-atlas/internal/storage"
)

// Analyzer re-runs the migration pipeline on a schedule: load intervals from
// Postgres, run the analysis, persist the results, refresh the redis cache
// and upload the export. Each cycle gets its own timeout; a failed cycle is
// logged and retried on the next tick.
type Analyzer struct {
	logger   *slog.Logger
	db       *db.DB
	redis    *redis.Client
	exports  storage.ExportStore
	runner   *pipeline.Runner
	interval time.Duration
	stop     chan struct{}
}

func New(logger *slog.Logger, dbConn *db.DB, redisClient *redis.Client, exports storage.ExportStore, runner *pipeline.Runner, interval time.Duration) *Analyzer {
	return &Analyzer{
		logger:   logger,
		db:       dbConn,
		redis:    redisClient,
		exports:  exports,
		runner:   runner,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

func (a *Analyzer) Start() {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	// Run immediately on start
	a.runCycle()

	for {
		select {
		case <-ticker.C:
			a.runCycle()
		case <-a.stop:
			return
		}
	}
}

func (a *Analyzer) Stop() {
	close(a.stop)
}

func (a *Analyzer) runCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if _, err := a.RunOnce(ctx); err != nil {
		a.logger.Warn("analysis_cycle_failed", "error", err)
	}
}

// RunOnce executes a single full analysis and returns the run id. The export
// is written to the database, the cache and object storage only after the
// complete payload is assembled — a failure leaves no partial results.
func (a *Analyzer) RunOnce(ctx context.Context) (int64, error) {
	started := time.Now()
	a.logger.Info("analysis_cycle_started")

	intervalsByUser, err := a.db.LoadIntervalsByUser(ctx)
	if err != nil {
		return 0, fmt.Errorf("load intervals: %w", err)
	}

	result := a.runner.Run(intervalsByUser, true)

	run := models.AnalysisRun{
		TotalMigrations: result.Export.Metadata.TotalMigrations,
		UniqueUsers:     result.Export.Metadata.UniqueUsers,
		CommunityCount:  result.Export.Metadata.CommunityCount,
		FlowCount:       result.Export.Metadata.FlowCount,
		SkippedPairs:    result.Skips.Total(),
		StartedAt:       started,
		FinishedAt:      time.Now(),
	}

	runID, err := a.db.SaveRun(ctx, run, result.Export, result.Flows, result.Bridges)
	if err != nil {
		return 0, fmt.Errorf("save run: %w", err)
	}

	payload, err := a.db.LatestExport(ctx)
	if err != nil {
		return runID, fmt.Errorf("reload export: %w", err)
	}

	if err := a.redis.SetLatestExport(ctx, payload); err != nil {
		a.logger.Warn("export_cache_failed", "run_id", runID, "error", err)
	}

	counterKey := "atlas:runs:" + time.Now().UTC().Format("20060102")
	if _, err := a.redis.Increment(ctx, counterKey, 48*time.Hour); err != nil {
		a.logger.Debug("run_counter_failed", "error", err)
	}

	if url, err := a.exports.UploadExport(ctx, runID, payload); err != nil {
		a.logger.Warn("export_upload_failed", "run_id", runID, "error", err)
	} else {
		a.logger.Info("export_uploaded", "run_id", runID, "url", url)
	}

	a.logger.Info("analysis_cycle_completed",
		"run_id", runID,
		"migrations", run.TotalMigrations,
		"flows", run.FlowCount,
		"skipped_pairs", run.SkippedPairs,
		"elapsed_ms", time.Since(started).Milliseconds(),
	)
	return runID, nil
}
