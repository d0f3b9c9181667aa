package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"community-atlas/internal/analyzer"
	"community-atlas/internal/config"
	"community-atlas/internal/db"
	"community-atlas/internal/ingest"
	"community-atlas/internal/logging"
	"community-atlas/internal/pipeline"
	"community-atlas/internal/redis"
	"community-atlas/internal/storage"
)

func main() {
	inputPath := flag.String("input", "", "CSV of activity intervals; one-shot mode, no database")
	outputPath := flag.String("output", "migration_data.json", "export destination for one-shot mode")
	loadPath := flag.String("load", "", "CSV of activity intervals to bulk load into Postgres, then exit")
	appendRows := flag.Bool("append", false, "with -load, keep existing intervals instead of replacing them")
	flag.Parse()

	if *inputPath != "" {
		if err := runBatch(*inputPath, *outputPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_worker", "service", "community-atlas-worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbConn, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := dbConn.EnsureSchema(ctx); err != nil {
		logger.Error("schema_init_failed", "error", err)
		os.Exit(1)
	}

	if *loadPath != "" {
		if err := loadCSV(ctx, logger, dbConn, *loadPath, *appendRows); err != nil {
			logger.Error("csv_load_failed", "error", err)
			os.Exit(1)
		}
		return
	}

	redisClient, err := redis.New(cfg.RedisDSN)
	if err != nil {
		logger.Error("redis_connect_failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	runner, err := newRunner(cfg, logger)
	if err != nil {
		logger.Error("pipeline_config_invalid", "error", err)
		os.Exit(1)
	}

	an := analyzer.New(logger, dbConn, redisClient, newExportStore(cfg, logger), runner,
		time.Duration(cfg.AnalysisInterval)*time.Minute)
	go an.Start()

	logger.Info("worker_started", "interval_minutes", cfg.AnalysisInterval)

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")
	an.Stop()
	logger.Info("analyzer_stopped")

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	}
	dbConn.Close()
	logger.Info("worker_stopped")
}

// runBatch is the one-shot CLI: CSV in, export JSON out, no services needed.
func runBatch(inputPath, outputPath string) error {
	cfg, err := config.LoadBatch()
	if err != nil {
		return err
	}

	logger := logging.New(cfg.LogLevel)

	intervals, stats, err := ingest.ReadIntervalsFile(inputPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", inputPath, err)
	}
	logger.Info("csv_parsed", "rows", stats.Rows, "loaded", stats.Loaded, "skipped", stats.Skipped)

	runner, err := newRunner(cfg, logger)
	if err != nil {
		return err
	}

	result := runner.Run(ingest.GroupByUser(intervals), true)

	payload, err := json.MarshalIndent(result.Export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(outputPath, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}

	logger.Info("export_written",
		"output", outputPath,
		"migrations", result.Export.Metadata.TotalMigrations,
		"flows", result.Export.Metadata.FlowCount,
	)
	return nil
}

func loadCSV(ctx context.Context, logger *slog.Logger, dbConn *db.DB, path string, appendRows bool) error {
	intervals, stats, err := ingest.ReadIntervalsFile(path)
	if err != nil {
		return err
	}

	loaded := len(intervals)
	if appendRows {
		loader := db.NewBatchLoader(dbConn, logger)
		err = dbConn.AppendIntervals(ctx, loader, intervals)
	} else {
		loaded, err = dbConn.ReplaceIntervals(ctx, intervals)
	}
	if err != nil {
		return err
	}

	logger.Info("intervals_loaded", "rows", stats.Rows, "skipped", stats.Skipped, "stored", loaded)
	return nil
}

func newRunner(cfg config.Config, logger *slog.Logger) (*pipeline.Runner, error) {
	var cats *pipeline.Categories
	if len(cfg.Categories) > 0 {
		cats = pipeline.NewCategories(cfg.Categories)
	}
	return pipeline.NewRunner(pipeline.Config{
		MinGapDays:       cfg.MinGapDays,
		MaxGapDays:       cfg.MaxGapDays,
		MinFlowThreshold: cfg.MinFlowThreshold,
	}, cats, logger)
}

// newExportStore picks real object storage when credentials are configured,
// the simulator otherwise.
func newExportStore(cfg config.Config, logger *slog.Logger) storage.ExportStore {
	if cfg.R2Bucket != "" && cfg.R2KeysRaw != "" {
		var keys struct {
			AccessKeyID     string `json:"access_key_id"`
			SecretAccessKey string `json:"secret_access_key"`
		}
		if err := json.Unmarshal([]byte(cfg.R2KeysRaw), &keys); err == nil {
			client, err := storage.NewS3Client(storage.S3Config{
				Endpoint:        cfg.R2Endpoint,
				AccessKeyID:     keys.AccessKeyID,
				SecretAccessKey: keys.SecretAccessKey,
				Bucket:          cfg.R2Bucket,
				Region:          "auto",
			})
			if err == nil {
				return client
			}
			logger.Warn("s3_init_failed", "error", err)
		}
	}
	return storage.NewR2Simulator(cfg.R2Bucket, cfg.R2Endpoint)
}
