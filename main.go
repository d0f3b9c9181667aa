package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"community-atlas/internal/analyzer"
	"community-atlas/internal/api"
	"community-atlas/internal/config"
	"community-atlas/internal/db"
	"community-atlas/internal/logging"
	"community-atlas/internal/pipeline"
	"community-atlas/internal/redis"
	"community-atlas/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_service", "service", "community-atlas", "http_addr", cfg.HTTPAddr)

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
	logger.Info("analyzer_started", "interval_minutes", cfg.AnalysisInterval)

	srv := api.NewServer(logger, dbConn, redisClient, an, cfg)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_server_ready", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	an.Stop()
	logger.Info("analyzer_stopped")

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if err := redisClient.Close(); err != nil {
		logger.Warn("redis_close_error", "error", err)
	} else {
		logger.Info("redis_closed")
	}

	dbConn.Close()
	logger.Info("db_closed")

	logger.Info("service_stopped")
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
