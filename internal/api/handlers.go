package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"community-atlas/internal/models"
)

// latestExport serves the most recent export payload, redis first, Postgres
// as fallback. A DB hit refills the cache best-effort.
func (s *Server) latestExport(ctx context.Context) ([]byte, bool, error) {
	if payload, err := s.redis.LatestExport(ctx); err == nil && len(payload) > 0 {
		return payload, true, nil
	}

	payload, err := s.db.LatestExport(ctx)
	if err != nil {
		return nil, false, err
	}

	if err := s.redis.SetLatestExport(ctx, payload); err != nil {
		s.log.Warn("export_cache_refill_failed", "error", err)
	}
	return payload, false, nil
}

func (s *Server) serveExportSection(c *gin.Context, pick func(models.Export) gin.H) {
	ctx, cancel := s.ctx(c)
	defer cancel()

	payload, cached, err := s.latestExport(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": gin.H{
					"code":    "no_analysis",
					"message": "no analysis run has completed yet",
				},
			})
			return
		}
		s.log.Error("export_load_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "internal_error",
				"message": "failed to load export",
			},
		})
		return
	}

	if cached {
		c.Header("X-Cache", "HIT")
	}

	if pick == nil {
		c.Data(http.StatusOK, "application/json", payload)
		return
	}

	var export models.Export
	if err := json.Unmarshal(payload, &export); err != nil {
		s.log.Error("export_decode_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    "internal_error",
				"message": "stored export is corrupt",
			},
		})
		return
	}

	c.JSON(http.StatusOK, pick(export))
}

func (s *Server) getExport(c *gin.Context) {
	s.serveExportSection(c, nil)
}

func (s *Server) getGraph(c *gin.Context) {
	s.serveExportSection(c, func(e models.Export) gin.H {
		return gin.H{"nodes": e.Graph.Nodes, "links": e.Graph.Links}
	})
}

func (s *Server) getFlows(c *gin.Context) {
	s.serveExportSection(c, func(e models.Export) gin.H {
		return gin.H{"flows": e.Flows}
	})
}

func (s *Server) getBridges(c *gin.Context) {
	s.serveExportSection(c, func(e models.Export) gin.H {
		return gin.H{"bridge_communities": e.BridgeCommunities}
	})
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	dbStatus := "connected"
	if err := s.db.Pool.Ping(ctx); err != nil {
		dbStatus = "disconnected"
	}

	redisStatus := "connected"
	if err := s.redis.RDB().Ping(ctx).Err(); err != nil {
		redisStatus = "disconnected"
	}

	status := http.StatusOK
	overall := "healthy"
	if dbStatus != "connected" || redisStatus != "connected" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	runsToday, _ := s.redis.GetInt(ctx, "atlas:runs:"+time.Now().UTC().Format("20060102"))

	c.JSON(status, gin.H{
		"status":     overall,
		"database":   dbStatus,
		"redis":      redisStatus,
		"runs_today": runsToday,
	})
}

func (s *Server) triggerRun(c *gin.Context) {
	if s.analyzer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": gin.H{
				"code":    "analyzer_unavailable",
				"message": "analyzer is not running in this process",
			},
		})
		return
	}

	if !s.running.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{
			"error": gin.H{
				"code":    "run_in_progress",
				"message": "an analysis run is already in progress",
			},
		})
		return
	}

	go func() {
		defer s.running.Store(false)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		if runID, err := s.analyzer.RunOnce(ctx); err != nil {
			s.log.Error("admin_run_failed", "error", err)
		} else {
			s.log.Info("admin_run_completed", "run_id", runID)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
