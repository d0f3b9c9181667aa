package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"community-atlas/internal/analyzer"
	"community-atlas/internal/config"
	"community-atlas/internal/db"
	"community-atlas/internal/redis"
)

type Server struct {
	log      *slog.Logger
	db       *db.DB
	redis    *redis.Client
	analyzer *analyzer.Analyzer
	cfg      config.Config
	router   *gin.Engine
	limiter  *LimiterStore
	running  atomic.Bool
}

// NewServer builds the HTTP surface. The analyzer is optional; without one
// the admin run endpoint answers 503 and everything else serves the last
// stored export.
func NewServer(log *slog.Logger, dbConn *db.DB, redisClient *redis.Client, an *analyzer.Analyzer, cfg config.Config) *Server {
	s := &Server{
		log:      log,
		db:       dbConn,
		redis:    redisClient,
		analyzer: an,
		cfg:      cfg,
		router:   gin.New(),
		limiter:  NewLimiterStore(1, 60, 10*time.Minute), // 60 req burst, 1 req/s refill per IP
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/export", s.getExport)
		v1.GET("/graph", s.getGraph)
		v1.GET("/flows", s.getFlows)
		v1.GET("/bridges", s.getBridges)
		v1.GET("/health", s.health)

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.POST("/run", s.triggerRun)
		}
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}
