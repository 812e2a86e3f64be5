package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/use-agent/offerscout/api/handler"
	"github.com/use-agent/offerscout/api/middleware"
	"github.com/use-agent/offerscout/config"
	"github.com/use-agent/offerscout/orchestrator"
	"github.com/use-agent/offerscout/relay"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth.
// tabs may be nil when no browser engine is running.
func NewRouter(cfg *config.Config, orch *orchestrator.Orchestrator, bus *relay.Bus, tabs handler.TabStats, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(orch, tabs, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/search", handler.Search(orch))
	protected.GET("/sources", handler.Sources(orch))
	protected.GET("/events", handler.Events(bus))

	return r
}
