package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/offerscout/models"
	"github.com/use-agent/offerscout/orchestrator"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// TabStats reports open browser tabs. The rod engine implements it.
type TabStats interface {
	ActiveTabs() int
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when a configured source needs the browser engine but no
// browser is running.
func Health(orch *orchestrator.Orchestrator, tabs TabStats, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		srcs := orch.Sources()

		var stats models.PoolStats
		if tabs != nil {
			stats.Browser = true
			stats.ActiveTabs = tabs.ActiveTabs()
		}

		status := "healthy"
		if len(srcs) == 0 {
			status = "degraded"
		}
		for i := range srcs {
			if srcs[i].EngineName() == models.EngineBrowser && !stats.Browser {
				status = "degraded"
				break
			}
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			Sources:   len(srcs),
			PoolStats: stats,
			Version:   Version,
		})
	}
}
