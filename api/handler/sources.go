package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/offerscout/models"
	"github.com/use-agent/offerscout/orchestrator"
)

// Sources returns a handler for GET /api/v1/sources.
func Sources(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		srcs := orch.Sources()
		out := make([]models.SourceInfo, 0, len(srcs))
		for i := range srcs {
			s := &srcs[i]
			out = append(out, models.SourceInfo{
				ID:      s.ID,
				Label:   s.Label,
				Engine:  s.EngineName(),
				TwoStep: s.TwoStep(),
				BaseURL: s.BaseURL,
			})
		}
		c.JSON(http.StatusOK, gin.H{"sources": out})
	}
}
