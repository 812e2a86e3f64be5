package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/offerscout/models"
	"github.com/use-agent/offerscout/orchestrator"
)

// Search returns a handler for POST /api/v1/search.
//
// Flow:
//  1. Bind and validate {action:"searchProduct", query}.
//  2. Resolve the optional source subset.
//  3. Orchestrator.HandleQuery drives every source sequentially.
//  4. 200 with the aggregate, or 500 when a fault escaped the drivers.
func Search(orch *orchestrator.Orchestrator) gin.HandlerFunc {
	return func(c *gin.Context) {
		// ── 1. Parse request ────────────────────────────────────────
		var req models.SearchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
			return
		}
		req.Normalize()
		if !req.Valid() {
			respondError(c, http.StatusBadRequest, models.ErrCodeInvalidInput, "query must not be blank")
			return
		}

		// ── 2. Sources ──────────────────────────────────────────────
		srcs, err := orch.Select(req.Sources)
		if err != nil {
			respondError(c, http.StatusBadRequest, models.CodeOf(err), err.Error())
			return
		}

		// ── 3. Drive ────────────────────────────────────────────────
		resp := orch.HandleQuery(c.Request.Context(), req.Query, srcs)
		if !resp.Success {
			c.JSON(http.StatusInternalServerError, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

// respondError writes a structured JSON error response.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.SearchResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
