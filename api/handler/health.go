package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/starlitlog/dr-web-engine/driver/rod"
	"github.com/starlitlog/dr-web-engine/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports browser pool utilization and degrades status when more than 80%
// of pool pages are checked out. A nil browser (an evaluator running in
// static-only mode) is always healthy, since it never acquires pages.
func Health(browser *rod.Browser, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats models.PoolStats
		status := "healthy"

		if browser != nil {
			s := browser.Stats()
			stats = models.PoolStats{MaxPages: s.MaxPages, ActivePages: s.ActivePages}
			if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
				status = "degraded"
			}
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}
