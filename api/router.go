package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/starlitlog/dr-web-engine/api/handler"
	"github.com/starlitlog/dr-web-engine/api/middleware"
	"github.com/starlitlog/dr-web-engine/cache"
	"github.com/starlitlog/dr-web-engine/config"
	"github.com/starlitlog/dr-web-engine/driver/rod"
	"github.com/starlitlog/dr-web-engine/evaluator"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(ev *evaluator.Evaluator, browser *rod.Browser, cfg *config.Config, cc *cache.Cache, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health — no auth required.
	v1.GET("/health", handler.Health(browser, startTime))

	// Protected group — auth + rate limit.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/query", handler.Query(ev, cc, cfg.Webhook.Secret))
	protected.POST("/query/batch", handler.Batch(ev, cc))

	return r
}
