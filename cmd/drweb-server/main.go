// Command drweb-server runs the HTTP API surface: POST /api/v1/query,
// POST /api/v1/query/batch, GET /api/v1/health, backed by a shared browser
// pool and evaluation cache.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/starlitlog/dr-web-engine/api"
	"github.com/starlitlog/dr-web-engine/cache"
	"github.com/starlitlog/dr-web-engine/config"
	"github.com/starlitlog/dr-web-engine/driver/rod"
	"github.com/starlitlog/dr-web-engine/evaluator"
)

func main() {
	cfg := config.Load()

	initLogger(cfg.Log)
	slog.Info("drweb-server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxPages", cfg.Browser.MaxPages,
	)

	browser, err := rod.NewBrowser(rod.Config{
		Headless:             cfg.Browser.Headless,
		NoSandbox:            cfg.Browser.NoSandbox,
		BrowserBin:           cfg.Browser.BrowserBin,
		Proxy:                cfg.Browser.DefaultProxy,
		MaxPages:             cfg.Browser.MaxPages,
		BlockedResourceTypes: cfg.Browser.BlockedResourceTypes,
		Stealth:              cfg.Browser.Stealth,
	})
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer browser.Close()

	ev := evaluator.New(evaluator.Options{
		Browser:   browser,
		HTTPProxy: cfg.Browser.DefaultProxy,
		Eval:      cfg.Eval,
		LLM:       cfg.LLM,
		Logger:    slog.Default(),
	})

	var cc *cache.Cache
	if cfg.Cache.Enabled {
		cc = cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
	}

	startTime := time.Now()
	router := api.NewRouter(ev, browser, cfg, cc, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// browser.Close() runs via defer — drains the page pool and kills Chrome.
	slog.Info("drweb-server stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
