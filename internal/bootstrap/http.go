package bootstrap

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/faqdesk/faqdesk/config"
	httpx "github.com/faqdesk/faqdesk/internal/http"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services *ServiceContainer
	Logger   *slog.Logger
}

// StartHTTPServer creates and starts the HTTP server. Returns the server
// instance for graceful shutdown.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := httpx.NewRouter(httpx.RouterServices{
		Store:      cfg.Services.Store,
		Accounts:   cfg.Services.Accounts,
		Oracle:     cfg.Services.Oracle,
		Exporter:   cfg.Services.Exporter,
		Renderer:   cfg.Services.Renderer,
		CookieName: cfg.Config.Upstream.CookieName,
		Logger:     logger,
	})

	addr := cfg.Config.HTTP.Addr
	if addr == "" {
		addr = ":8080"
	}

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
		}
	}()

	return server
}

// WaitForShutdown blocks until SIGINT/SIGTERM, then drains the server.
func WaitForShutdown(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.InfoContext(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
