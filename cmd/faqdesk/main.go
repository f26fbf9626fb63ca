package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/faqdesk/faqdesk/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting faqdesk",
		"addr", cfg.HTTP.Addr,
		"upstream", cfg.Upstream.BaseURL,
		"guard_mode", cfg.Guard.Mode,
		"dev", cfg.IsDev)

	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config: &cfg,
		Logger: logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := services.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close services failed", "error", cerr)
		}
	}()

	server := bootstrap.StartHTTPServer(&bootstrap.HTTPServerConfig{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})

	return bootstrap.WaitForShutdown(ctx, server, logger)
}
