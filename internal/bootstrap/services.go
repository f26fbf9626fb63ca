package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/faqdesk/faqdesk/config"
	"github.com/faqdesk/faqdesk/internal/adapters/guard"
	"github.com/faqdesk/faqdesk/internal/adapters/upstream"
	"github.com/faqdesk/faqdesk/internal/export"
	httpx "github.com/faqdesk/faqdesk/internal/http"
	"github.com/faqdesk/faqdesk/internal/ports"
	"github.com/faqdesk/faqdesk/internal/service"
)

// ServiceContainer holds the wired application services.
type ServiceContainer struct {
	Store    *service.MessageStore
	Accounts ports.AccountService
	Oracle   ports.SessionOracle
	Exporter *export.Service
	Renderer *httpx.TemplateRenderer

	redisClient redis.UniversalClient
}

// ServiceDeps groups the inputs for NewServices.
type ServiceDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger
}

// NewServices wires adapters and services from configuration.
func NewServices(ctx context.Context, deps *ServiceDeps) (*ServiceContainer, error) {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := upstream.NewClient(upstream.Config{
		BaseURL:           cfg.Upstream.BaseURL,
		SessionCookieName: cfg.Upstream.CookieName,
		Timeout:           cfg.Upstream.Timeout,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("upstream client: %w", err)
	}

	mutationGuard, redisClient, err := newGuard(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	renderer, err := httpx.NewTemplateRenderer(httpx.TemplateRendererConfig{Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("template renderer: %w", err)
	}

	store := service.NewMessageStore(service.MessageStoreOptions{
		Messages: client,
		Guard:    mutationGuard,
		Logger:   logger,
	})

	return &ServiceContainer{
		Store:       store,
		Accounts:    client,
		Oracle:      client,
		Exporter:    export.NewService(),
		Renderer:    renderer,
		redisClient: redisClient,
	}, nil
}

// Close releases infrastructure owned by the container.
func (s *ServiceContainer) Close() error {
	if s.redisClient != nil {
		return s.redisClient.Close()
	}
	return nil
}

// newGuard picks the mutation guard backend. Redis mode verifies
// connectivity at startup so a misconfigured address fails fast.
func newGuard(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (ports.MutationGuard, redis.UniversalClient, error) {
	if cfg.Guard.Mode != config.GuardModeRedis {
		return guard.NewMemoryGuardWithTTL(cfg.Guard.PendingTTL), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Guard.RedisAddr,
		Password: cfg.Guard.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.InfoContext(ctx, "using redis mutation guard", "addr", cfg.Guard.RedisAddr)
	return guard.NewRedisGuardWithTTL(client, cfg.Guard.PendingTTL), client, nil
}
