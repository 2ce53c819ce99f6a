package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"supplydesk/backend/internal/cache"
	"supplydesk/backend/internal/config"
	"supplydesk/backend/internal/domain"
	"supplydesk/backend/internal/events"
	"supplydesk/backend/internal/feed"
	"supplydesk/backend/internal/httpapi"
	"supplydesk/backend/internal/logger"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the live feed and the HTTP API",
		Long: `serve subscribes to the invoice and inventory collections, recomputes the
pivot grid, KPI rollup and billing periods on every change, and serves them
over HTTP. Views are cached in Redis when REDIS_ADDR is set; events go to
RabbitMQ when AMQP_URL is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := validateSecurityConfig(cfg); err != nil {
				return fmt.Errorf("invalid security configuration: %w", err)
			}
			return serve(cfg)
		},
	}
}

func serve(cfg config.Config) error {
	log := logger.WithComponent("serve")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	a, err := openApp(startCtx, cfg)
	cancel()
	if err != nil {
		return err
	}
	defer a.Close()

	views := openViewCache(ctx, cfg)
	if closer, ok := views.(interface{ Close() error }); ok {
		a.closers = append(a.closers, closer.Close)
	}
	publisher, closePublisher := openPublisher(cfg)
	defer closePublisher()

	svc, err := a.serviceWith(views, publisher)
	if err != nil {
		return err
	}
	runner := feed.NewRunner(a.repo, a.catalogs, feed.Options{
		Policy:       a.policy,
		Views:        views,
		ViewTTL:      cfg.ViewCacheTTL(),
		Publisher:    publisher,
		RefreshEvery: cfg.ReferenceRefreshInterval(),
	})

	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL())
	api := httpapi.New(svc, auth, cfg.AllowedOrigin, cfg.DataBackend)
	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		log.Info().Str("addr", cfg.Address()).Msg("back-office API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown error")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("server stopped")
	return err
}

func openViewCache(ctx context.Context, cfg config.Config) cache.ViewCache {
	log := logger.WithComponent("bootstrap")
	if cfg.RedisAddr == "" {
		log.Info().Msg("view cache: noop")
		return cache.NoopViewCache{}
	}
	redisCache := cache.NewRedisViewCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := redisCache.Ping(pingCtx); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, using noop view cache")
		_ = redisCache.Close()
		return cache.NoopViewCache{}
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("view cache: redis")
	return redisCache
}

func openPublisher(cfg config.Config) (events.Publisher, func()) {
	log := logger.WithComponent("bootstrap")
	if cfg.AMQPURL == "" {
		return events.NoopPublisher{}, func() {}
	}
	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsQueue)
	if err != nil {
		log.Warn().Err(err).Msg("amqp unavailable, events are dropped")
		return events.NoopPublisher{}, func() {}
	}
	log.Info().Str("queue", cfg.EventsQueue).Msg("events: amqp")
	return publisher, func() {
		if err := publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("close amqp publisher")
		}
	}
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name an origin, not *")
	}
	return nil
}

func actorFor(subject string) domain.Actor {
	return domain.Actor{Subject: subject, Role: domain.RoleAdmin}
}
