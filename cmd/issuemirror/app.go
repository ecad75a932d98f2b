package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/telhawk-systems/issuemirror/internal/config"
	"github.com/telhawk-systems/issuemirror/internal/dlq"
	"github.com/telhawk-systems/issuemirror/internal/lock"
	"github.com/telhawk-systems/issuemirror/internal/logging"
	"github.com/telhawk-systems/issuemirror/internal/notion"
	"github.com/telhawk-systems/issuemirror/internal/ratelimit"
	"github.com/telhawk-systems/issuemirror/internal/reconciler"
	"github.com/telhawk-systems/issuemirror/internal/service"
)

// app holds the wired components shared by serve and replay.
type app struct {
	cfg         *config.Config
	logger      *logging.Logger
	service     *service.MirrorService
	rateLimiter ratelimit.RateLimiter
	closers     []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.ParseLevel(cfg.Logging.Level), cfg.Logging.Format).
		With(logging.Service("issuemirror"))
	logging.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger, rateLimiter: ratelimit.NoOpRateLimiter{}}

	for _, w := range cfg.Warnings() {
		logger.Warn("Configuration warning", slog.String("detail", w))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = lock.ConnectRedis(ctx, cfg.Redis.URL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
		logger.Info("Connected to Redis", slog.String("url", cfg.Redis.URL))
	}

	var locker lock.Locker
	switch cfg.Reconcile.LockBackend {
	case "redis":
		locker = lock.NewRedisLocker(redisClient, cfg.Reconcile.LockTTL, cfg.Reconcile.LockWait)
	default:
		locker = lock.NewKeyedMutex()
	}
	logger.Info("Per-issue locking configured", slog.String("backend", cfg.Reconcile.LockBackend))

	if cfg.RateLimit.Enabled {
		a.rateLimiter = ratelimit.NewRedisRateLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		logger.Info("Rate limiting enabled",
			slog.Int("requests", cfg.RateLimit.Requests),
			slog.Duration("window", cfg.RateLimit.Window),
		)
	}

	var deadLetters dlq.Writer = dlq.NoOp{}
	if cfg.DLQ.Enabled {
		pub, err := dlq.NewJetStreamPublisher(ctx, cfg.DLQ.NatsURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("initialize dead letter queue: %w", err)
		}
		a.closers = append(a.closers, func() { _ = pub.Close() })
		deadLetters = dlq.NewQueue(pub)
		logger.Info("Dead letter queue enabled", slog.String("nats_url", cfg.DLQ.NatsURL))
	}

	client := notion.NewClient(notion.Config{
		BaseURL:    cfg.Notion.BaseURL,
		APIToken:   cfg.Notion.APIToken,
		DatabaseID: cfg.Notion.DatabaseID,
		Version:    cfg.Notion.Version,
		Timeout:    cfg.Notion.Timeout,
	})

	a.service = service.NewMirrorService(reconciler.New(client, locker, logger), deadLetters, logger)
	return a, nil
}
