package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"channel_fetcher/internal/config"
	"channel_fetcher/internal/domain"
	"channel_fetcher/internal/events"
	"channel_fetcher/internal/jobs"
	"channel_fetcher/internal/platform"
	"channel_fetcher/internal/ratelimit"
	"channel_fetcher/internal/storage/postgres"
	"channel_fetcher/internal/sweep"
	"channel_fetcher/internal/translate"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Setup logger
	logger := setupLogger("info")

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to ping redis", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to redis")

	rabbitMQ, err := events.NewRabbitMQ(events.Config{
		URL:      cfg.RabbitMQ.URL,
		Exchange: cfg.RabbitMQ.Exchange,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	// Initialize stores
	itemStore := postgres.NewItemStore(db)
	channelStore := postgres.NewChannelStore(db)
	jobStore := postgres.NewJobStore(db)
	translationStore := postgres.NewTranslationStore(db)
	txManager := postgres.NewTransactionManager(db)

	// Platform client and shared rate limiter
	client := platform.NewGateway(platform.GatewayConfig{
		BaseURL:        cfg.Platform.BaseURL,
		Timeout:        cfg.Platform.Timeout,
		MaxAttempts:    cfg.Platform.MaxAttempts,
		InitialBackoff: cfg.Platform.InitialBackoff,
		MaxBackoff:     cfg.Platform.MaxBackoff,
	}, logger)

	limiter := ratelimit.NewLimiter(rdb, ratelimit.Config{
		Bucket:     cfg.RateLimit.Bucket,
		MaxTokens:  cfg.RateLimit.MaxTokens,
		RefillRate: cfg.RateLimit.RefillRate,
	}, logger)

	// Fetch job queue and worker pool
	queue := jobs.NewQueue(jobs.Config{
		PoolSize:       cfg.Workers.PoolSize,
		QueueDepth:     cfg.Workers.QueueDepth,
		MaxConcurrent:  int64(cfg.Workers.MaxConcurrent),
		LockCapacity:   cfg.Workers.LockCapacity,
		BatchSize:      cfg.Platform.BatchSize,
		AcquireMaxWait: cfg.RateLimit.MaxWait,
		QuotaBuffer:    cfg.Workers.QuotaBuffer,
		MaxInfoRetries: cfg.Workers.MaxInfoRetries,
	}, jobStore, itemStore, channelStore, client, limiter, rabbitMQ, txManager, logger)

	joinQueue := jobs.NewJoinQueue(rdb, client, limiter, logger)

	// Translation pipeline
	pipeline := translate.NewPipeline(translate.Config{
		PrimaryModel:    cfg.Translate.PrimaryModel,
		StandardModel:   cfg.Translate.StandardModel,
		MaxBatchItems:   cfg.Translate.MaxBatchItems,
		MaxBatchChars:   cfg.Translate.MaxBatchChars,
		MaxConcurrent:   cfg.Translate.MaxConcurrent,
		RequestsPerSec:  cfg.Translate.RequestsPerSec,
		MemoryCacheSize: cfg.Translate.MemoryCacheSize,
	},
		translate.NewHTTPProvider(translate.ProviderConfig{
			Name:    cfg.Translate.Provider.Name,
			BaseURL: cfg.Translate.Provider.BaseURL,
			APIKey:  cfg.Translate.Provider.APIKey,
			Timeout: cfg.Translate.Provider.Timeout,
		}),
		translate.NewHTTPProvider(translate.ProviderConfig{
			Name:    cfg.Translate.Fallback.Name,
			BaseURL: cfg.Translate.Fallback.BaseURL,
			APIKey:  cfg.Translate.Fallback.APIKey,
			Timeout: cfg.Translate.Fallback.Timeout,
		}),
		translate.NewRedisCache(rdb, cfg.Translate.CacheBaseTTL, cfg.Translate.CacheMaxTTL),
		translationStore,
		logger,
	)

	sweeper := sweep.NewSweeper(sweep.Config{
		Interval:       cfg.Sweep.Interval,
		BatchLimit:     cfg.Sweep.BatchLimit,
		TargetLang:     cfg.Translate.TargetLang,
		JoinDailyLimit: cfg.RateLimit.JoinDailyLimit,
	}, itemStore, pipeline, joinQueue, rabbitMQ, logger)

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("starting channel ingester",
		"pool_size", cfg.Workers.PoolSize,
		"tracked_channels", len(cfg.Channels),
		"sweep_interval", cfg.Sweep.Interval,
	)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := queue.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("job queue error", "error", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sweeper.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("sweeper error", "error", err)
		}
	}()

	enqueueTracked(ctx, cfg, client, channelStore, queue, logger)

	wg.Wait()
}

// enqueueTracked resolves the configured channels and enqueues a fetch job
// for each, so the ingester keeps them current without an external caller.
func enqueueTracked(
	ctx context.Context,
	cfg *config.Config,
	client *platform.Gateway,
	channelStore *postgres.ChannelStore,
	queue *jobs.Queue,
	logger *slog.Logger,
) {
	for _, entry := range cfg.Channels {
		ch, err := channelStore.GetByUsername(ctx, entry.Username)
		if err != nil {
			logger.Error("failed to look up tracked channel", "username", entry.Username, "error", err)
			continue
		}

		if ch == nil {
			info, err := client.ResolveChannel(ctx, entry.Username)
			if err != nil {
				logger.Error("failed to resolve tracked channel", "username", entry.Username, "error", err)
				continue
			}
			newCh := channelFromInfo(entry.Username, info)
			id, err := channelStore.Upsert(ctx, newCh)
			if err != nil {
				logger.Error("failed to store tracked channel", "username", entry.Username, "error", err)
				continue
			}
			newCh.ID = id
			ch = newCh
		}

		if _, err := queue.Enqueue(ctx, ch.ID, entry.LookbackDays); err != nil {
			logger.Error("failed to enqueue tracked channel", "username", entry.Username, "error", err)
		}
	}
}

func channelFromInfo(username string, info *platform.ChannelInfo) *domain.Channel {
	ch := &domain.Channel{
		Username:        username,
		ExternalID:      info.ExternalID,
		Title:           info.Title,
		SubscriberCount: info.SubscriberCount,
	}
	if info.Description != "" {
		desc := info.Description
		ch.Description = &desc
	}
	return ch
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
