package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"totpattend/internal/config"
	"totpattend/internal/feed"
	"totpattend/internal/queue"
	"totpattend/internal/store"
)

const queueKey = "attendance:checkins"

// Worker consumes attendance events and maintains the per-meeting recent feed.
func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if cfg.QueueBackend != "redis" {
		logger.Error("worker needs QUEUE_BACKEND=redis; the memory queue is drained inside the api process")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb := store.NewRedis(cfg.RedisAddr)
	if rdb == nil {
		logger.Error("REDIS_ADDR is required")
		os.Exit(1)
	}
	defer rdb.Close()
	if err := rdb.Ping(ctx); err != nil {
		logger.Warn("redis not reachable, consumer will keep retrying", "addr", cfg.RedisAddr, "err", err)
	}

	q := queue.NewRedisQueue(rdb.Client, queueKey)
	recent := feed.NewRedisFeed(rdb.Client, "", cfg.FeedSize)

	messages, err := q.Consume(ctx)
	if err != nil {
		logger.Error("queue consume init failed", "err", err)
		os.Exit(1)
	}

	logger.Info("worker started, waiting for messages", "queue", queueKey, "feed_size", cfg.FeedSize)
	n := feed.Run(ctx, messages, recent, logger)
	logger.Info("worker stopped", "events", n)
}
