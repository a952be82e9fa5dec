package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"totpattend/internal/attendance"
	"totpattend/internal/checkin"
	"totpattend/internal/config"
	"totpattend/internal/feed"
	"totpattend/internal/httpapi"
	"totpattend/internal/httpmiddleware"
	"totpattend/internal/metrics"
	"totpattend/internal/otp"
	"totpattend/internal/queue"
	"totpattend/internal/roster"
	"totpattend/internal/store"
)

const queueKey = "attendance:checkins"

// backend is what every store implementation offers the API.
type backend interface {
	roster.Source
	attendance.Store
	Ping(ctx context.Context) error
}

func main() {
	config.LoadDotEnv()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		slog.Error("config rejected", "err", err)
		os.Exit(1)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Error("http server failed", "err", err)
		os.Exit(1)
	}
}

func runHTTP(cfg config.App, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeDB()

	health := map[string]httpapi.Pinger{"store": db}

	var rdb *store.Redis
	if cfg.QueueBackend == "redis" || cfg.LimiterBackend == "redis" {
		rdb = store.NewRedis(cfg.RedisAddr)
		if rdb == nil {
			return errors.New("REDIS_ADDR is required for redis queue or limiter")
		}
		defer rdb.Close()
		if err := rdb.Ping(ctx); err != nil {
			logger.Warn("redis not reachable", "addr", cfg.RedisAddr, "err", err)
		}
		health["redis"] = rdb
	}

	var (
		q      queue.Queue
		recent feed.Feed
	)
	if cfg.QueueBackend == "memory" {
		mq := queue.NewInMemory(256)
		mem := feed.NewMemory(cfg.FeedSize)
		msgs, err := mq.Consume(ctx)
		if err != nil {
			return fmt.Errorf("consume in-memory queue: %w", err)
		}
		go feed.Run(ctx, msgs, mem, logger)
		q, recent = mq, mem
	} else {
		q = queue.NewRedisQueue(rdb.Client, queueKey)
		recent = feed.NewRedisFeed(rdb.Client, "", cfg.FeedSize)
	}

	var limiter httpmiddleware.Limiter
	if cfg.LimiterBackend == "redis" {
		limiter = httpmiddleware.NewRedisLimiter(rdb.Client, cfg.RateLimitPerMin)
	} else {
		tb := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin)
		go sweepLimiter(ctx, tb, logger)
		limiter = tb
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	cache := roster.NewCache(db, cfg.RosterCacheTTL)
	cache.Observe = m.ObserveRoster

	matcher := otp.Matcher{Step: cfg.TOTPStep, Drift: cfg.TOTPDrift, Digits: cfg.TOTPDigits}
	if matcher.Drift > 1 {
		logger.Warn("TOTP drift above one step widens the accepted window", "drift", matcher.Drift)
	}

	rec := attendance.NewRecorder(db)
	svc := checkin.NewService(cache, rec, matcher,
		checkin.WithEvents(q),
		checkin.WithMetrics(m),
		checkin.WithLogger(logger),
		checkin.WithTimeout(cfg.ValidateTimeout),
	)

	h := httpapi.NewHandler(svc, rec, recent, cache, health, logger)
	r := httpapi.NewRouter(h, httpapi.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		Limiter:        limiter,
		JWTSigningKey:  cfg.JWTSigningKey,
		JWTIssuer:      cfg.JWTIssuer,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"port", cfg.HTTPPort,
			"store", cfg.StoreBackend,
			"queue", cfg.QueueBackend,
			"limiter", cfg.LimiterBackend,
			"roster_cache_ttl", cfg.RosterCacheTTL,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", "err", err)
	}
	logger.Info("server exited")
	return nil
}

// openBackend opens the configured store, migrating and seeding SQL stores.
func openBackend(ctx context.Context, cfg config.App, logger *slog.Logger) (backend, func(), error) {
	var seed []roster.Entry
	if cfg.RosterSeedFile != "" {
		entries, err := attendance.LoadRosterFile(cfg.RosterSeedFile)
		if err != nil {
			return nil, nil, err
		}
		seed = entries
	}

	if cfg.StoreBackend == "memory" {
		logger.Info("using in-memory store", "roster_size", len(seed))
		return attendance.NewMemoryStore(seed), func() {}, nil
	}

	var (
		db  *store.DB
		err error
	)
	switch cfg.StoreBackend {
	case "sqlite":
		db, err = store.NewSQLite(ctx, cfg.SQLitePath)
	case "mysql":
		db, err = store.NewMySQL(ctx, cfg.MySQLDSN)
	default:
		db, err = store.NewDB(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = db.Close() }

	if err := store.Migrate(ctx, db); err != nil {
		closeDB()
		return nil, nil, err
	}

	repo := attendance.NewRepository(db)
	for _, e := range seed {
		if err := repo.UpsertUser(ctx, e); err != nil {
			closeDB()
			return nil, nil, fmt.Errorf("seed user %s: %w", e.ID, err)
		}
	}
	if len(seed) > 0 {
		logger.Info("roster seeded", "users", len(seed))
	}
	return repo, closeDB, nil
}

func sweepLimiter(ctx context.Context, tb *httpmiddleware.TokenBucket, logger *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := tb.Sweep(10 * time.Minute); n > 0 {
				logger.Debug("rate limiter swept", "clients", n)
			}
		}
	}
}
