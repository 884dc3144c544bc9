package main

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mindcare/platform/libs/config"
	"github.com/mindcare/platform/libs/db"
	"github.com/mindcare/platform/libs/httpx"
	"github.com/mindcare/platform/libs/kafkax"
	otelx "github.com/mindcare/platform/libs/otel"
	"github.com/mindcare/platform/libs/runtime"
	"github.com/mindcare/platform/services/availability-service/internal/availability"
	"github.com/mindcare/platform/services/availability-service/internal/cache"
	"github.com/mindcare/platform/services/availability-service/internal/handlers"
	"github.com/mindcare/platform/services/availability-service/internal/outbox"
	"github.com/mindcare/platform/services/availability-service/internal/storage"
	"github.com/mindcare/platform/services/availability-service/migrations"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("load .env failed", "err", err)
		os.Exit(1)
	}
	service := config.String("SERVICE_NAME", "availability-service")
	logger := runtime.NewLogger(service, config.String("LOG_LEVEL", "info"))

	if err := run(logger, service); err != nil {
		logger.Error("availability service stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, service string) error {
	port, err := config.Port("PORT", "8084")
	if err != nil {
		return err
	}

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := runtime.ShutdownContext(5 * time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		return err
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(config.Int("DB_MAX_CONNS", 10))})
	if err != nil {
		return err
	}
	defer pool.Close()

	if config.Bool("MIGRATE_ON_START", true) {
		if err := db.Migrate(ctx, pool, migrations.FS, ".", logger); err != nil {
			return err
		}
	}

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}

	var (
		rdb       *redis.Client
		slotCache *cache.SlotCache
	)
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		slotCache = cache.NewSlotCache(rdb, config.Duration("SLOT_CACHE_TTL", 5*time.Minute))
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: cache.ReadyCheck(rdb)})
	} else {
		logger.Warn("slot cache disabled (REDIS_ADDR not set)")
	}

	outboxRepo := outbox.NewRepository()
	brokers := config.String("KAFKA_BROKERS", "")
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	if publisher.Enabled() {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	go publisher.Run(ctx)

	repo := storage.NewRepository(pool, outboxRepo)
	var svcCache availability.SlotCache
	if slotCache != nil {
		svcCache = slotCache
	}
	svc := availability.New(repo, svcCache, logger)

	mux := runtime.NewBaseMuxWithReady(checks...)
	handlers.New(svc, logger).Register(mux)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           otelhttp.NewHandler(middleware(logger, rdb, mux), "availability"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "err", err)
			stop()
		}
	}()

	if err := startGrpcServer(ctx, logger); err != nil {
		logger.Error("grpc server failed to start", "err", err)
	}

	<-ctx.Done()
	shutdownCtx, cancel := runtime.ShutdownContext(10 * time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
	return nil
}

func middleware(logger *slog.Logger, rdb *redis.Client, next http.Handler) http.Handler {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	key := httpx.HeaderOrClientIP(handlers.TherapistHeader)

	var rateLimit httpx.Middleware
	if rdb != nil {
		rateLimit = httpx.NewRedisRateLimiter(rdb, limit, time.Minute, "availability:rl", key).
			Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	} else {
		rateLimit = httpx.NewRateLimiter(limit, time.Minute, key).Middleware()
	}

	return httpx.Chain(next,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins: config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", handlers.TherapistHeader, httpx.RequestIDHeader},
			ExposedHeaders: []string{httpx.RequestIDHeader},
			MaxAge:         10 * time.Minute,
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger, httpx.HeaderField("therapist_id", handlers.TherapistHeader)),
		httpx.WithRecover(logger),
		rateLimit,
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT_SECONDS", 15*time.Second)),
	)
}
