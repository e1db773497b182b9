package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/robertarktes/eventhub/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/eventhub/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/eventhub/internal/adapters/redis"
	"github.com/robertarktes/eventhub/internal/auth"
	"github.com/robertarktes/eventhub/internal/catalog"
	"github.com/robertarktes/eventhub/internal/config"
	httphandler "github.com/robertarktes/eventhub/internal/http"
	"github.com/robertarktes/eventhub/internal/idempotency"
	"github.com/robertarktes/eventhub/internal/lifecycle"
	"github.com/robertarktes/eventhub/internal/observability"
	"github.com/robertarktes/eventhub/internal/platform"
	"github.com/robertarktes/eventhub/internal/rateLimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is not set")
	}

	ctx, stop := platform.SignalContext()
	defer stop()

	shutdown, err := observability.SetupOTel(ctx, cfg, "eventhub-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger(cfg.LogLevel)

	pool, err := platform.OpenCRDB(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to crdb: %v", err)
	}
	defer pool.Close()
	repo := crdb.NewRepository(pool)

	mongoClient, mongoDB, err := platform.OpenMongo(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	events := mongoadapter.NewCatalogRepository(mongoDB, logger)
	if err := events.EnsureIndexes(ctx); err != nil {
		log.Fatalf("failed to create mongo indexes: %v", err)
	}
	proofs := mongoadapter.NewProofStore(mongoDB)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient, err := platform.OpenRedis(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()
	cache := redisadapter.NewCache(redisClient)
	idemp := idempotency.NewIdempotency(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(cache)

	txs := lifecycle.NewService(repo, events, proofs, audit, logger, lifecycle.Options{
		PaymentWindow:   cfg.PaymentWindow,
		ReviewWindow:    cfg.ReviewWindow,
		EnforceDeadline: cfg.EnforceDeadline,
		MaxProofBytes:   cfg.MaxProofBytes,
	})
	cat := catalog.NewService(events, repo, logger)

	handlers := httphandler.NewHandlers(txs, cat, map[string]httphandler.Pinger{
		"crdb":  repo,
		"mongo": httphandler.PingFunc(func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) }),
		"redis": cache,
	}, logger, cfg.MaxProofBytes)

	r := httphandler.SetupRouter(handlers, httphandler.RouterDeps{
		Tokens:  auth.NewTokens(cfg.JWTSecret),
		Limiter: rl,
		Limits: httphandler.RateLimits{
			PerIP:   cfg.RateLimitPerIP,
			PerUser: cfg.RateLimitPerUser,
			Window:  cfg.RateLimitWindow,
		},
		Idempotency: idemp,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithField("addr", cfg.HTTPAddr).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown Server ...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
