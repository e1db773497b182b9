package main

import (
	"context"
	"log"

	"github.com/robertarktes/eventhub/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/eventhub/internal/adapters/mongo"
	"github.com/robertarktes/eventhub/internal/config"
	"github.com/robertarktes/eventhub/internal/expiry"
	"github.com/robertarktes/eventhub/internal/lifecycle"
	"github.com/robertarktes/eventhub/internal/observability"
	"github.com/robertarktes/eventhub/internal/platform"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := platform.SignalContext()
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "eventhub-deadline-worker")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

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

	svc := lifecycle.NewService(repo,
		mongoadapter.NewCatalogRepository(mongoDB, logger),
		mongoadapter.NewProofStore(mongoDB),
		mongoadapter.NewAuditLogger(mongoDB, logger),
		logger,
		lifecycle.Options{
			PaymentWindow:   cfg.PaymentWindow,
			ReviewWindow:    cfg.ReviewWindow,
			EnforceDeadline: cfg.EnforceDeadline,
			MaxProofBytes:   cfg.MaxProofBytes,
		})

	worker := expiry.NewWorker(svc, logger, cfg.EnforceDeadline)
	logger.WithFields(map[string]interface{}{
		"interval": cfg.DeadlineScanPeriod.String(),
		"enforce":  cfg.EnforceDeadline,
	}).Info("deadline worker started")

	worker.Run(ctx, cfg.DeadlineScanPeriod)
	logger.Info("Shutdown deadline worker")
}
