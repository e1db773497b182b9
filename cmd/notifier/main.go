package main

import (
	"context"
	"log"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/eventhub/internal/adapters/crdb"
	mongoadapter "github.com/robertarktes/eventhub/internal/adapters/mongo"
	"github.com/robertarktes/eventhub/internal/adapters/rabbit"
	"github.com/robertarktes/eventhub/internal/config"
	"github.com/robertarktes/eventhub/internal/notify"
	"github.com/robertarktes/eventhub/internal/observability"
	"github.com/robertarktes/eventhub/internal/platform"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if cfg.TicketSigningKey == "" {
		log.Fatal("TICKET_SIGNING_KEY is not set")
	}

	ctx, stop := platform.SignalContext()
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "eventhub-notifier")
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

	conn, err := platform.DialRabbit(cfg)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer conn.Close()
	consumer, err := rabbit.NewConsumer(conn, cfg.NotifyQueue, notify.Bindings(), 10)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	var mailer notify.Mailer = notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
		FromName: cfg.MailFromName,
	})
	if cfg.MailDryRun {
		mailer = notify.NewLogMailer(logger)
	}

	dispatcher := notify.NewDispatcher(repo,
		mongoadapter.NewCatalogRepository(mongoDB, logger),
		mailer,
		notify.NewTicketSigner(cfg.TicketSigningKey),
		mongoadapter.NewAuditLogger(mongoDB, logger),
		logger)

	deliveries, err := consumer.Consume(ctx)
	if err != nil {
		log.Fatalf("failed to start consuming: %v", err)
	}
	logger.WithField("queue", cfg.NotifyQueue).Info("notifier started")

	err = notify.NewConsumer(dispatcher, logger).Run(ctx, deliveries)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Error("notifier stopped")
	}
	logger.Info("Shutdown notifier")
}
