package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/eventhub/internal/adapters/crdb"
	"github.com/robertarktes/eventhub/internal/observability"
)

type Store interface {
	ProcessOutbox(ctx context.Context, limit, maxAttempts int, publish func(crdb.OutboxRecord) error) (int, error)
	OutboxLag(ctx context.Context) (time.Duration, error)
}

type Broker interface {
	Publish(ctx context.Context, key string, msg amqp.Publishing) error
}

type Options struct {
	Interval    time.Duration
	BatchSize   int
	MaxAttempts int
}

type Publisher struct {
	repo      Store
	rabbitPub Broker
	logger    observability.Logger
	opts      Options
}

func NewPublisher(repo Store, rabbitPub Broker, logger observability.Logger, opts Options) *Publisher {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 10
	}
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger, opts: opts}
}

func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain full batches before waiting for the next tick.
			for {
				n, err := p.Tick(ctx)
				if err != nil {
					p.logger.WithError(err).Error("outbox batch failed")
					break
				}
				if n < p.opts.BatchSize || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// Tick publishes one batch and refreshes the lag gauge.
func (p *Publisher) Tick(ctx context.Context) (int, error) {
	n, err := p.repo.ProcessOutbox(ctx, p.opts.BatchSize, p.opts.MaxAttempts, func(rec crdb.OutboxRecord) error {
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Type:        rec.EventType,
			Timestamp:   rec.CreatedAt,
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			observability.RabbitPublishRetries.Inc()
			p.logger.WithError(err).WithFields(map[string]interface{}{
				"outbox_id": rec.ID,
				"event":     rec.EventType,
				"attempts":  rec.Attempts + 1,
			}).Warn("outbox publish failed")
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if lag, err := p.repo.OutboxLag(ctx); err == nil {
		observability.OutboxLag.Set(lag.Seconds())
	} else {
		p.logger.WithError(err).Warn("failed to read outbox lag")
	}
	if n > 0 {
		p.logger.WithField("published", n).Debug("outbox batch published")
	}
	return n, nil
}
