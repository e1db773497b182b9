package notify

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/robertarktes/eventhub/internal/domain"
	"github.com/robertarktes/eventhub/internal/observability"
)

type Handler interface {
	Handle(ctx context.Context, ev domain.LifecycleEvent) error
	MarkFailed(ctx context.Context, ev domain.LifecycleEvent, cause error)
}

type Consumer struct {
	handler Handler
	logger  observability.Logger
	// failedOnce holds message ids this consumer requeued after a failure.
	// Only Run touches it.
	failedOnce map[string]struct{}
}

func NewConsumer(handler Handler, logger observability.Logger) *Consumer {
	return &Consumer{handler: handler, logger: logger, failedOnce: map[string]struct{}{}}
}

// Run handles deliveries until ctx is done or the channel closes. A message
// that fails is requeued once; when it fails again it is marked FAILED.
// Failures are counted per message id, so a message redelivered because a
// consumer died mid-handling still gets its retry. Messages without an id fall
// back to the broker's redelivered flag.
func (c *Consumer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	log := c.logger.WithFields(map[string]interface{}{"message_id": d.MessageId, "routing_key": d.RoutingKey})

	var ev domain.LifecycleEvent
	if err := json.Unmarshal(d.Body, &ev); err != nil {
		log.WithError(err).Error("undecodable message discarded")
		if err := d.Nack(false, false); err != nil {
			log.WithError(err).Error("nack failed")
		}
		return
	}
	if ev.Type == "" {
		ev.Type = d.RoutingKey
	}

	err := c.handler.Handle(ctx, ev)
	switch {
	case err == nil:
		delete(c.failedOnce, d.MessageId)
		if err := d.Ack(false); err != nil {
			log.WithError(err).Error("ack failed")
		}
	case c.firstFailure(d):
		log.WithError(err).Warn("notification failed, requeueing")
		if err := d.Nack(false, true); err != nil {
			log.WithError(err).Error("nack failed")
		}
	default:
		delete(c.failedOnce, d.MessageId)
		c.handler.MarkFailed(ctx, ev, err)
		if err := d.Ack(false); err != nil {
			log.WithError(err).Error("ack failed")
		}
	}
}

func (c *Consumer) firstFailure(d amqp.Delivery) bool {
	if d.MessageId == "" {
		return !d.Redelivered
	}
	if _, seen := c.failedOnce[d.MessageId]; seen {
		return false
	}
	c.failedOnce[d.MessageId] = struct{}{}
	return true
}
