package publisher

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/perfume-storefront/internal/domain/entity"
	"github.com/oksasatya/perfume-storefront/internal/domain/repository"
)

const batchSize = 100

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// OutboxPoller drains order events from the outbox into Kafka.
type OutboxPoller struct {
	tick   time.Duration
	repo   repository.OutboxRepository
	writer messageWriter
	logger *logrus.Logger
}

func NewOutboxPoller(repo repository.OutboxRepository, topic string, logger *logrus.Logger, brokers ...string) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &OutboxPoller{tick: time.Second, repo: repo, writer: w, logger: logger}
}

// Run polls until ctx is cancelled, then closes the writer.
func (p *OutboxPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()
	defer func() {
		if err := p.writer.Close(); err != nil {
			p.logger.WithError(err).Warn("kafka writer close failed")
		}
	}()
	for {
		select {
		case <-ticker.C:
			p.ProcessOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessOnce publishes one batch, oldest first. It stops at the first failure
// so events of an order are never published out of order.
func (p *OutboxPoller) ProcessOnce(ctx context.Context) int {
	events, err := p.repo.Unprocessed(ctx, batchSize)
	if err != nil {
		p.logger.WithError(err).Warn("failed to fetch outbox events")
		return 0
	}

	published := 0
	for i := range events {
		ev := &events[i]
		if err := p.publish(ctx, ev); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				"event_id":   ev.ID.Hex(),
				"event_type": ev.EventType,
				"order_id":   ev.AggregateID,
			}).Warn("failed to publish outbox event")
			return published
		}
		if err := p.repo.MarkProcessed(ctx, ev.ID); err != nil {
			p.logger.WithError(err).WithField("event_id", ev.ID.Hex()).Warn("failed to mark outbox event processed")
			return published
		}
		published++
	}
	return published
}

func (p *OutboxPoller) publish(ctx context.Context, ev *entity.OutboxEvent) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.AggregateID), // order id keeps per-order ordering
		Value: ev.Payload,
		Time:  ev.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.EventType)},
		},
	})
}
