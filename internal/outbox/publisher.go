// Package outbox drains NEW outbox records to the message broker. The poll
// loop runs in its own binary so broker trouble never touches request
// latency; SKIP LOCKED lets several publishers run side by side.
package outbox

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/DucAnhIT03/movie-serverside/internal/adapters/pg"
	"github.com/DucAnhIT03/movie-serverside/internal/adapters/rabbit"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
)

const batchSize = 100

type Publisher struct {
	repo     *pg.Repository
	broker   *rabbit.Publisher
	logger   observability.Logger
	interval time.Duration
}

func NewPublisher(repo *pg.Repository, broker *rabbit.Publisher, logger observability.Logger, interval time.Duration) *Publisher {
	return &Publisher{
		repo:     repo,
		broker:   broker,
		logger:   logger,
		interval: interval,
	}
}

// Run polls until the context is cancelled.
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.Drain(ctx); err != nil {
				p.logger.Error("outbox drain failed: ", err)
			}
		}
	}
}

// Drain publishes one batch of unpublished records. Rows stay locked until
// the marks commit; a crash between publish and commit replays the batch,
// so consumers see at-least-once delivery with the dedupe key in MessageId.
func (p *Publisher) Drain(ctx context.Context) error {
	var count int
	var oldest time.Time
	err := p.repo.WithTx(ctx, func(tx pgx.Tx) error {
		records, err := p.repo.GetUnpublishedOutbox(ctx, tx, batchSize)
		if err != nil {
			return err
		}
		for _, rec := range records {
			msg := amqp.Publishing{
				ContentType: "application/json",
				MessageId:   rec.DedupeKey,
				Timestamp:   rec.CreatedAt,
				Body:        rec.Payload,
			}
			if err := p.broker.Publish(ctx, rec.EventType, msg); err != nil {
				return err
			}
			if err := p.repo.MarkPublished(ctx, tx, rec.ID, time.Now().UTC()); err != nil {
				return err
			}
		}
		count = len(records)
		if count > 0 {
			oldest = records[0].CreatedAt
		}
		return nil
	})
	if err != nil {
		return err
	}
	if count > 0 {
		observability.OutboxLag.Set(time.Since(oldest).Seconds())
		p.logger.WithField("count", count).Info("outbox records published")
	} else {
		observability.OutboxLag.Set(0)
	}
	return nil
}
