package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/smallbiznis/homeaccess/internal/clock"
	"github.com/smallbiznis/homeaccess/internal/notification/domain"
	"github.com/smallbiznis/homeaccess/pkg/telemetry"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	defaultBatchSize   = 50
	defaultMaxAttempts = 10
)

type RelayParams struct {
	fx.In

	Repo    domain.Repository
	Client  domain.Client
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *telemetry.OutboxMetrics `optional:"true"`
}

type relay struct {
	repo        domain.Repository
	client      domain.Client
	clock       clock.Clock
	log         *zap.Logger
	metrics     *telemetry.OutboxMetrics
	batchSize   int
	maxAttempts int
}

func NewRelay(p RelayParams) domain.Relay {
	return &relay{
		repo:        p.Repo,
		client:      p.Client,
		clock:       p.Clock,
		log:         p.Log.Named("notification.relay"),
		metrics:     p.Metrics,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
	}
}

// RelayPending delivers one batch of pending events and returns how many were published.
// A failed delivery is recorded on the row and retried on a later run.
func (r *relay) RelayPending(ctx context.Context) (int, error) {
	start := time.Now()
	events, err := r.repo.ListPending(ctx, r.batchSize, r.maxAttempts)
	if err != nil {
		r.metrics.RecordOutboxBatch("error", time.Since(start))
		return 0, err
	}

	published := 0
	for _, evt := range events {
		if err := ctx.Err(); err != nil {
			return published, err
		}

		msg := domain.Message{
			EventID:     evt.ID.String(),
			EventType:   evt.EventType,
			ResidenceID: evt.ResidenceID.String(),
			UserID:      evt.UserID.String(),
			OccurredAt:  evt.CreatedAt,
			Payload:     json.RawMessage(evt.Payload),
		}

		sent := time.Now()
		deliverErr := r.client.Deliver(ctx, msg)
		if errors.Is(deliverErr, domain.ErrNotConfigured) {
			r.metrics.RecordOutboxBatch("skipped", time.Since(start))
			return published, nil
		}
		if deliverErr != nil {
			r.metrics.RecordDelivery("failed", evt.EventType, time.Since(sent))
			r.log.Warn("notification delivery failed",
				zap.String("event_id", msg.EventID),
				zap.Int("attempt", evt.Attempts+1),
				zap.Error(deliverErr),
			)
			if err := r.repo.MarkFailed(ctx, evt.ID, deliverErr.Error()); err != nil {
				return published, err
			}
			continue
		}

		r.metrics.RecordDelivery("delivered", evt.EventType, time.Since(sent))
		if err := r.repo.MarkPublished(ctx, evt.ID, r.clock.Now()); err != nil {
			return published, err
		}
		published++
	}

	if backlog, err := r.repo.CountPending(ctx, r.maxAttempts); err == nil {
		r.metrics.SetOutboxBacklog(float64(backlog))
	}
	r.metrics.RecordOutboxBatch("success", time.Since(start))
	return published, nil
}
