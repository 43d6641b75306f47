package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/homeaccess/internal/notification/domain"
	"gorm.io/gorm"
)

const maxErrorLength = 512

type repository struct {
	db *gorm.DB
}

func NewRepository(conn *gorm.DB) domain.Repository {
	return &repository{db: conn}
}

func (r *repository) Insert(ctx context.Context, evt domain.AccessEvent) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO access_events (id, residence_id, user_id, event_type, payload, published, attempts, last_error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, '', ?)`,
		evt.ID,
		evt.ResidenceID,
		evt.UserID,
		evt.EventType,
		evt.Payload,
		false,
		evt.CreatedAt,
	).Error
}

func (r *repository) ListPending(ctx context.Context, limit, maxAttempts int) ([]domain.AccessEvent, error) {
	var events []domain.AccessEvent
	err := r.db.WithContext(ctx).
		Where("published = ? AND attempts < ?", false, maxAttempts).
		Order("created_at ASC").
		Order("id ASC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) CountPending(ctx context.Context, maxAttempts int) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.AccessEvent{}).
		Where("published = ? AND attempts < ?", false, maxAttempts).
		Count(&count).Error
	return count, err
}

func (r *repository) MarkPublished(ctx context.Context, id snowflake.ID, at time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE access_events SET published = ?, published_at = ?, attempts = attempts + 1, last_error = '' WHERE id = ?`,
		true,
		at,
		id,
	).Error
}

func (r *repository) MarkFailed(ctx context.Context, id snowflake.ID, reason string) error {
	if len(reason) > maxErrorLength {
		reason = reason[:maxErrorLength]
	}
	return r.db.WithContext(ctx).Exec(
		`UPDATE access_events SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		reason,
		id,
	).Error
}
