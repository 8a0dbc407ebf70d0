package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
)

// RecordWebhookDelivery logs a verified delivery. A redelivery of the same
// body (same provider and digest) bumps the counter and overwrites the latest
// result instead of inserting a new row. The stored row is returned.
func RecordWebhookDelivery(ctx context.Context, db *gorm.DB, d domain.WebhookDelivery, now time.Time) (*domain.WebhookDelivery, error) {
	now = now.UTC()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.Deliveries = 1
	d.FirstSeenAt = now
	d.LastSeenAt = now

	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "digest"}},
		DoUpdates: clause.Assignments(map[string]any{
			"deliveries":   gorm.Expr("webhook_deliveries.deliveries + 1"),
			"last_seen_at": now,
			"outcome":      d.Outcome,
			"result":       d.Result,
		}),
	}).Create(&d).Error
	if err != nil {
		return nil, err
	}

	var out domain.WebhookDelivery
	if err := db.WithContext(ctx).
		Where("provider = ? AND digest = ?", d.Provider, d.Digest).
		First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}
