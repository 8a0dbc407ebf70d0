package repo

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
)

// NewAuditID returns a ULID stamped with t. The ids sort by time, so the audit
// log can be paged by primary key.
func NewAuditID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// RecordAccessAttempt appends one audit row. The ID is generated when empty.
func RecordAccessAttempt(ctx context.Context, db *gorm.DB, a *domain.AccessAttempt) error {
	if a.RequestedAt.IsZero() {
		a.RequestedAt = time.Now().UTC()
	}
	if a.ID == "" {
		a.ID = NewAuditID(a.RequestedAt)
	}
	return db.WithContext(ctx).Create(a).Error
}

// ListAccessAttempts returns the newest attempts for letterID, up to limit.
func ListAccessAttempts(ctx context.Context, db *gorm.DB, letterID string, limit int) ([]domain.AccessAttempt, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.AccessAttempt
	err := db.WithContext(ctx).
		Where("letter_id = ?", letterID).
		Order("id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
