package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
)

// HitRateWindow counts one request for key in the fixed window containing now
// and returns the window's count after this hit. The upsert is a single
// statement, so instances sharing the database see one counter.
func HitRateWindow(ctx context.Context, db *gorm.DB, key string, window time.Duration, now time.Time) (int, error) {
	now = now.UTC()
	start := now.Truncate(window)
	row := domain.RateWindow{
		Key:         key,
		WindowStart: start,
		Count:       1,
		ExpiresAt:   start.Add(window),
	}

	var count int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}, {Name: "window_start"}},
			DoUpdates: clause.Assignments(map[string]any{"count": gorm.Expr("rate_windows.count + 1")}),
		}).Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&domain.RateWindow{}).
			Where("key = ? AND window_start = ?", key, start).
			Select("count").
			Scan(&count).Error
	})
	return count, err
}

// PurgeRateWindows removes windows that ended before now.
func PurgeRateWindows(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now.UTC()).Delete(&domain.RateWindow{})
	return res.RowsAffected, res.Error
}
