// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the owner dashboard queries: filtered
// pagination, per-status counters and the aggregate metadata used for ETags.
package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
)

// StatusFilter selects letters by derived payment status.
type StatusFilter string

const (
	StatusAll     StatusFilter = "all"
	StatusPending StatusFilter = "pending"
	StatusPaid    StatusFilter = "paid"
	StatusFailed  StatusFilter = "failed"
)

// LetterFilter narrows an owner's letter listing. Zero values mean "no filter".
type LetterFilter struct {
	Status       StatusFilter
	FavoriteOnly bool
	Search       string
	SortBy       string // created_at | release_date | title
	SortDesc     bool
}

// LetterStats holds the dashboard counters. Archived letters count under the
// payment status they had before archiving.
type LetterStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Paid      int64 `json:"paid"`
	Failed    int64 `json:"failed"`
	Favorites int64 `json:"favorites"`
}

var sortColumns = map[string]string{
	"created_at":   "created_at",
	"release_date": "release_date",
	"title":        "title",
}

func ownerScope(ctx context.Context, db *gorm.DB, ownerID string, f LetterFilter) *gorm.DB {
	q := db.WithContext(ctx).Model(&domain.Letter{}).Where("owner_id = ?", ownerID)
	q = applyStatus(q, f.Status)
	if f.FavoriteOnly {
		q = q.Where("is_favorite = ?", true)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + escapeLike(strings.ToLower(s)) + "%"
		q = q.Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(content) LIKE ? ESCAPE '\\')", like, like)
	}
	return q
}

func applyStatus(q *gorm.DB, s StatusFilter) *gorm.DB {
	switch s {
	case StatusPaid:
		return q.Where("paid_at IS NOT NULL")
	case StatusFailed:
		return q.Where("paid_at IS NULL AND payment_failed_at IS NOT NULL")
	case StatusPending:
		return q.Where("paid_at IS NULL AND payment_failed_at IS NULL")
	default:
		return q
	}
}

// CountLetters returns the number of letters matching f.
func CountLetters(ctx context.Context, db *gorm.DB, ownerID string, f LetterFilter) (int64, error) {
	var n int64
	err := ownerScope(ctx, db, ownerID, f).Count(&n).Error
	return n, err
}

// ListLettersPage returns one page of an owner's letters. The default order is
// newest first; id is a tiebreaker so pages are stable.
func ListLettersPage(ctx context.Context, db *gorm.DB, ownerID string, f LetterFilter, offset, limit int) ([]domain.Letter, error) {
	col, ok := sortColumns[f.SortBy]
	if !ok {
		col = "created_at"
		if f.SortBy == "" {
			f.SortDesc = true
		}
	}
	dir := " ASC"
	if f.SortDesc {
		dir = " DESC"
	}

	var out []domain.Letter
	err := ownerScope(ctx, db, ownerID, f).
		Order(col + dir).
		Order("id" + dir).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetLetterStats computes the dashboard counters for ownerID.
func GetLetterStats(ctx context.Context, db *gorm.DB, ownerID string) (LetterStats, error) {
	var s LetterStats
	count := func(f LetterFilter) (int64, error) { return CountLetters(ctx, db, ownerID, f) }

	var err error
	if s.Total, err = count(LetterFilter{}); err != nil {
		return LetterStats{}, err
	}
	if s.Pending, err = count(LetterFilter{Status: StatusPending}); err != nil {
		return LetterStats{}, err
	}
	if s.Paid, err = count(LetterFilter{Status: StatusPaid}); err != nil {
		return LetterStats{}, err
	}
	if s.Failed, err = count(LetterFilter{Status: StatusFailed}); err != nil {
		return LetterStats{}, err
	}
	if s.Favorites, err = count(LetterFilter{FavoriteOnly: true}); err != nil {
		return LetterStats{}, err
	}
	return s, nil
}

// LettersMeta returns the number of letters of ownerID and the greatest
// UpdatedAt among them, or nil when the owner has none.
func LettersMeta(ctx context.Context, db *gorm.DB, ownerID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Letter{}).Where("owner_id = ?", ownerID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
