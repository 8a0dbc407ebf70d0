// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file is the letter record store.
//
// All functions are context-aware and accept a *gorm.DB handle, so they can be
// used inside transactions. They stay thin: the access decision, validation
// and state rules live in the services layer; the store only guarantees the
// atomic parts (the capped view increment and the conditional payment write).
//
// Error semantics:
//   - Missing rows (or rows owned by someone else) yield ErrNotFound.
//   - A unique_link collision yields ErrDuplicate.
//   - A rejected view increment yields ErrViewCapReached.
//   - Any other DB error is propagated as-is.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for consistency across layers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrViewCapReached is returned by IncrementViewCountAtomic when the
// conditional update matched no row: the letter is no longer active or its
// view cap has been consumed by a concurrent request.
var ErrViewCapReached = errors.New("view cap reached")

// PaymentOutcome is the absolute result written by SetPaymentOutcome.
type PaymentOutcome int

const (
	OutcomePaid PaymentOutcome = iota + 1
	OutcomeFailed
)

// payableStates are the states from which a payment outcome may be applied.
var payableStates = []domain.LetterState{domain.StateDraft, domain.StatePendingPayment}

// CreateLetter inserts l. ID, timestamps and state must already be set by the
// caller. A unique_link collision is reported as ErrDuplicate so the caller
// can retry with a fresh token.
func CreateLetter(ctx context.Context, db *gorm.DB, l *domain.Letter) error {
	if err := db.WithContext(ctx).Create(l).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// FindByUniqueLink loads a letter by its public token.
func FindByUniqueLink(ctx context.Context, db *gorm.DB, token string) (*domain.Letter, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNotFound
	}
	var l domain.Letter
	if err := db.WithContext(ctx).Where("unique_link = ?", token).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// FindByID loads a letter by primary key, regardless of owner.
func FindByID(ctx context.Context, db *gorm.DB, id string) (*domain.Letter, error) {
	var l domain.Letter
	if err := db.WithContext(ctx).Where("id = ?", id).First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// FindOwned loads a letter by id scoped to its owner. A letter belonging to
// another owner is indistinguishable from a missing one.
func FindOwned(ctx context.Context, db *gorm.DB, id, ownerID string) (*domain.Letter, error) {
	var l domain.Letter
	if err := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&l).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

// UpdateLetter applies a partial column update to an owned letter. Keys are
// column names. updated_at is always refreshed.
func UpdateLetter(ctx context.Context, db *gorm.DB, id, ownerID string, fields map[string]any, now time.Time) error {
	if len(fields) == 0 {
		fields = map[string]any{}
	}
	fields["updated_at"] = now.UTC()
	res := db.WithContext(ctx).
		Model(&domain.Letter{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionState moves an owned letter to `to` only if its current state is
// one of `from`. It reports whether the row changed.
func TransitionState(ctx context.Context, db *gorm.DB, id, ownerID string, from []domain.LetterState, to domain.LetterState, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.Letter{}).
		Where("id = ? AND owner_id = ? AND state IN ?", id, ownerID, from).
		Updates(map[string]any{"state": to, "updated_at": now.UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteLetter permanently removes an owned letter.
func DeleteLetter(ctx context.Context, db *gorm.DB, id, ownerID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&domain.Letter{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleFavorite flips is_favorite in a single statement and returns the new value.
func ToggleFavorite(ctx context.Context, db *gorm.DB, id, ownerID string, now time.Time) (bool, error) {
	var fav bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Letter{}).
			Where("id = ? AND owner_id = ?", id, ownerID).
			Updates(map[string]any{
				"is_favorite": gorm.Expr("NOT is_favorite"),
				"updated_at":  now.UTC(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&domain.Letter{}).
			Where("id = ?", id).
			Select("is_favorite").
			Scan(&fav).Error
	})
	return fav, err
}

// IncrementViewCountAtomic consumes one view of an active letter. The check
// against max_views and the increment happen in one UPDATE, so concurrent
// callers at view_count == max_views-1 cannot both succeed. The updated row is
// returned on success; ErrViewCapReached when nothing matched.
func IncrementViewCountAtomic(ctx context.Context, db *gorm.DB, id string, now time.Time) (*domain.Letter, error) {
	res := db.WithContext(ctx).
		Model(&domain.Letter{}).
		Where("id = ? AND state = ? AND (max_views IS NULL OR view_count < max_views)", id, domain.StateActive).
		Updates(map[string]any{
			"view_count": gorm.Expr("view_count + 1"),
			"updated_at": now.UTC(),
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrViewCapReached
	}
	return FindByID(ctx, db, id)
}

// SetPaymentOutcome writes the absolute result of a payment for the letter id.
//
// Paid moves draft/pending_payment to active and stamps payment_id and paid_at
// in the same statement. Failed moves draft/pending_payment to failed. Any
// other current state is left untouched, which makes redeliveries no-ops and
// keeps a paid letter from ever reverting. changed reports whether this call
// performed the transition. ErrNotFound is returned for an unknown id.
func SetPaymentOutcome(ctx context.Context, db *gorm.DB, id string, outcome PaymentOutcome, paymentID string, now time.Time) (l *domain.Letter, changed bool, err error) {
	now = now.UTC()
	fields := map[string]any{"updated_at": now}
	switch outcome {
	case OutcomePaid:
		fields["state"] = domain.StateActive
		fields["paid_at"] = now
		if paymentID != "" {
			fields["payment_id"] = paymentID
		}
	case OutcomeFailed:
		fields["state"] = domain.StateFailed
		fields["payment_failed_at"] = now
	default:
		return nil, false, errors.New("unknown payment outcome")
	}

	res := db.WithContext(ctx).
		Model(&domain.Letter{}).
		Where("id = ? AND state IN ?", id, payableStates).
		Updates(fields)
	if res.Error != nil {
		return nil, false, res.Error
	}

	l, err = FindByID(ctx, db, id)
	if err != nil {
		return nil, false, err
	}
	return l, res.RowsAffected > 0, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key value")
}
