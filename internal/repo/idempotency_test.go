package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
)

func TestGetIdempotency_BlankKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	rec, err := GetIdempotency(context.Background(), db, "u1", "letters.create", "   ", time.Now())
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for blank key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	exp := &domain.Idempotency{
		ID:         "expired",
		OwnerID:    "u1",
		Scope:      "letters.create",
		Key:        "k1",
		ResourceID: "l1",
		Status:     201,
		CreatedAt:  now.Add(-2 * time.Hour),
		ExpiresAt:  now.Add(-time.Hour),
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "u1", "letters.create", "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}
	rec2, err2 := GetIdempotency(context.Background(), db, "u1", "letters.create", "missing", now)
	if rec2 != nil || err2 != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec2, err2)
	}
}

func TestCreateIdempotency_SuccessDuplicateAndLookup(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, "u9", "letters.create", "k9", "l9", 201, 90*time.Minute, now)
	if err != nil {
		t.Fatalf("CreateIdempotency error: %v", err)
	}
	if rec.ID == "" || rec.ResourceID != "l9" || !rec.ExpiresAt.Equal(now.Add(90*time.Minute)) {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := CreateIdempotency(ctx, db, "u9", "letters.create", "k9", "lX", 201, time.Hour, now); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	// Same key under another owner is independent.
	if _, err := CreateIdempotency(ctx, db, "u10", "letters.create", "k9", "lY", 201, time.Hour, now); err != nil {
		t.Fatalf("other owner: %v", err)
	}

	got, err := GetIdempotency(ctx, db, "u9", "letters.create", "k9", now.Add(time.Minute))
	if err != nil || got.ResourceID != "l9" || got.Status != 201 {
		t.Fatalf("lookup: %+v err=%v", got, err)
	}
}

func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newTestDB(t) // intentionally NOT migrating
	_, err := CreateIdempotency(context.Background(), db, "uX", "s", "kX", "lX", 200, time.Minute, time.Now())
	if err == nil || err == ErrDuplicate {
		t.Fatalf("expected generic error when table is missing, got %v", err)
	}
}

func TestPurgeExpiredIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreateIdempotency(ctx, db, "u", "s", "old", "l", 201, time.Minute, now.Add(-time.Hour)); err != nil {
		t.Fatalf("seed old: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u", "s", "new", "l", 201, time.Hour, now); err != nil {
		t.Fatalf("seed new: %v", err)
	}
	n, err := PurgeExpiredIdempotency(ctx, db, now)
	if err != nil || n != 1 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
}
