package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/cartas-cosmicas/internal/domain"
)

func TestRecordAccessAttempt_AssignsSortableIDs(t *testing.T) {
	db := newTestDB(t, &domain.AccessAttempt{})
	ctx := context.Background()
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	for i, reason := range []string{"NOT_YET_RELEASED", "", "PASSWORD_REQUIRED"} {
		a := &domain.AccessAttempt{
			LetterID:    "l1",
			LinkToken:   "tok",
			SourceIP:    "203.0.113.7",
			Success:     reason == "",
			Reason:      reason,
			RequestedAt: t0.Add(time.Duration(i) * time.Second),
		}
		if err := RecordAccessAttempt(ctx, db, a); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if len(a.ID) != 26 {
			t.Fatalf("expected ULID id, got %q", a.ID)
		}
	}
	if err := RecordAccessAttempt(ctx, db, &domain.AccessAttempt{LetterID: "l2", LinkToken: "x"}); err != nil {
		t.Fatalf("record other: %v", err)
	}

	got, err := ListAccessAttempts(ctx, db, "l1", 0)
	if err != nil || len(got) != 3 {
		t.Fatalf("list: n=%d err=%v", len(got), err)
	}
	if got[0].Reason != "PASSWORD_REQUIRED" || got[2].Reason != "NOT_YET_RELEASED" {
		t.Fatalf("expected newest first, got %q..%q", got[0].Reason, got[2].Reason)
	}
}

func TestHitRateWindow_CountsPerWindow(t *testing.T) {
	db := newTestDB(t, &domain.RateWindow{})
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 10, 0, 10, 0, time.UTC)

	for want := 1; want <= 3; want++ {
		got, err := HitRateWindow(ctx, db, "ip:1", time.Minute, now)
		if err != nil || got != want {
			t.Fatalf("hit %d: got=%d err=%v", want, got, err)
		}
	}
	if got, _ := HitRateWindow(ctx, db, "ip:2", time.Minute, now); got != 1 {
		t.Fatalf("other key: got %d", got)
	}
	// next window starts fresh
	if got, _ := HitRateWindow(ctx, db, "ip:1", time.Minute, now.Add(time.Minute)); got != 1 {
		t.Fatalf("next window: got %d", got)
	}

	n, err := PurgeRateWindows(ctx, db, now.Add(time.Minute))
	if err != nil || n != 2 {
		t.Fatalf("purge: n=%d err=%v", n, err)
	}
}

func TestRecordWebhookDelivery_DedupsByDigest(t *testing.T) {
	db := newTestDB(t, &domain.WebhookDelivery{})
	ctx := context.Background()
	now := time.Now().UTC()

	d := domain.WebhookDelivery{Provider: "generic", Digest: "abc", CorrelationID: "l1", Outcome: "success", Result: "applied"}
	first, err := RecordWebhookDelivery(ctx, db, d, now)
	if err != nil || first.Deliveries != 1 {
		t.Fatalf("first: %+v err=%v", first, err)
	}
	d.Result = "duplicate"
	second, err := RecordWebhookDelivery(ctx, db, d, now.Add(time.Second))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.ID != first.ID || second.Deliveries != 2 || second.Result != "duplicate" {
		t.Fatalf("expected same row bumped, got %+v", second)
	}

	other, err := RecordWebhookDelivery(ctx, db, domain.WebhookDelivery{Provider: "kiwify", Digest: "abc", Outcome: "success", Result: "applied"}, now)
	if err != nil || other.ID == first.ID {
		t.Fatalf("other provider must not share a row: %+v err=%v", other, err)
	}
}
