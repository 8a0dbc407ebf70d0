package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if (Letter{}).TableName() != "letters" {
		t.Fatalf("Letter.TableName() = %q; want %q", (Letter{}).TableName(), "letters")
	}
	if (AccessAttempt{}).TableName() != "access_attempts" {
		t.Fatalf("AccessAttempt.TableName() = %q; want %q", (AccessAttempt{}).TableName(), "access_attempts")
	}
}

func TestLetterState_Valid(t *testing.T) {
	for _, s := range []LetterState{StateDraft, StatePendingPayment, StateActive, StateFailed, StateArchived} {
		if !s.Valid() {
			t.Fatalf("%q should be valid", s)
		}
	}
	if LetterState("paid").Valid() {
		t.Fatalf("unknown state reported valid")
	}
}

func TestLetter_DerivedStatuses(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		letter    Letter
		lifecycle LifecycleStatus
		payment   PaymentStatus
	}{
		{"draft", Letter{State: StateDraft}, LifecycleDraft, PaymentPending},
		{"pending", Letter{State: StatePendingPayment}, LifecycleDraft, PaymentPending},
		{"active", Letter{State: StateActive, PaidAt: &now}, LifecycleActive, PaymentPaid},
		{"failed", Letter{State: StateFailed, PaymentFailedAt: &now}, LifecycleDraft, PaymentFailed},
		{"archived_paid", Letter{State: StateArchived, PaidAt: &now}, LifecycleArchived, PaymentPaid},
		{"archived_failed", Letter{State: StateArchived, PaymentFailedAt: &now}, LifecycleArchived, PaymentFailed},
		{"archived_unpaid", Letter{State: StateArchived}, LifecycleArchived, PaymentPending},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.letter.LifecycleStatus(); got != tc.lifecycle {
				t.Fatalf("lifecycle = %q; want %q", got, tc.lifecycle)
			}
			if got := tc.letter.PaymentStatus(); got != tc.payment {
				t.Fatalf("payment = %q; want %q", got, tc.payment)
			}
		})
	}
}

func TestLetter_NeverActiveWhilePending(t *testing.T) {
	// Every representable state maps to a legal (lifecycle, payment) pair.
	for _, s := range []LetterState{StateDraft, StatePendingPayment, StateActive, StateFailed, StateArchived} {
		l := Letter{State: s}
		if l.LifecycleStatus() == LifecycleActive && l.PaymentStatus() != PaymentPaid {
			t.Fatalf("state %q is Active but not Paid", s)
		}
		if l.PaymentStatus() == PaymentPaid && l.LifecycleStatus() == LifecycleDraft {
			t.Fatalf("state %q is Paid but still Draft", s)
		}
	}
}

func TestMigrations_Indexes(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Letter{}, &AccessAttempt{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&Letter{}, &AccessAttempt{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&Letter{}, "idx_owner_letters") {
		t.Fatalf("expected index idx_owner_letters on letters")
	}
	if !m.HasIndex(&Letter{}, "ux_letters_unique_link") {
		t.Fatalf("expected unique index ux_letters_unique_link on letters")
	}

	a := Letter{ID: "a", OwnerID: "u", Content: "x", ReleaseDate: time.Now(), UniqueLink: "same", State: StateDraft}
	b := a
	b.ID = "b"
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := db.Create(&b).Error; err == nil {
		t.Fatalf("expected unique violation on unique_link")
	}
}
