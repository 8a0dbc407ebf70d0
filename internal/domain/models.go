// Package domain defines the persistence models for letters and their access
// audit trail. These types are mapped with GORM and form the core data layer
// of the Cartas Cósmicas backend.
package domain

import (
	"time"
)

// LetterState is the single source of truth for where a letter sits in its
// workflow. Lifecycle and payment status are derived from it, so the illegal
// combinations "active but unpaid" and "paid but still draft" cannot be stored.
type LetterState string

const (
	// StateDraft is a letter saved by its owner and not yet submitted for checkout.
	StateDraft LetterState = "draft"
	// StatePendingPayment is a submitted letter waiting for a payment confirmation.
	StatePendingPayment LetterState = "pending_payment"
	// StateActive is a paid letter eligible for public viewing.
	StateActive LetterState = "active"
	// StateFailed is a letter whose payment was refused, refunded before
	// confirmation or charged back.
	StateFailed LetterState = "failed"
	// StateArchived is a letter hidden by its owner. Payment history is kept.
	StateArchived LetterState = "archived"
)

// Valid reports whether s is one of the known states.
func (s LetterState) Valid() bool {
	switch s {
	case StateDraft, StatePendingPayment, StateActive, StateFailed, StateArchived:
		return true
	}
	return false
}

// LifecycleStatus is the workflow view of a letter, independent of payment.
type LifecycleStatus string

const (
	LifecycleDraft    LifecycleStatus = "DRAFT"
	LifecycleActive   LifecycleStatus = "ACTIVE"
	LifecycleArchived LifecycleStatus = "ARCHIVED"
)

// PaymentStatus is the payment outcome reported by the payment collaborator.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Letter is a time-locked message owned by a user and addressed publicly by
// its UniqueLink.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OwnerID: identifier of the author; indexed for dashboard queries.
//   - Title: optional short title shown before release.
//   - Content: protected body. Never serialized by default (json:"-"); the
//     HTTP layer copies it into a response only after an access grant.
//   - ReleaseDate: earliest instant at which Content may be disclosed.
//   - UniqueLink: 12-char public token, unique.
//   - State: workflow state, see LetterState.
//   - PaymentID: provider reference, set when payment is confirmed.
//   - PaidAt / PaymentFailedAt: payment history, kept across archiving.
//   - AccessPasswordHash: optional bcrypt hash; never serialized.
//   - MaxViews: optional cap on successful views.
//   - ViewCount: incremented once per granted access.
//   - ExpiresAt: optional instant after which the link is dead.
//   - IsFavorite: owner-facing flag.
type Letter struct {
	ID                 string      `json:"id"                  gorm:"type:char(36);primaryKey"`
	OwnerID            string      `json:"owner_id"            gorm:"type:varchar(64);not null;index:idx_owner_letters,priority:1"`
	Title              string      `json:"title"               gorm:"type:varchar(255);not null;default:''"`
	Content            string      `json:"-"                   gorm:"type:text;not null"`
	ReleaseDate        time.Time   `json:"release_date"        gorm:"not null;index"`
	UniqueLink         string      `json:"unique_link"         gorm:"type:varchar(32);not null;uniqueIndex:ux_letters_unique_link"`
	State              LetterState `json:"state"               gorm:"type:varchar(24);not null;default:'draft';index"`
	PaymentID          string      `json:"payment_id,omitempty" gorm:"type:varchar(128);not null;default:''"`
	PaidAt             *time.Time  `json:"paid_at,omitempty"`
	PaymentFailedAt    *time.Time  `json:"payment_failed_at,omitempty"`
	AccessPasswordHash string      `json:"-"                   gorm:"type:varchar(255);not null;default:''"`
	MaxViews           *int        `json:"max_views,omitempty"`
	ViewCount          int         `json:"view_count"          gorm:"not null;default:0"`
	ExpiresAt          *time.Time  `json:"expires_at,omitempty"`
	IsFavorite         bool        `json:"is_favorite"         gorm:"not null;default:false"`
	CreatedAt          time.Time   `json:"created_at"          gorm:"index:idx_owner_letters,priority:2"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Letter.
func (Letter) TableName() string { return "letters" }

// LifecycleStatus derives the workflow status from State.
func (l *Letter) LifecycleStatus() LifecycleStatus {
	switch l.State {
	case StateActive:
		return LifecycleActive
	case StateArchived:
		return LifecycleArchived
	default:
		return LifecycleDraft
	}
}

// PaymentStatus derives the payment status from State and payment history.
// Archived letters report whatever happened before they were archived.
func (l *Letter) PaymentStatus() PaymentStatus {
	switch l.State {
	case StateActive:
		return PaymentPaid
	case StateFailed:
		return PaymentFailed
	case StateArchived:
		if l.PaidAt != nil {
			return PaymentPaid
		}
		if l.PaymentFailedAt != nil {
			return PaymentFailed
		}
	}
	return PaymentPending
}

// HasPassword reports whether visitors must supply a password.
func (l *Letter) HasPassword() bool { return l.AccessPasswordHash != "" }

// AccessAttempt is one audit row for a visitor's request to open a letter.
// The password attempt itself is never stored.
//
// Fields:
//   - ID: ULID (lexically sortable by time).
//   - LetterID: empty when the link did not resolve to a letter.
//   - LinkToken: the token the visitor asked for.
//   - Success / Reason: decision outcome; Reason is empty on success.
type AccessAttempt struct {
	ID          string    `json:"id"          gorm:"type:char(26);primaryKey"`
	LetterID    string    `json:"letter_id"   gorm:"type:varchar(36);not null;default:'';index"`
	LinkToken   string    `json:"link_token"  gorm:"type:varchar(64);not null"`
	SourceIP    string    `json:"source_ip"   gorm:"type:varchar(64);not null;default:''"`
	UserAgent   string    `json:"user_agent"  gorm:"type:varchar(512);not null;default:''"`
	Success     bool      `json:"success"     gorm:"not null"`
	Reason      string    `json:"reason"      gorm:"type:varchar(32);not null;default:''"`
	RequestedAt time.Time `json:"requested_at" gorm:"not null;index"`
}

// TableName returns the database table name for AccessAttempt.
func (AccessAttempt) TableName() string { return "access_attempts" }
