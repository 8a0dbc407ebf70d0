// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency represents a recorded result of a previously processed request,
// keyed by (owner_id, scope, key). It enables safe retries of letter creation
// by returning the originally created letter without re-executing side effects.
type Idempotency struct {
	ID         string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	OwnerID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_owner_scope_key,priority:1"`
	Scope      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_owner_scope_key,priority:2"`
	Key        string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_owner_scope_key,priority:3"`
	ResourceID string    `gorm:"type:TEXT NOT NULL"`
	Status     int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt  time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt  time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// RateWindow is a fixed-window request counter shared by every instance
// through the database. One row exists per (key, window start).
type RateWindow struct {
	Key         string    `gorm:"type:varchar(128);primaryKey"`
	WindowStart time.Time `gorm:"primaryKey"`
	Count       int       `gorm:"not null;default:0"`
	ExpiresAt   time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (RateWindow) TableName() string { return "rate_windows" }

// WebhookDelivery logs each verified payment callback. Digest is the SHA-256
// of the raw body, so redeliveries of the same payload are counted on the same
// row instead of growing the table.
type WebhookDelivery struct {
	ID            string    `gorm:"type:char(36);primaryKey"`
	Provider      string    `gorm:"type:varchar(32);not null;uniqueIndex:ux_webhook_provider_digest,priority:1"`
	Digest        string    `gorm:"type:char(64);not null;uniqueIndex:ux_webhook_provider_digest,priority:2"`
	CorrelationID string    `gorm:"type:varchar(64);not null;default:'';index"`
	Outcome       string    `gorm:"type:varchar(32);not null"`
	Result        string    `gorm:"type:varchar(32);not null"`
	Deliveries    int       `gorm:"not null;default:1"`
	FirstSeenAt   time.Time `gorm:"not null"`
	LastSeenAt    time.Time `gorm:"not null"`
}

// TableName implements the GORM tabler interface.
func (WebhookDelivery) TableName() string { return "webhook_deliveries" }
