// Package domain contains persistence models for canonical subscriptions and
// the billing event ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Plan is the product tier attached to a subscription.
type Plan string

const (
	PlanBasic      Plan = "basic"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription is the single reconciled billing record for a user, fed by two
// independent providers. It is created on first purchase, only ever
// transitioned to canceled, and never deleted. LastEventAt carries the
// provider-side timestamp of the last applied event; older events are
// acknowledged but discarded.
type Subscription struct {
	UserID                 snowflake.ID       `gorm:"primaryKey" json:"user_id"`
	Plan                   Plan               `gorm:"type:text;not null" json:"plan"`
	Status                 SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	StripeCustomerID       *string            `gorm:"type:text;index" json:"stripe_customer_id,omitempty"`
	StripeSubscriptionID   *string            `gorm:"type:text;index" json:"stripe_subscription_id,omitempty"`
	RevenueCatSubscriberID *string            `gorm:"column:revenuecat_subscriber_id;type:text" json:"revenuecat_subscriber_id,omitempty"`
	CurrentPeriodEnd       *time.Time         `gorm:"" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd      bool               `gorm:"not null;default:false" json:"cancel_at_period_end"`
	LastEventSource        string             `gorm:"type:text" json:"last_event_source"`
	LastEventAt            *time.Time         `gorm:"" json:"last_event_at,omitempty"`
	CreatedAt              time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt              time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// EventRecord is the write-once idempotency ledger. Existence of a
// (provider, provider_event_id) pair is the sole dedup gate.
type EventRecord struct {
	ID              snowflake.ID   `gorm:"primaryKey" json:"id"`
	Provider        string         `gorm:"type:text;not null;uniqueIndex:ux_billing_events_provider_event,priority:1" json:"provider"`
	ProviderEventID string         `gorm:"type:text;not null;uniqueIndex:ux_billing_events_provider_event,priority:2" json:"provider_event_id"`
	EventType       string         `gorm:"type:text;not null" json:"event_type"`
	Payload         datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	ReceivedAt      time.Time      `gorm:"not null" json:"received_at"`
	ProcessedAt     *time.Time     `gorm:"" json:"processed_at,omitempty"`
}

// TableName sets the database table name.
func (EventRecord) TableName() string { return "billing_events" }
