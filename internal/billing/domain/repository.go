package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists subscriptions and the event ledger. Every state write is
// conditional on the stale-event guard (last_event_at older than the incoming
// event), so out-of-order deliveries cannot regress state.
type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, event *EventRecord) (bool, error)
	FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*EventRecord, error)
	MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error

	FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Subscription, error)
	FindByStripeCustomer(ctx context.Context, db *gorm.DB, customerRef string) (*Subscription, error)

	UpsertActivation(ctx context.Context, db *gorm.DB, sub Subscription) (bool, error)
	UpdateByStripeSubscription(ctx context.Context, db *gorm.DB, subscriptionRef string, plan Plan, status SubscriptionStatus, periodEnd *time.Time, cancelAtPeriodEnd bool, eventAt time.Time) (bool, error)
	CancelByStripeSubscription(ctx context.Context, db *gorm.DB, subscriptionRef string, eventAt time.Time) (bool, error)
	UpdateStatusByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, status SubscriptionStatus, source string, eventAt time.Time) (bool, error)
}
