package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nodeboard/nodeboard/internal/billing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.EventRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO billing_events (
			id, provider, provider_event_id, event_type, payload, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		event.ID,
		event.Provider,
		event.ProviderEventID,
		event.EventType,
		event.Payload,
		event.ReceivedAt,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindEvent(ctx context.Context, db *gorm.DB, provider, providerEventID string) (*domain.EventRecord, error) {
	var item domain.EventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider, provider_event_id, event_type, payload, received_at, processed_at
		 FROM billing_events
		 WHERE provider = ? AND provider_event_id = ?
		 LIMIT 1`,
		provider,
		providerEventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) MarkProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE billing_events
		 SET processed_at = ?
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}

func (r *repo) FindByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, plan, status, stripe_customer_id, stripe_subscription_id,
			revenuecat_subscriber_id, current_period_end, cancel_at_period_end,
			last_event_source, last_event_at, created_at, updated_at
		 FROM subscriptions
		 WHERE user_id = ?
		 LIMIT 1`,
		userID,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.UserID == 0 {
		return nil, domain.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (r *repo) FindByStripeCustomer(ctx context.Context, db *gorm.DB, customerRef string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT user_id, plan, status, stripe_customer_id, stripe_subscription_id,
			revenuecat_subscriber_id, current_period_end, cancel_at_period_end,
			last_event_source, last_event_at, created_at, updated_at
		 FROM subscriptions
		 WHERE stripe_customer_id = ?
		 LIMIT 1`,
		customerRef,
	).Scan(&sub).Error
	if err != nil {
		return nil, err
	}
	if sub.UserID == 0 {
		return nil, domain.ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (r *repo) UpsertActivation(ctx context.Context, db *gorm.DB, sub domain.Subscription) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (
			user_id, plan, status, stripe_customer_id, stripe_subscription_id,
			revenuecat_subscriber_id, current_period_end, cancel_at_period_end,
			last_event_source, last_event_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			plan = excluded.plan,
			status = excluded.status,
			stripe_customer_id = COALESCE(excluded.stripe_customer_id, subscriptions.stripe_customer_id),
			stripe_subscription_id = COALESCE(excluded.stripe_subscription_id, subscriptions.stripe_subscription_id),
			revenuecat_subscriber_id = COALESCE(excluded.revenuecat_subscriber_id, subscriptions.revenuecat_subscriber_id),
			current_period_end = excluded.current_period_end,
			cancel_at_period_end = excluded.cancel_at_period_end,
			last_event_source = excluded.last_event_source,
			last_event_at = excluded.last_event_at,
			updated_at = excluded.updated_at
		WHERE subscriptions.last_event_at IS NULL OR subscriptions.last_event_at < excluded.last_event_at`,
		sub.UserID,
		sub.Plan,
		sub.Status,
		sub.StripeCustomerID,
		sub.StripeSubscriptionID,
		sub.RevenueCatSubscriberID,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.LastEventSource,
		sub.LastEventAt,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateByStripeSubscription(ctx context.Context, db *gorm.DB, subscriptionRef string, plan domain.Plan, status domain.SubscriptionStatus, periodEnd *time.Time, cancelAtPeriodEnd bool, eventAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET plan = ?, status = ?, current_period_end = ?, cancel_at_period_end = ?,
			last_event_source = 'stripe', last_event_at = ?, updated_at = ?
		 WHERE stripe_subscription_id = ?
		   AND (last_event_at IS NULL OR last_event_at < ?)`,
		plan,
		status,
		periodEnd,
		cancelAtPeriodEnd,
		eventAt,
		time.Now().UTC(),
		subscriptionRef,
		eventAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) CancelByStripeSubscription(ctx context.Context, db *gorm.DB, subscriptionRef string, eventAt time.Time) (bool, error) {
	// Plan and period end stay untouched as a historical record.
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, cancel_at_period_end = ?,
			last_event_source = 'stripe', last_event_at = ?, updated_at = ?
		 WHERE stripe_subscription_id = ?
		   AND (last_event_at IS NULL OR last_event_at < ?)`,
		domain.SubscriptionStatusCanceled,
		false,
		eventAt,
		time.Now().UTC(),
		subscriptionRef,
		eventAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) UpdateStatusByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID, status domain.SubscriptionStatus, source string, eventAt time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET status = ?, last_event_source = ?, last_event_at = ?, updated_at = ?
		 WHERE user_id = ?
		   AND (last_event_at IS NULL OR last_event_at < ?)`,
		status,
		source,
		eventAt,
		time.Now().UTC(),
		userID,
		eventAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
