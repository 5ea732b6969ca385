package domain

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
)

// EventType is the canonical subscription transition parsed out of a
// provider-specific webhook payload.
type EventType string

const (
	// EventTypeActivated covers first purchases and renewals: the full
	// subscription record is upserted.
	EventTypeActivated EventType = "subscription_activated"
	// EventTypeUpdated carries in-place plan/status/period changes, matched by
	// provider subscription reference.
	EventTypeUpdated EventType = "subscription_updated"
	// EventTypeCanceled terminates the subscription; plan and period end are
	// kept as a historical record.
	EventTypeCanceled EventType = "subscription_canceled"
	// EventTypeBillingIssue marks the subscription past due.
	EventTypeBillingIssue EventType = "billing_issue"
	// EventTypeSubscriberAlias is an identity-linking signal, logged only.
	EventTypeSubscriberAlias EventType = "subscriber_alias"
)

// SubscriptionEvent is the canonical event produced by provider adapters.
type SubscriptionEvent struct {
	Provider        string
	ProviderEventID string
	Type            EventType
	// UserID is zero when the provider carries only its own customer
	// reference; the reconciler resolves it through CustomerRef.
	UserID            snowflake.ID
	CustomerRef       string
	SubscriptionRef   string
	Plan              Plan
	Status            SubscriptionStatus
	PeriodEnd         *time.Time
	CancelAtPeriodEnd bool
	OccurredAt        time.Time
	Sandbox           bool
	RawPayload        []byte
}

// Adapter verifies and parses one provider's webhook deliveries.
type Adapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*SubscriptionEvent, error)
}

// Service ingests webhook deliveries and folds them into the canonical
// subscription state.
type Service interface {
	IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error
	GetByUser(ctx context.Context, userID snowflake.ID) (*Subscription, error)
}

var (
	ErrProviderNotFound      = errors.New("provider_not_found")
	ErrInvalidSignature      = errors.New("invalid_signature")
	ErrMissingSignature      = errors.New("missing_signature")
	ErrInvalidPayload        = errors.New("invalid_payload")
	ErrInvalidEvent          = errors.New("invalid_event")
	ErrEventIgnored          = errors.New("event_ignored")
	ErrEventAlreadyProcessed = errors.New("event_already_processed")
	ErrUnknownPlan           = errors.New("unknown_plan")
	ErrSubscriptionNotFound  = errors.New("subscription_not_found")
)
