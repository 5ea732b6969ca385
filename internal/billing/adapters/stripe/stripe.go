// Package stripe adapts Stripe webhook deliveries (the web checkout and
// subscription platform) into canonical subscription events.
package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nodeboard/nodeboard/internal/billing/domain"
)

// SubscriptionResolver fetches the current state of a Stripe subscription.
// Checkout session payloads carry only the subscription id; price, period end
// and cancel flag must be fetched from the API.
type SubscriptionResolver interface {
	GetSubscription(ctx context.Context, id string) (*SubscriptionState, error)
}

// SubscriptionState is the slice of a Stripe subscription the reconciler needs.
type SubscriptionState struct {
	PriceID           string
	Status            string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

type Adapter struct {
	webhookSecret string
	subscriptions SubscriptionResolver
}

func NewAdapter(webhookSecret string, subscriptions SubscriptionResolver) *Adapter {
	return &Adapter{
		webhookSecret: strings.TrimSpace(webhookSecret),
		subscriptions: subscriptions,
	}
}

func (a *Adapter) Provider() string { return "stripe" }

func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" {
		return domain.ErrInvalidSignature
	}

	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return domain.ErrInvalidSignature
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, signature := range signatures {
		if hmac.Equal([]byte(signature), []byte(expected)) {
			return nil
		}
	}

	return domain.ErrInvalidSignature
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.SubscriptionEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	switch strings.TrimSpace(event.Type) {
	case "checkout.session.completed":
		return a.parseCheckoutCompleted(ctx, event, payload)
	case "customer.subscription.updated":
		return a.parseSubscriptionUpdated(event, payload)
	case "customer.subscription.deleted":
		return a.parseSubscriptionDeleted(event, payload)
	default:
		// New provider event types are acknowledged and ignored.
		return nil, domain.ErrEventIgnored
	}
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type checkoutSession struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

type stripeSubscription struct {
	ID                string                 `json:"id"`
	Customer          string                 `json:"customer"`
	Status            string                 `json:"status"`
	CurrentPeriodEnd  int64                  `json:"current_period_end"`
	CancelAtPeriodEnd bool                   `json:"cancel_at_period_end"`
	Items             stripeSubscriptionItem `json:"items"`
}

type stripeSubscriptionItem struct {
	Data []struct {
		Price struct {
			ID string `json:"id"`
		} `json:"price"`
	} `json:"data"`
}

func (a *Adapter) parseCheckoutCompleted(ctx context.Context, event stripeEvent, payload []byte) (*domain.SubscriptionEvent, error) {
	var session checkoutSession
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, domain.ErrInvalidPayload
	}

	userRaw := strings.TrimSpace(session.Metadata["user_id"])
	if userRaw == "" {
		userRaw = strings.TrimSpace(session.ClientReferenceID)
	}
	userID, err := snowflake.ParseString(userRaw)
	if err != nil || userID == 0 {
		return nil, domain.ErrInvalidEvent
	}
	if strings.TrimSpace(session.Subscription) == "" {
		return nil, domain.ErrInvalidEvent
	}

	if a.subscriptions == nil {
		return nil, errors.New("subscription_resolver_unavailable")
	}
	state, err := a.subscriptions.GetSubscription(ctx, session.Subscription)
	if err != nil {
		return nil, err
	}

	plan, ok := domain.PlanFromStripePrice(state.PriceID)
	if !ok {
		return nil, domain.ErrUnknownPlan
	}

	periodEnd := state.CurrentPeriodEnd
	return &domain.SubscriptionEvent{
		Provider:          "stripe",
		ProviderEventID:   event.ID,
		Type:              domain.EventTypeActivated,
		UserID:            userID,
		CustomerRef:       session.Customer,
		SubscriptionRef:   session.Subscription,
		Plan:              plan,
		Status:            domain.SubscriptionStatusActive,
		PeriodEnd:         &periodEnd,
		CancelAtPeriodEnd: state.CancelAtPeriodEnd,
		OccurredAt:        eventTime(event.Created),
		RawPayload:        payload,
	}, nil
}

func (a *Adapter) parseSubscriptionUpdated(event stripeEvent, payload []byte) (*domain.SubscriptionEvent, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}
	if len(sub.Items.Data) == 0 {
		return nil, domain.ErrInvalidEvent
	}

	plan, ok := domain.PlanFromStripePrice(sub.Items.Data[0].Price.ID)
	if !ok {
		return nil, domain.ErrUnknownPlan
	}

	var periodEnd *time.Time
	if sub.CurrentPeriodEnd > 0 {
		t := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		periodEnd = &t
	}

	return &domain.SubscriptionEvent{
		Provider:          "stripe",
		ProviderEventID:   event.ID,
		Type:              domain.EventTypeUpdated,
		CustomerRef:       sub.Customer,
		SubscriptionRef:   sub.ID,
		Plan:              plan,
		Status:            statusFromStripe(sub.Status),
		PeriodEnd:         periodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		OccurredAt:        eventTime(event.Created),
		RawPayload:        payload,
	}, nil
}

func (a *Adapter) parseSubscriptionDeleted(event stripeEvent, payload []byte) (*domain.SubscriptionEvent, error) {
	var sub stripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	return &domain.SubscriptionEvent{
		Provider:        "stripe",
		ProviderEventID: event.ID,
		Type:            domain.EventTypeCanceled,
		CustomerRef:     sub.Customer,
		SubscriptionRef: sub.ID,
		Status:          domain.SubscriptionStatusCanceled,
		OccurredAt:      eventTime(event.Created),
		RawPayload:      payload,
	}, nil
}

func statusFromStripe(status string) domain.SubscriptionStatus {
	switch strings.TrimSpace(status) {
	case "active", "trialing":
		return domain.SubscriptionStatusActive
	case "past_due", "unpaid":
		return domain.SubscriptionStatusPastDue
	default:
		return domain.SubscriptionStatusCanceled
	}
}

func parseSignatureHeader(header string) (string, []string, error) {
	parts := strings.Split(header, ",")
	var timestamp string
	signatures := []string{}
	for _, part := range parts {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		if key == "t" {
			timestamp = value
		}
		if key == "v1" {
			signatures = append(signatures, value)
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return "", nil, errors.New("invalid_signature")
	}
	return timestamp, signatures, nil
}

func eventTime(created int64) time.Time {
	if created == 0 {
		return time.Now().UTC()
	}
	return time.Unix(created, 0).UTC()
}
