// Package revenuecat adapts RevenueCat webhook deliveries (the mobile billing
// aggregator) into canonical subscription events.
package revenuecat

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nodeboard/nodeboard/internal/billing/domain"
)

const signatureHeader = "X-Webhook-Signature"

type Adapter struct {
	webhookSecret string
}

func NewAdapter(webhookSecret string) *Adapter {
	return &Adapter{webhookSecret: strings.TrimSpace(webhookSecret)}
}

func (a *Adapter) Provider() string { return "revenuecat" }

// Verify checks the HMAC-SHA256 signature over the raw body. When no secret is
// configured verification is skipped; that is a documented deployment risk,
// not a bug.
func (a *Adapter) Verify(ctx context.Context, payload []byte, headers http.Header) error {
	if a.webhookSecret == "" {
		return nil
	}

	signature := strings.TrimSpace(headers.Get(signatureHeader))
	if signature == "" {
		return domain.ErrMissingSignature
	}

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

type envelope struct {
	APIVersion string       `json:"api_version"`
	Event      webhookEvent `json:"event"`
}

type webhookEvent struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	AppUserID        string `json:"app_user_id"`
	ProductID        string `json:"product_id"`
	Environment      string `json:"environment"`
	EventTimestampMS int64  `json:"event_timestamp_ms"`
	ExpirationAtMS   int64  `json:"expiration_at_ms"`
}

func (a *Adapter) Parse(ctx context.Context, payload []byte) (*domain.SubscriptionEvent, error) {
	var body envelope
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	event := body.Event
	if strings.TrimSpace(event.ID) == "" {
		return nil, domain.ErrInvalidEvent
	}

	// This provider supplies the application user id natively.
	userID, err := snowflake.ParseString(strings.TrimSpace(event.AppUserID))
	if err != nil || userID == 0 {
		return nil, domain.ErrInvalidEvent
	}

	canonical := &domain.SubscriptionEvent{
		Provider:        "revenuecat",
		ProviderEventID: event.ID,
		UserID:          userID,
		OccurredAt:      millisTime(event.EventTimestampMS),
		Sandbox:         strings.EqualFold(strings.TrimSpace(event.Environment), "SANDBOX"),
		RawPayload:      payload,
	}

	switch strings.ToUpper(strings.TrimSpace(event.Type)) {
	case "INITIAL_PURCHASE", "RENEWAL":
		plan, ok := domain.PlanFromProductID(strings.TrimSpace(event.ProductID))
		if !ok {
			return nil, domain.ErrUnknownPlan
		}
		canonical.Type = domain.EventTypeActivated
		canonical.Plan = plan
		canonical.Status = domain.SubscriptionStatusActive
		if event.ExpirationAtMS > 0 {
			t := millisTime(event.ExpirationAtMS)
			canonical.PeriodEnd = &t
		}
		return canonical, nil
	case "CANCELLATION", "EXPIRATION":
		canonical.Type = domain.EventTypeCanceled
		canonical.Status = domain.SubscriptionStatusCanceled
		return canonical, nil
	case "BILLING_ISSUE":
		canonical.Type = domain.EventTypeBillingIssue
		canonical.Status = domain.SubscriptionStatusPastDue
		return canonical, nil
	case "TRANSFER", "SUBSCRIBER_ALIAS":
		canonical.Type = domain.EventTypeSubscriberAlias
		return canonical, nil
	default:
		return nil, domain.ErrEventIgnored
	}
}

func millisTime(ms int64) time.Time {
	if ms == 0 {
		return time.Now().UTC()
	}
	return time.UnixMilli(ms).UTC()
}
