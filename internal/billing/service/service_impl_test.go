package service_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nodeboard/nodeboard/internal/billing/adapters"
	"github.com/nodeboard/nodeboard/internal/billing/adapters/revenuecat"
	"github.com/nodeboard/nodeboard/internal/billing/adapters/stripe"
	billingdomain "github.com/nodeboard/nodeboard/internal/billing/domain"
	billingrepo "github.com/nodeboard/nodeboard/internal/billing/repository"
	billingservice "github.com/nodeboard/nodeboard/internal/billing/service"
	"github.com/nodeboard/nodeboard/internal/config"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const (
	stripeSecret     = "whsec_test"
	revenuecatSecret = "rc_secret"
)

type stubResolver struct {
	state *stripe.SubscriptionState
	err   error
}

func (s *stubResolver) GetSubscription(ctx context.Context, id string) (*stripe.SubscriptionState, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.state, nil
}

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	resolver *stubResolver
	svc      billingdomain.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := setupTestDB(t)
	node, err := snowflake.NewNode(11)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	resolver := &stubResolver{}
	registry := adapters.NewRegistry(
		stripe.NewAdapter(stripeSecret, resolver),
		revenuecat.NewAdapter(revenuecatSecret),
	)

	svc := billingservice.NewService(billingservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     billingrepo.Provide(),
		Adapters: registry,
		Cfg:      config.Config{Environment: "development"},
	})

	return &fixture{db: db, node: node, resolver: resolver, svc: svc}
}

func (f *fixture) ingestStripe(t *testing.T, payload []byte) error {
	t.Helper()

	headers := http.Header{}
	headers.Set("Stripe-Signature", buildStripeSignatureHeader(stripeSecret, payload, time.Now().Unix()))
	return f.svc.IngestWebhook(context.Background(), "stripe", payload, headers)
}

func (f *fixture) ingestRevenueCat(t *testing.T, payload []byte) error {
	t.Helper()

	mac := hmac.New(sha256.New, []byte(revenuecatSecret))
	_, _ = mac.Write(payload)
	headers := http.Header{}
	headers.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))
	return f.svc.IngestWebhook(context.Background(), "revenuecat", payload, headers)
}

func checkoutCompletedPayload(eventID string, userID snowflake.ID, created int64) []byte {
	payload, _ := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    "checkout.session.completed",
		"created": created,
		"data": map[string]any{
			"object": map[string]any{
				"id":           "cs_123",
				"customer":     "cus_123",
				"subscription": "sub_123",
				"metadata":     map[string]string{"user_id": userID.String()},
			},
		},
	})
	return payload
}

func subscriptionEventPayload(eventID, eventType, priceID, status string, created int64) []byte {
	payload, _ := json.Marshal(map[string]any{
		"id":      eventID,
		"type":    eventType,
		"created": created,
		"data": map[string]any{
			"object": map[string]any{
				"id":                   "sub_123",
				"customer":             "cus_123",
				"status":               status,
				"current_period_end":   created + 3600,
				"cancel_at_period_end": false,
				"items": map[string]any{
					"data": []map[string]any{{
						"price": map[string]any{"id": priceID},
					}},
				},
			},
		},
	})
	return payload
}

func revenueCatPayload(eventID, eventType string, userID snowflake.ID, productID, environment string, occurredMS int64) []byte {
	payload, _ := json.Marshal(map[string]any{
		"api_version": "1.0",
		"event": map[string]any{
			"id":                 eventID,
			"type":               eventType,
			"app_user_id":        userID.String(),
			"product_id":         productID,
			"environment":        environment,
			"event_timestamp_ms": occurredMS,
			"expiration_at_ms":   occurredMS + 30*24*3600*1000,
		},
	})
	return payload
}

func TestCheckoutActivatesSubscription(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.node.Generate()

	f.resolver.state = &stripe.SubscriptionState{
		PriceID:          "price_pro_monthly",
		Status:           "active",
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour).UTC(),
	}

	payload := checkoutCompletedPayload("evt_1", userID, time.Now().Unix())
	if err := f.ingestStripe(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	sub, err := f.svc.GetByUser(ctx, userID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.Plan != billingdomain.PlanPro {
		t.Fatalf("expected pro plan, got %s", sub.Plan)
	}
	if sub.Status != billingdomain.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", sub.Status)
	}
	if sub.StripeCustomerID == nil || *sub.StripeCustomerID != "cus_123" {
		t.Fatalf("expected stripe customer ref, got %+v", sub.StripeCustomerID)
	}
	if sub.CurrentPeriodEnd == nil {
		t.Fatalf("expected period end")
	}

	// A replayed delivery is acknowledged without reprocessing.
	if err := f.ingestStripe(t, payload); !errors.Is(err, billingdomain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected ErrEventAlreadyProcessed, got %v", err)
	}
}

func TestOutOfOrderEventsDiscarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.node.Generate()

	f.resolver.state = &stripe.SubscriptionState{
		PriceID:          "price_basic_monthly",
		Status:           "active",
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour).UTC(),
	}

	base := time.Now().Add(-time.Hour).Unix()
	if err := f.ingestStripe(t, checkoutCompletedPayload("evt_1", userID, base)); err != nil {
		t.Fatalf("ingest checkout: %v", err)
	}

	// Newest first: the upgrade lands before the stale update arrives.
	if err := f.ingestStripe(t, subscriptionEventPayload("evt_3", "customer.subscription.updated", "price_enterprise_monthly", "active", base+600)); err != nil {
		t.Fatalf("ingest upgrade: %v", err)
	}
	if err := f.ingestStripe(t, subscriptionEventPayload("evt_2", "customer.subscription.updated", "price_pro_monthly", "active", base+300)); err != nil {
		t.Fatalf("ingest stale update: %v", err)
	}

	sub, err := f.svc.GetByUser(ctx, userID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.Plan != billingdomain.PlanEnterprise {
		t.Fatalf("expected enterprise plan to survive stale event, got %s", sub.Plan)
	}
}

func TestSubscriptionDeletedKeepsPlan(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.node.Generate()

	f.resolver.state = &stripe.SubscriptionState{
		PriceID:          "price_pro_monthly",
		Status:           "active",
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour).UTC(),
	}

	base := time.Now().Add(-time.Hour).Unix()
	if err := f.ingestStripe(t, checkoutCompletedPayload("evt_1", userID, base)); err != nil {
		t.Fatalf("ingest checkout: %v", err)
	}
	if err := f.ingestStripe(t, subscriptionEventPayload("evt_2", "customer.subscription.deleted", "price_pro_monthly", "canceled", base+600)); err != nil {
		t.Fatalf("ingest deletion: %v", err)
	}

	sub, err := f.svc.GetByUser(ctx, userID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.Status != billingdomain.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %s", sub.Status)
	}
	// Cancellation keeps the last plan as a historical record.
	if sub.Plan != billingdomain.PlanPro {
		t.Fatalf("expected plan retained, got %s", sub.Plan)
	}
	if sub.CancelAtPeriodEnd {
		t.Fatalf("expected cancel flag cleared")
	}
}

func TestUpdateForUnmappedCustomerSkipped(t *testing.T) {
	f := newFixture(t)

	// No prior checkout: the customer ref resolves to nobody. The event is
	// acknowledged, logged, and its ledger row marked processed.
	payload := subscriptionEventPayload("evt_1", "customer.subscription.updated", "price_pro_monthly", "active", time.Now().Unix())
	if err := f.ingestStripe(t, payload); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := f.ingestStripe(t, payload); !errors.Is(err, billingdomain.ErrEventAlreadyProcessed) {
		t.Fatalf("expected ErrEventAlreadyProcessed, got %v", err)
	}
}

func TestRevenueCatLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	userID := f.node.Generate()

	base := time.Now().Add(-time.Hour).UnixMilli()
	if err := f.ingestRevenueCat(t, revenueCatPayload("rc_1", "INITIAL_PURCHASE", userID, "nodeboard.basic.monthly", "PRODUCTION", base)); err != nil {
		t.Fatalf("ingest purchase: %v", err)
	}

	sub, err := f.svc.GetByUser(ctx, userID)
	if err != nil {
		t.Fatalf("get subscription: %v", err)
	}
	if sub.Plan != billingdomain.PlanBasic || sub.Status != billingdomain.SubscriptionStatusActive {
		t.Fatalf("expected active basic, got %s/%s", sub.Plan, sub.Status)
	}
	if sub.RevenueCatSubscriberID == nil || *sub.RevenueCatSubscriberID != userID.String() {
		t.Fatalf("expected subscriber ref, got %+v", sub.RevenueCatSubscriberID)
	}

	if err := f.ingestRevenueCat(t, revenueCatPayload("rc_2", "BILLING_ISSUE", userID, "nodeboard.basic.monthly", "PRODUCTION", base+1000)); err != nil {
		t.Fatalf("ingest billing issue: %v", err)
	}
	sub, _ = f.svc.GetByUser(ctx, userID)
	if sub.Status != billingdomain.SubscriptionStatusPastDue {
		t.Fatalf("expected past_due, got %s", sub.Status)
	}

	if err := f.ingestRevenueCat(t, revenueCatPayload("rc_3", "EXPIRATION", userID, "nodeboard.basic.monthly", "PRODUCTION", base+2000)); err != nil {
		t.Fatalf("ingest expiration: %v", err)
	}
	sub, _ = f.svc.GetByUser(ctx, userID)
	if sub.Status != billingdomain.SubscriptionStatusCanceled {
		t.Fatalf("expected canceled, got %s", sub.Status)
	}

	// Transfers are a logged no-op.
	if err := f.ingestRevenueCat(t, revenueCatPayload("rc_4", "TRANSFER", userID, "", "PRODUCTION", base+3000)); err != nil {
		t.Fatalf("ingest transfer: %v", err)
	}
}

func TestSandboxDroppedInProduction(t *testing.T) {
	db := setupTestDB(t)
	node, err := snowflake.NewNode(12)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	registry := adapters.NewRegistry(revenuecat.NewAdapter(revenuecatSecret))
	svc := billingservice.NewService(billingservice.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Repo:     billingrepo.Provide(),
		Adapters: registry,
		Cfg:      config.Config{Environment: "production"},
	})

	userID := node.Generate()
	payload := revenueCatPayload("rc_sandbox", "INITIAL_PURCHASE", userID, "nodeboard.pro.monthly", "SANDBOX", time.Now().UnixMilli())
	mac := hmac.New(sha256.New, []byte(revenuecatSecret))
	_, _ = mac.Write(payload)
	headers := http.Header{}
	headers.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))

	if err := svc.IngestWebhook(context.Background(), "revenuecat", payload, headers); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if _, err := svc.GetByUser(context.Background(), userID); !errors.Is(err, billingdomain.ErrSubscriptionNotFound) {
		t.Fatalf("expected no subscription from sandbox event, got %v", err)
	}
}

func TestIngestRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.IngestWebhook(ctx, "paypal", []byte(`{}`), http.Header{}); !errors.Is(err, billingdomain.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}

	payload := []byte(`{"id":"evt_x","type":"checkout.session.completed"}`)
	headers := http.Header{}
	headers.Set("Stripe-Signature", buildStripeSignatureHeader("wrong_secret", payload, time.Now().Unix()))
	if err := f.svc.IngestWebhook(ctx, "stripe", payload, headers); !errors.Is(err, billingdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	rcHeaders := http.Header{}
	if err := f.svc.IngestWebhook(ctx, "revenuecat", payload, rcHeaders); !errors.Is(err, billingdomain.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}

	// Unknown event types are acknowledged, not failed.
	unknown := []byte(`{"id":"evt_y","type":"invoice.finalized"}`)
	unknownHeaders := http.Header{}
	unknownHeaders.Set("Stripe-Signature", buildStripeSignatureHeader(stripeSecret, unknown, time.Now().Unix()))
	if err := f.svc.IngestWebhook(ctx, "stripe", unknown, unknownHeaders); err != nil {
		t.Fatalf("expected unknown type to be ignored, got %v", err)
	}
}

func buildStripeSignatureHeader(secret string, payload []byte, timestamp int64) string {
	signedPayload := fmt.Sprintf("%d.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(signedPayload))
	signature := hex.EncodeToString(mac.Sum(nil))
	return fmt.Sprintf("t=%d,v1=%s", timestamp, signature)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_billing_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE subscriptions (
			user_id BIGINT PRIMARY KEY,
			plan TEXT NOT NULL,
			status TEXT NOT NULL,
			stripe_customer_id TEXT,
			stripe_subscription_id TEXT,
			revenuecat_subscriber_id TEXT,
			current_period_end TIMESTAMP,
			cancel_at_period_end BOOLEAN NOT NULL DEFAULT FALSE,
			last_event_source TEXT NOT NULL DEFAULT '',
			last_event_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE billing_events (
			id BIGINT PRIMARY KEY,
			provider TEXT NOT NULL,
			provider_event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT,
			received_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP
		)`,
		`CREATE UNIQUE INDEX ux_billing_events_provider_event ON billing_events(provider, provider_event_id)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}

	return db
}
