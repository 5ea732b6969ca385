package revenuecat

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nodeboard/nodeboard/internal/billing/domain"
)

func signedHeaders(secret string, payload []byte) http.Header {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	headers := http.Header{}
	headers.Set("X-Webhook-Signature", hex.EncodeToString(mac.Sum(nil)))
	return headers
}

func eventPayload(t *testing.T, eventType string, userID snowflake.ID, productID, environment string) []byte {
	t.Helper()

	payload, err := json.Marshal(map[string]any{
		"api_version": "1.0",
		"event": map[string]any{
			"id":                 "rc_evt_1",
			"type":               eventType,
			"app_user_id":        userID.String(),
			"product_id":         productID,
			"environment":        environment,
			"event_timestamp_ms": time.Now().UnixMilli(),
			"expiration_at_ms":   time.Now().Add(30 * 24 * time.Hour).UnixMilli(),
		},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return payload
}

func TestVerifySignature(t *testing.T) {
	secret := "rc_secret"
	payload := []byte(`{"event":{"id":"rc_1"}}`)

	adapter := NewAdapter(secret)
	if err := adapter.Verify(context.Background(), payload, signedHeaders(secret, payload)); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	if err := adapter.Verify(context.Background(), payload, signedHeaders("wrong", payload)); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	if err := adapter.Verify(context.Background(), payload, http.Header{}); !errors.Is(err, domain.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}

	// Without a configured secret verification is skipped.
	open := NewAdapter("")
	if err := open.Verify(context.Background(), payload, http.Header{}); err != nil {
		t.Fatalf("expected permissive verify, got %v", err)
	}
}

func TestParseLifecycleEvents(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	userID := node.Generate()
	adapter := NewAdapter("rc_secret")

	tests := []struct {
		eventType  string
		wantType   domain.EventType
		wantStatus domain.SubscriptionStatus
	}{
		{"INITIAL_PURCHASE", domain.EventTypeActivated, domain.SubscriptionStatusActive},
		{"RENEWAL", domain.EventTypeActivated, domain.SubscriptionStatusActive},
		{"CANCELLATION", domain.EventTypeCanceled, domain.SubscriptionStatusCanceled},
		{"EXPIRATION", domain.EventTypeCanceled, domain.SubscriptionStatusCanceled},
		{"BILLING_ISSUE", domain.EventTypeBillingIssue, domain.SubscriptionStatusPastDue},
	}

	for _, tc := range tests {
		t.Run(tc.eventType, func(t *testing.T) {
			event, err := adapter.Parse(context.Background(), eventPayload(t, tc.eventType, userID, "nodeboard.pro.monthly", "PRODUCTION"))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if event.Type != tc.wantType {
				t.Fatalf("expected %s, got %s", tc.wantType, event.Type)
			}
			if event.Status != tc.wantStatus {
				t.Fatalf("expected status %s, got %s", tc.wantStatus, event.Status)
			}
			if event.UserID != userID {
				t.Fatalf("expected user %s, got %s", userID, event.UserID)
			}
			if event.Sandbox {
				t.Fatalf("production event flagged as sandbox")
			}
		})
	}
}

func TestParseActivationCarriesPlanAndPeriod(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	adapter := NewAdapter("rc_secret")

	event, err := adapter.Parse(context.Background(), eventPayload(t, "INITIAL_PURCHASE", node.Generate(), "nodeboard.enterprise.annual", "PRODUCTION"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.Plan != domain.PlanEnterprise {
		t.Fatalf("expected enterprise, got %s", event.Plan)
	}
	if event.PeriodEnd == nil {
		t.Fatalf("expected period end from expiration_at_ms")
	}
}

func TestParseRejections(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	userID := node.Generate()
	adapter := NewAdapter("rc_secret")

	if _, err := adapter.Parse(context.Background(), []byte(`not json`)); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
	if _, err := adapter.Parse(context.Background(), eventPayload(t, "PRODUCT_CHANGE", userID, "nodeboard.pro.monthly", "PRODUCTION")); !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
	if _, err := adapter.Parse(context.Background(), eventPayload(t, "INITIAL_PURCHASE", userID, "com.other.app", "PRODUCTION")); !errors.Is(err, domain.ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}

	event, err := adapter.Parse(context.Background(), eventPayload(t, "TRANSFER", userID, "", "SANDBOX"))
	if err != nil {
		t.Fatalf("parse transfer: %v", err)
	}
	if event.Type != domain.EventTypeSubscriberAlias || !event.Sandbox {
		t.Fatalf("expected sandbox alias event, got %+v", event)
	}
}
