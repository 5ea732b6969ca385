package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/nodeboard/nodeboard/internal/billing/adapters"
	"github.com/nodeboard/nodeboard/internal/billing/domain"
	"github.com/nodeboard/nodeboard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Adapters *adapters.Registry
	Cfg      config.Config
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	adapters   *adapters.Registry
	production bool
}

func NewService(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("billing.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		adapters:   p.Adapters,
		production: p.Cfg.IsProduction(),
	}
}

// IngestWebhook verifies, deduplicates, and applies one provider delivery.
// Signature failures propagate so the boundary can reject the request;
// everything after a valid signature is this service's problem and must not
// trigger provider-side retries.
func (s *Service) IngestWebhook(ctx context.Context, provider string, payload []byte, headers http.Header) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	adapter, ok := s.adapters.Adapter(provider)
	if !ok {
		return domain.ErrProviderNotFound
	}

	if err := adapter.Verify(ctx, payload, headers); err != nil {
		return err
	}

	event, err := adapter.Parse(ctx, payload)
	if err != nil {
		if errors.Is(err, domain.ErrEventIgnored) {
			s.log.Debug("webhook event ignored", zap.String("provider", provider))
			return nil
		}
		if errors.Is(err, domain.ErrUnknownPlan) {
			s.log.Warn("webhook price has no plan mapping", zap.String("provider", provider))
			return nil
		}
		s.log.Warn("webhook event unparseable",
			zap.String("provider", provider),
			zap.Error(err))
		return nil
	}

	if event.Sandbox && s.production {
		s.log.Info("sandbox event dropped in production",
			zap.String("provider", provider),
			zap.String("event_id", event.ProviderEventID))
		return nil
	}

	return s.processEvent(ctx, event)
}

func (s *Service) GetByUser(ctx context.Context, userID snowflake.ID) (*domain.Subscription, error) {
	return s.repo.FindByUser(ctx, s.db, userID)
}

func (s *Service) processEvent(ctx context.Context, event *domain.SubscriptionEvent) error {
	now := time.Now().UTC()
	received := domain.EventRecord{
		ID:              s.genID.Generate(),
		Provider:        event.Provider,
		ProviderEventID: event.ProviderEventID,
		EventType:       string(event.Type),
		Payload:         datatypes.JSON(event.RawPayload),
		ReceivedAt:      now,
	}

	// The ledger insert is the idempotency gate: applying is conditional on
	// the (provider, event id) pair landing here for the first time.
	inserted, err := s.repo.InsertEvent(ctx, s.db, &received)
	if err != nil {
		return err
	}
	stored := &received
	if !inserted {
		stored, err = s.repo.FindEvent(ctx, s.db, event.Provider, event.ProviderEventID)
		if err != nil {
			return err
		}
		if stored == nil {
			return domain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return domain.ErrEventAlreadyProcessed
		}
		// A prior delivery inserted the record but crashed before applying;
		// the apply below is safe to run again.
	}

	if err := s.apply(ctx, event); err != nil {
		return err
	}

	return s.repo.MarkProcessed(ctx, s.db, stored.ID, now)
}

func (s *Service) apply(ctx context.Context, event *domain.SubscriptionEvent) error {
	switch event.Type {
	case domain.EventTypeActivated:
		return s.applyActivation(ctx, event)
	case domain.EventTypeUpdated:
		return s.applyStripeUpdate(ctx, event)
	case domain.EventTypeCanceled:
		return s.applyCancellation(ctx, event)
	case domain.EventTypeBillingIssue:
		return s.applyStatus(ctx, event, domain.SubscriptionStatusPastDue)
	case domain.EventTypeSubscriberAlias:
		s.log.Info("subscriber alias event",
			zap.String("provider", event.Provider),
			zap.String("user_id", event.UserID.String()))
		return nil
	default:
		return domain.ErrInvalidEvent
	}
}

func (s *Service) applyActivation(ctx context.Context, event *domain.SubscriptionEvent) error {
	if event.UserID == 0 {
		return domain.ErrInvalidEvent
	}

	now := time.Now().UTC()
	eventAt := event.OccurredAt
	sub := domain.Subscription{
		UserID:            event.UserID,
		Plan:              event.Plan,
		Status:            domain.SubscriptionStatusActive,
		CurrentPeriodEnd:  event.PeriodEnd,
		CancelAtPeriodEnd: event.CancelAtPeriodEnd,
		LastEventSource:   event.Provider,
		LastEventAt:       &eventAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if ref := strings.TrimSpace(event.CustomerRef); ref != "" {
		sub.StripeCustomerID = &ref
	}
	if ref := strings.TrimSpace(event.SubscriptionRef); ref != "" {
		sub.StripeSubscriptionID = &ref
	}
	if event.Provider == "revenuecat" {
		subscriber := event.UserID.String()
		sub.RevenueCatSubscriberID = &subscriber
		sub.StripeCustomerID = nil
		sub.StripeSubscriptionID = nil
	}

	applied, err := s.repo.UpsertActivation(ctx, s.db, sub)
	if err != nil {
		return err
	}
	if !applied {
		s.logDiscarded(event)
	}
	return nil
}

func (s *Service) applyStripeUpdate(ctx context.Context, event *domain.SubscriptionEvent) error {
	// Update events carry only the provider customer reference; without an
	// existing mapping there is no user to update.
	if _, err := s.repo.FindByStripeCustomer(ctx, s.db, event.CustomerRef); err != nil {
		if errors.Is(err, domain.ErrSubscriptionNotFound) {
			s.log.Warn("subscription update for unmapped customer",
				zap.String("customer_ref", event.CustomerRef))
			return nil
		}
		return err
	}

	applied, err := s.repo.UpdateByStripeSubscription(ctx, s.db,
		event.SubscriptionRef, event.Plan, event.Status, event.PeriodEnd,
		event.CancelAtPeriodEnd, event.OccurredAt)
	if err != nil {
		return err
	}
	if !applied {
		s.logDiscarded(event)
	}
	return nil
}

func (s *Service) applyCancellation(ctx context.Context, event *domain.SubscriptionEvent) error {
	var applied bool
	var err error
	if ref := strings.TrimSpace(event.SubscriptionRef); ref != "" {
		applied, err = s.repo.CancelByStripeSubscription(ctx, s.db, ref, event.OccurredAt)
	} else {
		applied, err = s.repo.UpdateStatusByUser(ctx, s.db, event.UserID,
			domain.SubscriptionStatusCanceled, event.Provider, event.OccurredAt)
	}
	if err != nil {
		return err
	}
	if !applied {
		s.logDiscarded(event)
	}
	return nil
}

func (s *Service) applyStatus(ctx context.Context, event *domain.SubscriptionEvent, status domain.SubscriptionStatus) error {
	if event.UserID == 0 {
		return domain.ErrInvalidEvent
	}
	applied, err := s.repo.UpdateStatusByUser(ctx, s.db, event.UserID, status, event.Provider, event.OccurredAt)
	if err != nil {
		return err
	}
	if !applied {
		s.logDiscarded(event)
	}
	return nil
}

func (s *Service) logDiscarded(event *domain.SubscriptionEvent) {
	s.log.Info("stale or unmatched event discarded",
		zap.String("provider", event.Provider),
		zap.String("event_id", event.ProviderEventID),
		zap.String("event_type", string(event.Type)),
		zap.Time("occurred_at", event.OccurredAt))
}
