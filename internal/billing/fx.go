package billing

import (
	"github.com/nodeboard/nodeboard/internal/billing/adapters"
	"github.com/nodeboard/nodeboard/internal/billing/adapters/revenuecat"
	"github.com/nodeboard/nodeboard/internal/billing/adapters/stripe"
	"github.com/nodeboard/nodeboard/internal/billing/repository"
	"github.com/nodeboard/nodeboard/internal/billing/service"
	"github.com/nodeboard/nodeboard/internal/config"
	"go.uber.org/fx"
)

func newRegistry(cfg config.Config) *adapters.Registry {
	return adapters.NewRegistry(
		stripe.NewAdapter(cfg.StripeWebhookSecret, stripe.NewAPIResolver(cfg.StripeAPIKey)),
		revenuecat.NewAdapter(cfg.RevenueCatWebhookSecret),
	)
}

var Module = fx.Module("billing.service",
	fx.Provide(newRegistry),
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
