package stripe

import (
	"context"
	"time"

	stripeapi "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// APIResolver resolves subscription state through the Stripe API.
type APIResolver struct {
	api *client.API
}

func NewAPIResolver(apiKey string) *APIResolver {
	api := &client.API{}
	api.Init(apiKey, nil)
	return &APIResolver{api: api}
}

func (r *APIResolver) GetSubscription(ctx context.Context, id string) (*SubscriptionState, error) {
	params := &stripeapi.SubscriptionParams{}
	params.Context = ctx

	sub, err := r.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, err
	}

	state := &SubscriptionState{
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.CurrentPeriodEnd > 0 {
		state.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		state.PriceID = sub.Items.Data[0].Price.ID
	}
	return state, nil
}
