package domain

// Fixed price-to-plan tables. Checkout prices live in Stripe; mobile products
// live in the app stores and reach us through RevenueCat product identifiers.

var stripePricePlans = map[string]Plan{
	"price_basic_monthly":      PlanBasic,
	"price_basic_yearly":       PlanBasic,
	"price_pro_monthly":        PlanPro,
	"price_pro_yearly":         PlanPro,
	"price_enterprise_monthly": PlanEnterprise,
	"price_enterprise_yearly":  PlanEnterprise,
}

var productPlans = map[string]Plan{
	"nodeboard.basic.monthly":      PlanBasic,
	"nodeboard.basic.annual":       PlanBasic,
	"nodeboard.pro.monthly":        PlanPro,
	"nodeboard.pro.annual":         PlanPro,
	"nodeboard.enterprise.monthly": PlanEnterprise,
	"nodeboard.enterprise.annual":  PlanEnterprise,
}

// PlanFromStripePrice maps a Stripe price id to a plan.
func PlanFromStripePrice(priceID string) (Plan, bool) {
	plan, ok := stripePricePlans[priceID]
	return plan, ok
}

// PlanFromProductID maps a store product id to a plan.
func PlanFromProductID(productID string) (Plan, bool) {
	plan, ok := productPlans[productID]
	return plan, ok
}
