package billing

import "github.com/Ramsey-B/fern/pkg/models"

// PriceMap maps Stripe price ids to plans. Prices are configured per
// environment; an id the map doesn't know falls back to starter so a
// misconfigured webhook can never grant a paid quota.
type PriceMap struct {
	GrowthPriceID string
	ScalePriceID  string
}

// PlanForPrice resolves a Stripe price id to a plan name. An empty price id
// never matches, even when the configured ids are themselves unset.
func (p PriceMap) PlanForPrice(priceID string) string {
	if priceID == "" {
		return models.PlanStarter
	}
	switch priceID {
	case p.GrowthPriceID:
		return models.PlanGrowth
	case p.ScalePriceID:
		return models.PlanScale
	default:
		return models.PlanStarter
	}
}
