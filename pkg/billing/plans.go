// Package billing implements Intelligence Cost Unit (ICU) accounting: plan
// quotas, pay-as-you-go caps and the usage meter.
package billing

import (
	"math"

	"github.com/Ramsey-B/fern/pkg/models"
)

// ICUPriceEUR is the price of one Intelligence Cost Unit. Provider token cost
// and markup are folded into the per-token rates, so 1 ICU = €0.04 flat.
const ICUPriceEUR = 0.04

// Pay-as-you-go cap bounds in euros
const (
	PaygMinEUR = 10.0
	PaygMaxEUR = 500.0
)

// planICUs is the monthly ICU quota per plan
var planICUs = map[string]int64{
	models.PlanStarter: 500,
	models.PlanGrowth:  5_000,
	models.PlanScale:   20_000,
}

// PlanICUs returns the monthly ICU quota for a plan. Unknown plans get the
// starter quota.
func PlanICUs(plan string) int64 {
	if icus, ok := planICUs[plan]; ok {
		return icus
	}
	return planICUs[models.PlanStarter]
}

// CapToICUs converts a euro cap to its ICU equivalent, rounded to the
// nearest whole unit.
func CapToICUs(eur float64) int64 {
	return int64(math.Round(eur / ICUPriceEUR))
}

// CostToICUs converts a euro cost to ICUs, rounded up with a one-ICU floor.
// Every metered action costs at least one unit.
func CostToICUs(costEUR float64) int64 {
	icus := int64(math.Ceil(costEUR / ICUPriceEUR))
	if icus < 1 {
		return 1
	}
	return icus
}

// TokenRates holds the euro cost per 1000 tokens, markup included
type TokenRates struct {
	PromptPer1K     float64
	CompletionPer1K float64
}

// ICUsForTokens converts token usage to ICUs via the euro rates
func ICUsForTokens(promptTokens, completionTokens int, rates TokenRates) int64 {
	cost := float64(promptTokens)/1000*rates.PromptPer1K +
		float64(completionTokens)/1000*rates.CompletionPer1K
	return CostToICUs(cost)
}

// ValidatePaygCap checks a requested pay-as-you-go cap against the plan and
// bounds rules. It returns a descriptive reason when the cap is not allowed.
func ValidatePaygCap(plan string, capEUR float64) (reason string, ok bool) {
	if plan == models.PlanStarter {
		return "pay-as-you-go is not available on the starter plan", false
	}
	if capEUR < PaygMinEUR || capEUR > PaygMaxEUR {
		return "pay-as-you-go cap must be between €10 and €500", false
	}
	return "", true
}
