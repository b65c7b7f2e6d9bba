package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestPlanICUs(t *testing.T) {
	assert.Equal(t, int64(500), PlanICUs(models.PlanStarter))
	assert.Equal(t, int64(5_000), PlanICUs(models.PlanGrowth))
	assert.Equal(t, int64(20_000), PlanICUs(models.PlanScale))
	assert.Equal(t, int64(500), PlanICUs("unknown"))
}

func TestCapToICUsRoundsToNearest(t *testing.T) {
	tests := []struct {
		name string
		eur  float64
		want int64
	}{
		{"min cap", 10, 250},
		{"max cap", 500, 12_500},
		{"fractional rounds down", 10.01, 250},
		{"fractional rounds up", 10.03, 251},
		{"mid cap", 49.99, 1_250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CapToICUs(tt.eur))
		})
	}
}

func TestCostToICUsCeilsWithFloor(t *testing.T) {
	tests := []struct {
		name string
		cost float64
		want int64
	}{
		{"zero cost still costs one", 0, 1},
		{"tiny cost still costs one", 0.001, 1},
		{"exact unit", 0.04, 1},
		{"just over one unit", 0.041, 2},
		{"many units", 1.0, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CostToICUs(tt.cost))
		})
	}
}

func TestICUsForTokens(t *testing.T) {
	rates := TokenRates{PromptPer1K: 0.01, CompletionPer1K: 0.03}

	// 2000 prompt + 1000 completion = 0.02 + 0.03 = 0.05 EUR -> ceil(1.25) = 2
	assert.Equal(t, int64(2), ICUsForTokens(2000, 1000, rates))

	// Tiny turn still charges the one-ICU floor
	assert.Equal(t, int64(1), ICUsForTokens(10, 10, rates))
}

func TestValidatePaygCap(t *testing.T) {
	tests := []struct {
		name string
		plan string
		cap  float64
		ok   bool
	}{
		{"starter plan rejected", models.PlanStarter, 100, false},
		{"below minimum", models.PlanGrowth, 9.99, false},
		{"above maximum", models.PlanGrowth, 500.01, false},
		{"minimum accepted", models.PlanGrowth, 10, true},
		{"maximum accepted", models.PlanScale, 500, true},
		{"mid range accepted", models.PlanScale, 250, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, ok := ValidatePaygCap(tt.plan, tt.cap)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.NotEmpty(t, reason)
			}
		})
	}
}
