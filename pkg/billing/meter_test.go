package billing

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeWorkspaces struct {
	workspace *models.Workspace
}

func (f *fakeWorkspaces) GetByID(_ context.Context, _ uuid.UUID) (*models.Workspace, error) {
	return f.workspace, nil
}

type fakeUsage struct {
	used map[string]int64
}

func (f *fakeUsage) key(workspaceID uuid.UUID, period string) string {
	return workspaceID.String() + ":" + period
}

func (f *fakeUsage) GetUsed(_ context.Context, workspaceID uuid.UUID, period string) (int64, error) {
	return f.used[f.key(workspaceID, period)], nil
}

func (f *fakeUsage) Increment(_ context.Context, workspaceID uuid.UUID, period string, icus int64) (int64, error) {
	f.used[f.key(workspaceID, period)] += icus
	return f.used[f.key(workspaceID, period)], nil
}

func newTestMeter(ws *models.Workspace, usage *fakeUsage) *Meter {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	m := NewMeter(&fakeWorkspaces{workspace: ws}, usage, nil, logger)
	m.now = func() time.Time { return time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestMeterAuthorizeWithinQuota(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanStarter}
	usage := &fakeUsage{used: map[string]int64{}}
	m := newTestMeter(ws, usage)

	assert.NoError(t, m.Authorize(context.Background(), ws.ID))
}

func TestMeterAuthorizeDeniesAtLimit(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanStarter}
	usage := &fakeUsage{used: map[string]int64{}}
	m := newTestMeter(ws, usage)
	usage.used[usage.key(ws.ID, "2025-03")] = 500

	err := m.Authorize(context.Background(), ws.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusPaymentRequired, httperror.GetStatusCode(err))
}

func TestMeterAuthorizePaygExtendsQuota(t *testing.T) {
	ws := &models.Workspace{
		ID:          uuid.New(),
		Plan:        models.PlanGrowth,
		PaygEnabled: true,
		PaygCapICUs: 250,
	}
	usage := &fakeUsage{used: map[string]int64{}}
	m := newTestMeter(ws, usage)

	// At the base quota the pay-as-you-go pool still has room
	usage.used[usage.key(ws.ID, "2025-03")] = 5_000
	assert.NoError(t, m.Authorize(context.Background(), ws.ID))

	// Past base + cap the workspace is out of budget
	usage.used[usage.key(ws.ID, "2025-03")] = 5_250
	err := m.Authorize(context.Background(), ws.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusPaymentRequired, httperror.GetStatusCode(err))
}

func TestMeterChargeAccumulates(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanStarter}
	usage := &fakeUsage{used: map[string]int64{}}
	m := newTestMeter(ws, usage)

	m.Charge(context.Background(), ws.ID, "assistant.chat", 3)
	m.Charge(context.Background(), ws.ID, "assistant.chat", 2)

	assert.Equal(t, int64(5), usage.used[usage.key(ws.ID, "2025-03")])
}

func TestMeterChargeIgnoresNonPositive(t *testing.T) {
	ws := &models.Workspace{ID: uuid.New(), Plan: models.PlanStarter}
	usage := &fakeUsage{used: map[string]int64{}}
	m := newTestMeter(ws, usage)

	m.Charge(context.Background(), ws.ID, "assistant.chat", 0)
	m.Charge(context.Background(), ws.ID, "assistant.chat", -4)

	assert.Empty(t, usage.used)
}

func TestMeterSummary(t *testing.T) {
	ws := &models.Workspace{
		ID:          uuid.New(),
		Plan:        models.PlanScale,
		PaygEnabled: true,
		PaygCapICUs: 1_000,
	}
	usage := &fakeUsage{used: map[string]int64{}}
	m := newTestMeter(ws, usage)
	usage.used[usage.key(ws.ID, "2025-03")] = 19_500

	summary, err := m.Summary(context.Background(), ws.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03", summary.Period)
	assert.Equal(t, int64(20_000), summary.PlanICUs)
	assert.Equal(t, int64(19_500), summary.ICUsUsed)
	assert.Equal(t, int64(1_500), summary.ICUsRemaining)
}

func TestPriceMapFallsBackToStarter(t *testing.T) {
	prices := PriceMap{GrowthPriceID: "price_growth", ScalePriceID: "price_scale"}

	assert.Equal(t, models.PlanGrowth, prices.PlanForPrice("price_growth"))
	assert.Equal(t, models.PlanScale, prices.PlanForPrice("price_scale"))
	assert.Equal(t, models.PlanStarter, prices.PlanForPrice("price_unknown"))
}

func TestPriceMapNeverMatchesEmptyPriceID(t *testing.T) {
	// With no ids configured, an empty subscription price must not match the
	// empty configured values and grant a paid plan.
	unconfigured := PriceMap{}
	assert.Equal(t, models.PlanStarter, unconfigured.PlanForPrice(""))

	configured := PriceMap{GrowthPriceID: "price_growth", ScalePriceID: "price_scale"}
	assert.Equal(t, models.PlanStarter, configured.PlanForPrice(""))
}
