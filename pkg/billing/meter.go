package billing

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/appctx"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// WorkspaceGetter loads workspaces for quota decisions
type WorkspaceGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Workspace, error)
}

// UsageStore reads and increments per-period ICU usage
type UsageStore interface {
	GetUsed(ctx context.Context, workspaceID uuid.UUID, period string) (int64, error)
	Increment(ctx context.Context, workspaceID uuid.UUID, period string, icus int64) (int64, error)
}

// Meter enforces workspace ICU quotas. Authorize is called before any
// LLM-backed operation, Charge after it succeeds.
type Meter struct {
	workspaces WorkspaceGetter
	usage      UsageStore
	emitter    *events.Emitter
	logger     ectologger.Logger
	now        func() time.Time
}

// NewMeter creates a new usage meter
func NewMeter(workspaces WorkspaceGetter, usage UsageStore, emitter *events.Emitter, logger ectologger.Logger) *Meter {
	return &Meter{
		workspaces: workspaces,
		usage:      usage,
		emitter:    emitter,
		logger:     logger,
		now:        time.Now,
	}
}

// CurrentPeriod returns the calendar-month period key ('YYYY-MM', UTC).
// Usage resets monthly because each month charges a fresh row.
func (m *Meter) CurrentPeriod() string {
	return m.now().UTC().Format("2006-01")
}

// limit returns the total ICUs available to a workspace this month
func limit(ws *models.Workspace) int64 {
	total := PlanICUs(ws.Plan)
	if ws.PaygEnabled {
		total += ws.PaygCapICUs
	}
	return total
}

// Authorize checks that the workspace has ICU budget left this month.
// Denial is a 402 with code BILLING_LIMIT_REACHED.
func (m *Meter) Authorize(ctx context.Context, workspaceID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "Meter.Authorize")
	defer span.End()

	ws, err := m.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return err
	}

	used, err := m.usage.GetUsed(ctx, workspaceID, m.CurrentPeriod())
	if err != nil {
		return err
	}

	if used >= limit(ws) {
		metrics.UsageRejectionsTotal.WithLabelValues(workspaceID.String()).Inc()
		m.logger.WithContext(ctx).WithFields(map[string]any{
			"workspace_id": workspaceID,
			"used":         used,
			"limit":        limit(ws),
		}).Warn("workspace hit its usage limit")
		return httperror.NewHTTPError(http.StatusPaymentRequired, "monthly usage limit reached").
			AddMetaValue("code", "BILLING_LIMIT_REACHED")
	}

	return nil
}

// Charge records ICUs used by an action. Charging is best-effort after the
// action succeeded; failures are logged, not returned, so a metering hiccup
// never fails a served request.
func (m *Meter) Charge(ctx context.Context, workspaceID uuid.UUID, action string, icus int64) {
	ctx, span := tracing.StartSpan(ctx, "Meter.Charge")
	defer span.End()

	if icus <= 0 {
		return
	}

	if _, err := m.usage.Increment(ctx, workspaceID, m.CurrentPeriod(), icus); err != nil {
		m.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"workspace_id": workspaceID,
			"action":       action,
			"icus":         icus,
		}).Error("failed to charge usage")
		return
	}

	metrics.RecordICUCharge(workspaceID.String(), action, float64(icus))
	_ = m.emitter.EmitUsageCharged(ctx, workspaceID.String(), appctx.GetUserID(ctx), action, icus)
}

// Summary returns the billing view of a workspace for the current period
func (m *Meter) Summary(ctx context.Context, workspaceID uuid.UUID) (*models.UsageSummary, error) {
	ctx, span := tracing.StartSpan(ctx, "Meter.Summary")
	defer span.End()

	ws, err := m.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	period := m.CurrentPeriod()
	used, err := m.usage.GetUsed(ctx, workspaceID, period)
	if err != nil {
		return nil, err
	}

	remaining := limit(ws) - used
	if remaining < 0 {
		remaining = 0
	}

	return &models.UsageSummary{
		WorkspaceID:   workspaceID,
		Period:        period,
		Plan:          ws.Plan,
		PlanICUs:      PlanICUs(ws.Plan),
		PaygEnabled:   ws.PaygEnabled,
		PaygCapICUs:   ws.PaygCapICUs,
		ICUsUsed:      used,
		ICUsRemaining: remaining,
	}, nil
}
