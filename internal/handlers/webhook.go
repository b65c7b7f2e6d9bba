package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/Ramsey-B/fern/pkg/billing"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// StripeWebhookHandler handles Stripe billing webhooks. Subscription events
// drive the workspace plan; everything else is acknowledged and ignored.
type StripeWebhookHandler struct {
	workspaces    *repositories.WorkspaceRepository
	prices        billing.PriceMap
	webhookSecret string
	logger        ectologger.Logger
}

// NewStripeWebhookHandler creates a new Stripe webhook handler
func NewStripeWebhookHandler(workspaces *repositories.WorkspaceRepository, prices billing.PriceMap, webhookSecret string, logger ectologger.Logger) *StripeWebhookHandler {
	return &StripeWebhookHandler{
		workspaces:    workspaces,
		prices:        prices,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// Register registers the webhook route
func (h *StripeWebhookHandler) Register(g *echo.Group) {
	g.POST("/stripe", h.Handle)
}

// Handle verifies and processes one webhook event
func (h *StripeWebhookHandler) Handle(c echo.Context) error {
	ctx, span := tracing.StartSpan(c.Request().Context(), "StripeWebhookHandler.Handle")
	defer span.End()
	c.SetRequest(c.Request().WithContext(ctx))

	if h.webhookSecret == "" {
		return httperror.NewHTTPError(http.StatusServiceUnavailable, "billing webhooks are not configured").
			AddMetaValue("code", "STRIPE_UNCONFIGURED")
	}

	payload, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return BadRequest("failed to read webhook payload")
	}

	event, err := webhook.ConstructEvent(payload, c.Request().Header.Get("Stripe-Signature"), h.webhookSecret)
	if err != nil {
		metrics.StripeWebhooksTotal.WithLabelValues("unknown", "invalid_signature").Inc()
		return BadRequest("invalid webhook signature")
	}

	eventType := string(event.Type)
	switch eventType {
	case "customer.subscription.created", "customer.subscription.updated":
		err = h.syncSubscription(c, event, false)
	case "customer.subscription.deleted":
		err = h.syncSubscription(c, event, true)
	default:
		metrics.StripeWebhooksTotal.WithLabelValues(eventType, "ignored").Inc()
		return SuccessResponse(c, map[string]string{"status": "ignored"})
	}
	if err != nil {
		metrics.StripeWebhooksTotal.WithLabelValues(eventType, "error").Inc()
		return err
	}

	metrics.StripeWebhooksTotal.WithLabelValues(eventType, "ok").Inc()
	return SuccessResponse(c, map[string]string{"status": "processed"})
}

// syncSubscription applies a subscription event to the owning workspace.
// Deletion drops the workspace back to the starter plan.
func (h *StripeWebhookHandler) syncSubscription(c echo.Context, event stripe.Event, deleted bool) error {
	ctx := c.Request().Context()

	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return BadRequest("malformed subscription payload")
	}
	if sub.Customer == nil || sub.Customer.ID == "" {
		return BadRequest("subscription event has no customer")
	}

	plan := models.PlanStarter
	var subscriptionID *string
	if !deleted {
		var priceID string
		if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			priceID = sub.Items.Data[0].Price.ID
		}
		plan = h.prices.PlanForPrice(priceID)
		subscriptionID = &sub.ID
	}

	if err := h.workspaces.SyncSubscription(ctx, sub.Customer.ID, plan, subscriptionID); err != nil {
		return err
	}

	h.logger.WithContext(ctx).
		WithField("customer_id", sub.Customer.ID).
		WithField("plan", plan).
		Infof("Synced subscription from %s", event.Type)
	return nil
}
