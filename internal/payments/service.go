// Package payments verifies gateway signatures and applies payment
// confirmations to orders and stock.
//
// Confirmation has two independent, unordered entry points: the browser's
// redirect callback (ConfirmBySignature) and the gateway's webhook
// (HandleWebhookEvent). Both apply the same transition — mark the order
// paid, decrement variant stock per item — with no already-processed check
// and no transaction spanning the order update and the stock decrements.
// A duplicate delivery decrements stock twice. This mirrors the behavior of
// the system this service fronts; the audit log makes such duplicates
// visible after the fact.
package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressandpolish/storefront/internal/catalog"
	"github.com/pressandpolish/storefront/internal/events"
	"github.com/pressandpolish/storefront/internal/orders"
	"github.com/pressandpolish/storefront/internal/payments/eventlog"
)

// Webhook event types the gateway delivers.
const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)

type Service struct {
	orders    orders.Repository
	products  catalog.Repository
	verifier  *Verifier
	log       eventlog.Repository // nil-safe: auditing skipped if nil
	publisher *events.Publisher   // nil-safe
	now       func() time.Time
}

func NewService(
	or orders.Repository,
	pr catalog.Repository,
	v *Verifier,
	log eventlog.Repository,
	pub *events.Publisher,
) *Service {
	return &Service{
		orders:    or,
		products:  pr,
		verifier:  v,
		log:       log,
		publisher: pub,
		now:       time.Now,
	}
}

// ConfirmBySignature is the redirect path: the browser posts the gateway
// order ID, payment ID and signature it received from the widget's success
// callback. On a valid signature the order is confirmed and stock is
// decremented for every item.
func (s *Service) ConfirmBySignature(ctx context.Context, gatewayOrderID, paymentID, signature string) (*orders.Order, error) {
	ev := eventlog.NewEvent(ctx, eventlog.SourceRedirect, "verify", eventlog.OutcomeProcessed)
	ev.GatewayOrderID = gatewayOrderID
	ev.PaymentID = paymentID

	if err := s.verifier.VerifyPaymentSignature(gatewayOrderID, paymentID, signature); err != nil {
		ev.Outcome = eventlog.OutcomeRejectedBadSig
		s.audit(ctx, ev)
		return nil, err
	}

	order, err := s.orders.GetByGatewayOrderID(ctx, gatewayOrderID)
	if err != nil {
		ev.Outcome = eventlog.OutcomeProcessingFailed
		ev.Detail = err.Error()
		s.audit(ctx, ev)
		return nil, err
	}
	ev.OrderID = order.ID.Hex()

	if err := s.confirm(ctx, order, paymentID); err != nil {
		ev.Outcome = eventlog.OutcomeProcessingFailed
		ev.Detail = err.Error()
		s.audit(ctx, ev)
		return nil, err
	}

	s.audit(ctx, ev)
	return order, nil
}

// WebhookEvent is the envelope the gateway posts. Identifiers live under
// payload.payment.entity for payment events and payload.order.entity for
// order events.
type WebhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID               string `json:"id"`
				OrderID          string `json:"order_id"`
				ErrorDescription string `json:"error_description"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// HandleWebhookEvent is the webhook path: signature over the raw body, then
// the same transition logic as the redirect path, applied independently.
func (s *Service) HandleWebhookEvent(ctx context.Context, body []byte, signature string) error {
	if err := s.verifier.VerifyWebhookSignature(body, signature); err != nil {
		ev := eventlog.NewEvent(ctx, eventlog.SourceWebhook, "unverified", eventlog.OutcomeRejectedBadSig)
		s.audit(ctx, ev)
		return err
	}

	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("payments: decode webhook body: %w", err)
	}

	ev := eventlog.NewEvent(ctx, eventlog.SourceWebhook, event.Event, eventlog.OutcomeProcessed)
	ev.GatewayOrderID = event.gatewayOrderID()
	ev.PaymentID = event.Payload.Payment.Entity.ID

	switch event.Event {
	case EventPaymentCaptured, EventOrderPaid:
		err := s.handleCaptured(ctx, &event, ev)
		s.audit(ctx, ev)
		return err

	case EventPaymentFailed:
		err := s.handleFailed(ctx, &event, ev)
		s.audit(ctx, ev)
		return err

	default:
		slog.WarnContext(ctx, "unknown webhook event type", "event", event.Event)
		ev.Outcome = eventlog.OutcomeSkippedUnknown
		s.audit(ctx, ev)
		return nil
	}
}

func (e *WebhookEvent) gatewayOrderID() string {
	if id := e.Payload.Payment.Entity.OrderID; id != "" {
		return id
	}
	return e.Payload.Order.Entity.ID
}

func (s *Service) handleCaptured(ctx context.Context, event *WebhookEvent, ev *eventlog.Event) error {
	order, err := s.orders.GetByGatewayOrderID(ctx, event.gatewayOrderID())
	if err != nil {
		ev.Outcome = eventlog.OutcomeProcessingFailed
		ev.Detail = err.Error()
		return fmt.Errorf("payments: webhook %s: %w", event.Event, err)
	}
	ev.OrderID = order.ID.Hex()

	if err := s.confirm(ctx, order, event.Payload.Payment.Entity.ID); err != nil {
		ev.Outcome = eventlog.OutcomeProcessingFailed
		ev.Detail = err.Error()
		return err
	}
	return nil
}

func (s *Service) handleFailed(ctx context.Context, event *WebhookEvent, ev *eventlog.Event) error {
	order, err := s.orders.GetByGatewayOrderID(ctx, event.gatewayOrderID())
	if err != nil {
		ev.Outcome = eventlog.OutcomeProcessingFailed
		ev.Detail = err.Error()
		return fmt.Errorf("payments: webhook %s: %w", event.Event, err)
	}
	ev.OrderID = order.ID.Hex()

	reason := event.Payload.Payment.Entity.ErrorDescription
	if err := s.orders.MarkPaymentFailed(ctx, order.ID, reason); err != nil {
		ev.Outcome = eventlog.OutcomeProcessingFailed
		ev.Detail = err.Error()
		return err
	}

	s.publish(ctx, order, "payment_failed")
	return nil
}

// confirm marks the order paid and decrements stock for each item. The two
// writes are not atomic: a crash between them leaves the order confirmed
// with stock untouched, and a second confirmation decrements stock again.
func (s *Service) confirm(ctx context.Context, order *orders.Order, paymentID string) error {
	paidAt := s.now().UTC()
	if err := s.orders.MarkPaid(ctx, order.ID, paymentID, paidAt); err != nil {
		return fmt.Errorf("payments: mark order %s paid: %w", order.ID.Hex(), err)
	}

	// Mirror the transition on the snapshot so callers returning the order
	// see the confirmed state, not the pre-payment fetch.
	order.Status = orders.StatusConfirmed
	order.Payment.Status = orders.PaymentPaid
	order.Payment.PaymentID = paymentID
	order.Payment.PaidAt = &paidAt

	for _, item := range order.Items {
		if err := s.products.DecrementStock(ctx, item.ProductID, item.Size, item.Design, item.Quantity); err != nil {
			return fmt.Errorf("payments: decrement stock for order %s: %w", order.ID.Hex(), err)
		}
	}

	s.publish(ctx, order, "confirmed")
	return nil
}

func (s *Service) publish(ctx context.Context, order *orders.Order, eventType string) {
	err := s.publisher.Publish(ctx, events.OrderEvent{
		OrderID:     order.ID.Hex(),
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID.Hex(),
		Type:        eventType,
		Total:       order.Amounts.Total,
		Occurred:    s.now().UTC(),
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish order event", "order_id", order.ID.Hex(), "type", eventType, "error", err)
	}
}

func (s *Service) audit(ctx context.Context, ev *eventlog.Event) {
	if s.log == nil {
		return
	}
	if err := s.log.Save(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "failed to append payment event", "gateway_order_id", ev.GatewayOrderID, "error", err)
	}
}
