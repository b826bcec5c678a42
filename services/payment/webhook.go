package payment

import (
	"context"
	"errors"
	"net/http"

	orderRepo "learnify/database/repository/order"
	transactionRepo "learnify/database/repository/transaction"
	"learnify/models"
	"learnify/services/payment/gateway"

	"go.uber.org/zap"
)

// HandleWebhook reconciles an asynchronous provider notification. Providers
// deliver at least once, so everything after signature verification is
// acknowledged: duplicates, unknown references, and unhandled event types
// all return nil rather than triggering endless provider retries.
func (s *DefaultPaymentService) HandleWebhook(ctx context.Context, gatewayName string, payload []byte, headers http.Header) error {
	gw, err := s.lookupGateway(gatewayName)
	if err != nil {
		return err
	}

	evt, err := gw.VerifyWebhook(ctx, payload, headers)
	if err != nil {
		// Signature failures are the one webhook condition rejected outright.
		return err
	}

	log := s.Logger.With(
		zap.String("gateway", gatewayName),
		zap.String("event", string(evt.Kind)),
		zap.String("provider_type", evt.ProviderType))

	if evt.Kind == gateway.EventUnhandled {
		log.Debug("ignoring unhandled webhook event")
		return nil
	}

	order, err := s.locateOrder(ctx, gatewayName, evt)
	if err != nil {
		if errors.Is(err, orderRepo.ErrNotFound) {
			log.Warn("webhook references no known order",
				zap.String("provider_ref", evt.ProviderRef),
				zap.String("order_number", evt.OrderNumber))
			return nil
		}
		return err
	}
	log = log.With(zap.String("order", order.OrderNumber))

	// An event located via the order-number fallback can arrive before the
	// intent ref is stored on the order; the ledger entry is keyed by the
	// provider ref the event carries, so settle against that one.
	if order.GatewayIntentRef == "" && evt.ProviderRef != "" {
		order.GatewayIntentRef = evt.ProviderRef
	}

	switch evt.Kind {
	case gateway.EventPaymentSucceeded:
		if order.Status.Terminal() {
			log.Info("duplicate payment event for settled order, acknowledging")
			return nil
		}
		if err := s.settleCompletion(ctx, order, evt.SettlementRef, rawMap(evt)); err != nil {
			var dup *DuplicateEventError
			if errors.As(err, &dup) {
				log.Info("settlement raced ahead of webhook, acknowledging")
				return nil
			}
			return err
		}
	case gateway.EventPaymentFailed:
		if order.Status.Terminal() {
			// A failure notice after successful settlement is stale news.
			log.Info("duplicate failure event for settled order, acknowledging")
			return nil
		}
		if err := s.settleFailure(ctx, order, evt.FailureReason); err != nil {
			var dup *DuplicateEventError
			if errors.As(err, &dup) {
				log.Info("settlement raced ahead of webhook, acknowledging")
				return nil
			}
			return err
		}
	case gateway.EventRefundConfirmed:
		return s.reconcileRefundEvent(ctx, order, evt, log)
	}

	return nil
}

// locateOrder resolves the webhook's provider reference to a local order,
// falling back to the echoed order number when the provider sends one.
func (s *DefaultPaymentService) locateOrder(ctx context.Context, gatewayName string, evt *gateway.WebhookEvent) (*models.Order, error) {
	if evt.ProviderRef != "" {
		order, err := s.Orders.GetByIntentRef(ctx, gatewayName, evt.ProviderRef)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, orderRepo.ErrNotFound) {
			return nil, err
		}
	}
	if evt.OrderNumber != "" {
		return s.Orders.GetByNumber(ctx, evt.OrderNumber)
	}
	return nil, orderRepo.ErrNotFound
}

// reconcileRefundEvent handles a provider-confirmed refund. Usually the
// refund was initiated here and already applied, making the event a
// duplicate; a refund initiated on the provider's dashboard is applied now.
func (s *DefaultPaymentService) reconcileRefundEvent(ctx context.Context, order *models.Order, evt *gateway.WebhookEvent, log *zap.Logger) error {
	if order.Status == models.OrderRefunded {
		log.Info("duplicate refund event for refunded order, acknowledging")
		return nil
	}
	if !order.CanTransition(models.OrderRefunded) {
		log.Warn("refund event for order that never completed, acknowledging",
			zap.String("status", string(order.Status)))
		return nil
	}

	release, err := s.Locks.Acquire(ctx, order.OrderNumber)
	if err != nil {
		return err
	}
	defer release()

	refund := models.RefundRecord{
		Amount:      order.Total,
		Reason:      "refund confirmed by provider",
		ProcessedAt: timeNow(),
		Reference:   evt.RefundRef,
		RequestedBy: "provider",
	}
	if err := s.applyRefund(ctx, order, refund); err != nil {
		var dup *DuplicateEventError
		if errors.As(err, &dup) {
			log.Info("refund raced ahead of webhook, acknowledging")
			return nil
		}
		if errors.Is(err, transactionRepo.ErrDuplicateTransaction) {
			log.Info("refund ledger entry already recorded, acknowledging")
			return nil
		}
		return err
	}
	log.Info("provider-initiated refund applied", zap.String("refund_ref", evt.RefundRef))
	return nil
}

func rawMap(evt *gateway.WebhookEvent) map[string]interface{} {
	return map[string]interface{}{
		"event":          evt.ProviderType,
		"settlement_ref": evt.SettlementRef,
	}
}
