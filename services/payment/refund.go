package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	orderRepo "learnify/database/repository/order"
	"learnify/models"
	"learnify/services/payment/gateway"

	"go.uber.org/zap"
)

// timeNow is swapped by tests to pin the refund window clock.
var timeNow = time.Now

// RequestRefund enforces the refund policy and, only once the policy
// passes, asks the gateway to reverse the charge. A gateway failure leaves
// the order COMPLETED: the refund simply did not happen.
func (s *DefaultPaymentService) RequestRefund(ctx context.Context, buyerID, orderNumber, reason string) (string, error) {
	order, err := s.loadScopedOrder(ctx, buyerID, orderNumber)
	if err != nil {
		return "", err
	}

	if !order.CanTransition(models.OrderRefunded) {
		return "", &PolicyViolationError{
			OrderNumber: order.OrderNumber,
			Reason:      fmt.Sprintf("refunds require a completed order, status is %s", order.Status),
		}
	}
	if order.PaidAt == nil {
		return "", &PolicyViolationError{
			OrderNumber: order.OrderNumber,
			Reason:      "order has no payment timestamp",
		}
	}
	deadline := order.PaidAt.Add(s.RefundWindow)
	if timeNow().After(deadline) {
		return "", &PolicyViolationError{
			OrderNumber: order.OrderNumber,
			Reason:      fmt.Sprintf("refund window expired on %s", deadline.Format("2006-01-02")),
		}
	}

	gw, err := s.lookupGateway(order.Gateway)
	if err != nil {
		return "", err
	}

	gwCtx, cancel := context.WithTimeout(ctx, gatewayCallTimeout)
	defer cancel()
	res, err := gw.Refund(gwCtx, gateway.RefundRequest{
		IntentRef:     order.GatewayIntentRef,
		SettlementRef: order.GatewaySettlementRef,
		Amount:        order.Total,
		Currency:      order.Currency,
		Reason:        reason,
	})
	if err != nil {
		s.Logger.Warn("gateway refund failed, order remains completed",
			zap.String("order", order.OrderNumber),
			zap.String("gateway", order.Gateway),
			zap.Error(err))
		return "", err
	}

	release, err := s.Locks.Acquire(ctx, order.OrderNumber)
	if err != nil {
		return "", err
	}
	defer release()

	refund := models.RefundRecord{
		Amount:      order.Total,
		Reason:      reason,
		ProcessedAt: timeNow(),
		Reference:   res.RefundRef,
		RequestedBy: buyerID,
	}
	if err := s.applyRefund(ctx, order, refund); err != nil {
		return "", err
	}

	s.Logger.Info("refund processed",
		zap.String("order", order.OrderNumber),
		zap.String("gateway", order.Gateway),
		zap.String("refund_ref", res.RefundRef),
		zap.Float64("amount", order.Total))
	return res.RefundRef, nil
}

// applyRefund appends the refund ledger entry, flips the payment entry, and
// takes the COMPLETED -> REFUNDED edge. Caller holds the per-order lock.
func (s *DefaultPaymentService) applyRefund(ctx context.Context, order *models.Order, refund models.RefundRecord) error {
	txn := &models.Transaction{
		BuyerID:         order.BuyerID,
		Amount:          -refund.Amount,
		Currency:        order.Currency,
		Type:            models.TransactionRefund,
		Status:          models.TransactionCompleted,
		Gateway:         order.Gateway,
		GatewayTxnID:    refund.Reference,
		OrderNumber:     order.OrderNumber,
		ProcessedAt:     &refund.ProcessedAt,
		GatewayResponse: map[string]interface{}{"refund_ref": refund.Reference},
	}
	if err := s.Ledger.Record(ctx, txn); err != nil {
		return err
	}
	if err := s.Ledger.MarkRefunded(ctx, order.Gateway, order.GatewayIntentRef); err != nil {
		s.Logger.Warn("could not flip payment ledger entry to refunded",
			zap.String("order", order.OrderNumber),
			zap.Error(err))
	}

	err := s.Orders.MarkRefunded(ctx, order.OrderNumber, refund)
	if errors.Is(err, orderRepo.ErrStatusConflict) {
		current, loadErr := s.Orders.GetByNumber(ctx, order.OrderNumber)
		if loadErr != nil {
			return loadErr
		}
		return &DuplicateEventError{OrderNumber: order.OrderNumber, Status: current.Status}
	}
	return err
}
