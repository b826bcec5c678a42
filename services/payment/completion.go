package payment

import (
	"context"
	"errors"
	"time"

	orderRepo "learnify/database/repository/order"
	transactionRepo "learnify/database/repository/transaction"
	"learnify/models"

	"go.uber.org/zap"
)

// settleCompletion is the completion protocol shared by the client-confirm
// path and the webhook path. Both triggers converge here; the conditional
// status update decides the winner and the loser exits with
// DuplicateEventError. Runs under the per-order lock so the winner's side
// effects finish before the loser re-reads state.
func (s *DefaultPaymentService) settleCompletion(ctx context.Context, order *models.Order, settlementRef string, raw map[string]interface{}) error {
	release, err := s.Locks.Acquire(ctx, order.OrderNumber)
	if err != nil {
		return err
	}
	defer release()

	paidAt := time.Now()
	err = s.Orders.MarkCompleted(ctx, order.OrderNumber, settlementRef, paidAt)
	if errors.Is(err, orderRepo.ErrStatusConflict) {
		current, loadErr := s.Orders.GetByNumber(ctx, order.OrderNumber)
		if loadErr != nil {
			return loadErr
		}
		if current.Status == models.OrderCompleted || current.Status == models.OrderRefunded {
			return &DuplicateEventError{OrderNumber: order.OrderNumber, Status: current.Status}
		}
		return &models.StatusConflictError{
			OrderNumber: order.OrderNumber,
			From:        current.Status,
			To:          models.OrderCompleted,
		}
	}
	if err != nil {
		return err
	}

	if err := s.Ledger.Settle(ctx, order.Gateway, order.GatewayIntentRef, models.TransactionCompleted, "", raw); err != nil {
		if errors.Is(err, transactionRepo.ErrNotFound) {
			s.Logger.Error("no pending ledger entry for completed order",
				zap.String("order", order.OrderNumber),
				zap.String("gateway", order.Gateway),
				zap.String("intent", order.GatewayIntentRef))
		} else {
			s.Logger.Error("ledger settle failed",
				zap.String("order", order.OrderNumber),
				zap.Error(err))
		}
	}

	completed := *order
	completed.Status = models.OrderCompleted
	completed.GatewaySettlementRef = settlementRef
	completed.PaidAt = &paidAt

	// Settlement is already durable; invoice and notification failures are
	// logged for out-of-band recovery, never rolled back.
	if _, err := s.Invoices.Issue(ctx, &completed); err != nil {
		s.Logger.Error("invoice issuance failed for completed order",
			zap.String("order", order.OrderNumber),
			zap.Error(err))
	}
	if s.Notifier != nil {
		if err := s.Notifier.OrderCompleted(ctx, &completed); err != nil {
			s.Logger.Error("completion notification failed",
				zap.String("order", order.OrderNumber),
				zap.Error(err))
		}
	}

	s.Logger.Info("order completed",
		zap.String("order", order.OrderNumber),
		zap.String("gateway", order.Gateway),
		zap.Float64("total", order.Total))
	return nil
}

// settleFailure is the failure protocol for an unambiguous decline.
func (s *DefaultPaymentService) settleFailure(ctx context.Context, order *models.Order, reason string) error {
	release, err := s.Locks.Acquire(ctx, order.OrderNumber)
	if err != nil {
		return err
	}
	defer release()

	err = s.Orders.MarkFailed(ctx, order.OrderNumber, reason)
	if errors.Is(err, orderRepo.ErrStatusConflict) {
		current, loadErr := s.Orders.GetByNumber(ctx, order.OrderNumber)
		if loadErr != nil {
			return loadErr
		}
		return &DuplicateEventError{OrderNumber: order.OrderNumber, Status: current.Status}
	}
	if err != nil {
		return err
	}

	if err := s.Ledger.Settle(ctx, order.Gateway, order.GatewayIntentRef, models.TransactionFailed, reason, nil); err != nil {
		if errors.Is(err, transactionRepo.ErrNotFound) {
			s.Logger.Warn("no pending ledger entry for failed order",
				zap.String("order", order.OrderNumber),
				zap.String("intent", order.GatewayIntentRef))
		} else {
			s.Logger.Error("ledger settle failed",
				zap.String("order", order.OrderNumber),
				zap.Error(err))
		}
	}

	s.Logger.Info("order failed",
		zap.String("order", order.OrderNumber),
		zap.String("gateway", order.Gateway),
		zap.String("reason", reason))
	return nil
}
