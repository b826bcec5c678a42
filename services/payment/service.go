package payment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	orderRepo "learnify/database/repository/order"
	"learnify/models"
	"learnify/services/catalog"
	"learnify/services/payment/gateway"

	"go.uber.org/zap"
)

// gatewayCallTimeout bounds every blocking provider call.
const gatewayCallTimeout = 20 * time.Second

// CreatePaymentIntent prices the cart, creates the PENDING order and ledger
// entry, and opens the provider-side intent. A gateway failure after order
// creation leaves the order PENDING: it can be retried or will expire, but
// never ends up orphaned in a later state.
func (s *DefaultPaymentService) CreatePaymentIntent(ctx context.Context, req IntentRequest) (*IntentResponse, error) {
	if req.BuyerID == "" {
		return nil, &ValidationError{Field: "buyer", Message: "missing buyer"}
	}
	if len(req.ItemIDs) == 0 {
		return nil, &ValidationError{Field: "itemIds", Message: "at least one item is required"}
	}
	if req.Currency == "" {
		return nil, &ValidationError{Field: "currency", Message: "missing currency"}
	}

	gw, err := s.lookupGateway(req.Gateway)
	if err != nil {
		return nil, err
	}
	// Checked before any state is created, so an unconfigured provider
	// leaves neither an order nor a ledger entry behind.
	if !gw.Configured() {
		return nil, &gateway.ConfigurationError{Gateway: gw.Name()}
	}

	cart, err := s.Catalog.PriceItems(ctx, req.ItemIDs)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownItem) {
			return nil, &ValidationError{Field: "itemIds", Message: err.Error()}
		}
		return nil, err
	}
	total := cart.Total()
	if req.Amount > 0 && math.Abs(req.Amount-total) > 0.005 {
		return nil, &ValidationError{
			Field:   "amount",
			Message: fmt.Sprintf("stated amount %.2f does not match priced total %.2f", req.Amount, total),
		}
	}

	number, err := s.nextOrderNumber(ctx)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		OrderNumber: number,
		BuyerID:     req.BuyerID,
		Items:       cart.Items,
		Subtotal:    cart.Subtotal,
		Tax:         cart.Tax,
		Discount:    cart.Discount,
		Total:       total,
		Currency:    req.Currency,
		Status:      models.OrderPending,
		Gateway:     gw.Name(),
	}
	if err := order.ValidateTotals(); err != nil {
		return nil, err
	}
	if err := s.Orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	gwCtx, cancel := context.WithTimeout(ctx, gatewayCallTimeout)
	defer cancel()
	intent, err := gw.CreateIntent(gwCtx, gateway.IntentRequest{
		OrderNumber: order.OrderNumber,
		BuyerID:     order.BuyerID,
		Amount:      order.Total,
		Currency:    order.Currency,
		Description: fmt.Sprintf("Order %s", order.OrderNumber),
	})
	if err != nil {
		s.Logger.Warn("intent creation failed, order left pending",
			zap.String("order", order.OrderNumber),
			zap.String("gateway", gw.Name()),
			zap.Error(err))
		return nil, err
	}

	txn := &models.Transaction{
		BuyerID:      order.BuyerID,
		Amount:       order.Total,
		Currency:     order.Currency,
		Type:         models.TransactionPayment,
		Status:       models.TransactionPending,
		Gateway:      gw.Name(),
		GatewayTxnID: intent.ProviderRef,
		OrderNumber:  order.OrderNumber,
	}
	if err := s.Ledger.Record(ctx, txn); err != nil {
		return nil, fmt.Errorf("failed to record ledger entry: %w", err)
	}
	if err := s.Orders.SetIntentRef(ctx, order.OrderNumber, gw.Name(), intent.ProviderRef); err != nil {
		return nil, fmt.Errorf("failed to store intent reference: %w", err)
	}

	s.Logger.Info("payment intent created",
		zap.String("order", order.OrderNumber),
		zap.String("gateway", gw.Name()),
		zap.String("intent", intent.ProviderRef),
		zap.Float64("total", order.Total))

	return &IntentResponse{
		OrderNumber:  order.OrderNumber,
		Gateway:      gw.Name(),
		ClientSecret: intent.ClientSecret,
		ApprovalLink: intent.ApprovalLink,
		Total:        order.Total,
		Currency:     order.Currency,
	}, nil
}

// ProcessPayment reconciles a client-confirmed payment. Safe to call twice:
// the second call observes a terminal order and reports DuplicateEventError
// instead of reapplying side effects.
func (s *DefaultPaymentService) ProcessPayment(ctx context.Context, buyerID, orderNumber, gatewayName string) (*models.Order, error) {
	order, err := s.loadScopedOrder(ctx, buyerID, orderNumber)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return order, &DuplicateEventError{OrderNumber: order.OrderNumber, Status: order.Status}
	}
	if gatewayName != "" && gatewayName != order.Gateway {
		return nil, &ValidationError{Field: "gateway", Message: "gateway does not match order"}
	}
	gw, err := s.lookupGateway(order.Gateway)
	if err != nil {
		return nil, err
	}
	if order.GatewayIntentRef == "" {
		return nil, &ValidationError{Field: "order", Message: "order has no payment intent"}
	}

	gwCtx, cancel := context.WithTimeout(ctx, gatewayCallTimeout)
	defer cancel()
	res, err := gw.Confirm(gwCtx, order.GatewayIntentRef)
	if err != nil {
		// Ambiguous and gateway errors both leave the order untouched: only
		// an unambiguous decline in the result moves it to FAILED.
		s.Logger.Warn("confirm did not yield a terminal outcome",
			zap.String("order", order.OrderNumber),
			zap.String("gateway", order.Gateway),
			zap.Error(err))
		return nil, err
	}

	if !res.Succeeded {
		if err := s.settleFailure(ctx, order, res.FailureReason); err != nil {
			return nil, err
		}
		return s.Orders.GetByNumber(ctx, order.OrderNumber)
	}

	if err := s.settleCompletion(ctx, order, res.SettlementRef, res.Raw); err != nil {
		var dup *DuplicateEventError
		if errors.As(err, &dup) {
			// The webhook won the race; the order is settled either way.
			return s.Orders.GetByNumber(ctx, order.OrderNumber)
		}
		return nil, err
	}
	return s.Orders.GetByNumber(ctx, order.OrderNumber)
}

// GetOrder returns an order, scoped to the requesting buyer.
func (s *DefaultPaymentService) GetOrder(ctx context.Context, buyerID, orderNumber string) (*models.Order, error) {
	return s.loadScopedOrder(ctx, buyerID, orderNumber)
}

// ListOrders returns the buyer's orders, newest first.
func (s *DefaultPaymentService) ListOrders(ctx context.Context, buyerID string) ([]models.Order, error) {
	return s.Orders.ListByBuyer(ctx, buyerID)
}

// loadScopedOrder fetches an order and hides it from other buyers. An empty
// buyerID skips the scope check (internal callers).
func (s *DefaultPaymentService) loadScopedOrder(ctx context.Context, buyerID, orderNumber string) (*models.Order, error) {
	order, err := s.Orders.GetByNumber(ctx, orderNumber)
	if errors.Is(err, orderRepo.ErrNotFound) {
		return nil, &ValidationError{Field: "order", Message: "unknown order"}
	}
	if err != nil {
		return nil, err
	}
	if buyerID != "" && order.BuyerID != buyerID {
		return nil, &ValidationError{Field: "order", Message: "unknown order"}
	}
	return order, nil
}

// nextOrderNumber allocates the next sequential human-readable order number.
func (s *DefaultPaymentService) nextOrderNumber(ctx context.Context) (string, error) {
	year := time.Now().Year()
	seq, err := s.Sequences.Next(ctx, fmt.Sprintf("orders:%d", year))
	if err != nil {
		return "", fmt.Errorf("failed to allocate order number: %w", err)
	}
	return fmt.Sprintf("ORD-%d-%04d", year, seq), nil
}
