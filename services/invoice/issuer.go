package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	invoiceRepo "learnify/database/repository/invoice"
	sequenceRepo "learnify/database/repository/sequence"
	"learnify/models"

	"go.uber.org/zap"
)

// ErrNotFound is returned when an invoice lookup matches nothing within the
// caller's scope.
var ErrNotFound = errors.New("invoice not found")

// Issuer generates immutable, sequentially numbered invoices for completed
// orders and backs the buyer-scoped read API.
type Issuer interface {
	Issue(ctx context.Context, order *models.Order) (*models.Invoice, error)
	GetByNumber(ctx context.Context, buyerID, invoiceNumber string) (*models.Invoice, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]models.Invoice, error)
}

// DefaultIssuerService implements Issuer.
type DefaultIssuerService struct {
	Repo      invoiceRepo.InvoiceRepository
	Sequences sequenceRepo.SequenceRepository
	Logger    *zap.Logger
}

// Issue creates the invoice for a completed order. It runs only as part of
// the completion protocol; re-invocation for an already-invoiced order
// returns the existing invoice unchanged.
func (s *DefaultIssuerService) Issue(ctx context.Context, order *models.Order) (*models.Invoice, error) {
	year := time.Now().Year()
	seq, err := s.Sequences.Next(ctx, fmt.Sprintf("invoices:%d", year))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate invoice number: %w", err)
	}

	now := time.Now()
	inv := &models.Invoice{
		InvoiceNumber: fmt.Sprintf("INV-%d-%06d", year, seq),
		OrderNumber:   order.OrderNumber,
		BuyerID:       order.BuyerID,
		Amount:        order.Subtotal - order.Discount,
		Tax:           order.Tax,
		Total:         order.Total,
		Status:        "paid",
		IssueDate:     now,
		DueDate:       now,
		PaidAt:        order.PaidAt,
		Billing: models.BillingSnapshot{
			BuyerID:  order.BuyerID,
			Gateway:  order.Gateway,
			Currency: order.Currency,
			Items:    append([]models.OrderLineItem(nil), order.Items...),
		},
	}

	err = s.Repo.Create(ctx, inv)
	if errors.Is(err, invoiceRepo.ErrAlreadyIssued) {
		existing, getErr := s.Repo.GetByOrderNumber(ctx, order.OrderNumber)
		if getErr != nil {
			return nil, fmt.Errorf("invoice exists for order %s but could not be loaded: %w", order.OrderNumber, getErr)
		}
		s.Logger.Debug("invoice already issued, returning existing",
			zap.String("order", order.OrderNumber),
			zap.String("invoice", existing.InvoiceNumber))
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to persist invoice: %w", err)
	}

	s.Logger.Info("invoice issued",
		zap.String("invoice", inv.InvoiceNumber),
		zap.String("order", order.OrderNumber),
		zap.Float64("total", inv.Total))
	return inv, nil
}

// GetByNumber returns an invoice, scoped to the requesting buyer.
func (s *DefaultIssuerService) GetByNumber(ctx context.Context, buyerID, invoiceNumber string) (*models.Invoice, error) {
	inv, err := s.Repo.GetByNumber(ctx, invoiceNumber)
	if errors.Is(err, invoiceRepo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if inv.BuyerID != buyerID {
		// Scope violations look identical to missing invoices.
		return nil, ErrNotFound
	}
	return inv, nil
}

// ListByBuyer returns the buyer's invoices, newest first.
func (s *DefaultIssuerService) ListByBuyer(ctx context.Context, buyerID string) ([]models.Invoice, error) {
	return s.Repo.ListByBuyer(ctx, buyerID)
}
