package invoice

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	invoiceRepo "learnify/database/repository/invoice"
	"learnify/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memInvoiceRepo mirrors the unique order_number index of the mongo repo.
type memInvoiceRepo struct {
	mu       sync.Mutex
	byNumber map[string]*models.Invoice
	byOrder  map[string]*models.Invoice
}

func newMemInvoiceRepo() *memInvoiceRepo {
	return &memInvoiceRepo{
		byNumber: make(map[string]*models.Invoice),
		byOrder:  make(map[string]*models.Invoice),
	}
}

func (r *memInvoiceRepo) Create(ctx context.Context, inv *models.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byOrder[inv.OrderNumber]; ok {
		return invoiceRepo.ErrAlreadyIssued
	}
	cp := *inv
	r.byNumber[inv.InvoiceNumber] = &cp
	r.byOrder[inv.OrderNumber] = &cp
	return nil
}

func (r *memInvoiceRepo) GetByNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.byNumber[invoiceNumber]
	if !ok {
		return nil, invoiceRepo.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *memInvoiceRepo) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.byOrder[orderNumber]
	if !ok {
		return nil, invoiceRepo.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *memInvoiceRepo) ListByBuyer(ctx context.Context, buyerID string) ([]models.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Invoice
	for _, inv := range r.byOrder {
		if inv.BuyerID == buyerID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

type memSequences struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func (s *memSequences) Next(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[name]++
	return s.seqs[name], nil
}

func newIssuer() (*DefaultIssuerService, *memInvoiceRepo) {
	repo := newMemInvoiceRepo()
	svc := &DefaultIssuerService{
		Repo:      repo,
		Sequences: &memSequences{seqs: make(map[string]int64)},
		Logger:    zap.NewNop(),
	}
	return svc, repo
}

func completedOrder(number, buyer string) *models.Order {
	paidAt := time.Now()
	return &models.Order{
		OrderNumber: number,
		BuyerID:     buyer,
		Items:       []models.OrderLineItem{{CourseID: "course-go", Title: "Go", UnitPrice: 100, Quantity: 1}},
		Subtotal:    100,
		Tax:         7.5,
		Total:       107.5,
		Currency:    "usd",
		Status:      models.OrderCompleted,
		Gateway:     "stripe",
		PaidAt:      &paidAt,
	}
}

func TestIssueSnapshotsOrderTerms(t *testing.T) {
	svc, _ := newIssuer()

	inv, err := svc.Issue(context.Background(), completedOrder("ORD-2026-0001", "buyer-1"))
	require.NoError(t, err)
	assert.Regexp(t, `^INV-\d{4}-\d{6}$`, inv.InvoiceNumber)
	assert.Equal(t, "ORD-2026-0001", inv.OrderNumber)
	assert.Equal(t, 107.5, inv.Total)
	assert.Equal(t, 7.5, inv.Tax)
	assert.Equal(t, "paid", inv.Status)
	assert.Equal(t, "stripe", inv.Billing.Gateway)
	require.Len(t, inv.Billing.Items, 1)
	assert.Equal(t, "course-go", inv.Billing.Items[0].CourseID)
}

func TestIssueIsIdempotentPerOrder(t *testing.T) {
	svc, _ := newIssuer()
	order := completedOrder("ORD-2026-0002", "buyer-1")

	first, err := svc.Issue(context.Background(), order)
	require.NoError(t, err)

	second, err := svc.Issue(context.Background(), order)
	require.NoError(t, err)
	assert.Equal(t, first.InvoiceNumber, second.InvoiceNumber)

	invoices, err := svc.ListByBuyer(context.Background(), "buyer-1")
	require.NoError(t, err)
	assert.Len(t, invoices, 1)
}

func TestInvoiceNumbersStrictlyIncreaseUnderConcurrency(t *testing.T) {
	svc, repo := newIssuer()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			order := completedOrder(fmt.Sprintf("ORD-2026-1%03d", i), "buyer-1")
			_, err := svc.Issue(context.Background(), order)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for _, inv := range repo.byNumber {
		assert.False(t, seen[inv.InvoiceNumber], "duplicate invoice number %s", inv.InvoiceNumber)
		seen[inv.InvoiceNumber] = true
	}
	assert.Len(t, seen, n)
}

func TestGetByNumberScopedToBuyer(t *testing.T) {
	svc, _ := newIssuer()
	inv, err := svc.Issue(context.Background(), completedOrder("ORD-2026-0003", "buyer-1"))
	require.NoError(t, err)

	_, err = svc.GetByNumber(context.Background(), "buyer-2", inv.InvoiceNumber)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.GetByNumber(context.Background(), "buyer-1", inv.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, inv.InvoiceNumber, got.InvoiceNumber)
}
