package payment

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	invoiceRepo "learnify/database/repository/invoice"
	orderRepo "learnify/database/repository/order"
	transactionRepo "learnify/database/repository/transaction"
	"learnify/models"
	"learnify/services/catalog"
	"learnify/services/payment/gateway"

	"go.uber.org/zap"
)

// memOrderRepo mirrors the conditional-update semantics of the mongo repo:
// every Mark* call is a check-and-set against the allowed source states.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*models.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*models.Order)}
}

func (r *memOrderRepo) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.OrderNumber]; ok {
		return fmt.Errorf("duplicate order number %s", order.OrderNumber)
	}
	cp := *order
	cp.CreatedAt = time.Now()
	r.orders[order.OrderNumber] = &cp
	return nil
}

func (r *memOrderRepo) GetByNumber(ctx context.Context, number string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[number]
	if !ok {
		return nil, orderRepo.ErrNotFound
	}
	cp := *order
	return &cp, nil
}

func (r *memOrderRepo) GetByIntentRef(ctx context.Context, gatewayName, intentRef string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.orders {
		if order.Gateway == gatewayName && order.GatewayIntentRef == intentRef {
			cp := *order
			return &cp, nil
		}
	}
	return nil, orderRepo.ErrNotFound
}

func (r *memOrderRepo) ListByBuyer(ctx context.Context, buyerID string) ([]models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, order := range r.orders {
		if order.BuyerID == buyerID {
			out = append(out, *order)
		}
	}
	return out, nil
}

func (r *memOrderRepo) SetIntentRef(ctx context.Context, number, gatewayName, intentRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[number]
	if !ok {
		return orderRepo.ErrNotFound
	}
	if order.GatewayIntentRef != "" && order.GatewayIntentRef != intentRef {
		return orderRepo.ErrStatusConflict
	}
	order.Gateway = gatewayName
	order.GatewayIntentRef = intentRef
	return nil
}

func (r *memOrderRepo) eligible(status models.OrderStatus) bool {
	for _, s := range models.SettlementEligible {
		if s == status {
			return true
		}
	}
	return false
}

func (r *memOrderRepo) MarkCompleted(ctx context.Context, number, settlementRef string, paidAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[number]
	if !ok || !r.eligible(order.Status) {
		return orderRepo.ErrStatusConflict
	}
	order.Status = models.OrderCompleted
	order.GatewaySettlementRef = settlementRef
	order.PaidAt = &paidAt
	return nil
}

func (r *memOrderRepo) MarkFailed(ctx context.Context, number, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[number]
	if !ok || !r.eligible(order.Status) {
		return orderRepo.ErrStatusConflict
	}
	order.Status = models.OrderFailed
	order.CancellationReason = reason
	return nil
}

func (r *memOrderRepo) MarkRefunded(ctx context.Context, number string, refund models.RefundRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[number]
	if !ok || order.Status != models.OrderCompleted {
		return orderRepo.ErrStatusConflict
	}
	order.Status = models.OrderRefunded
	order.Refund = &refund
	return nil
}

func (r *memOrderRepo) CancelStalePending(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, order := range r.orders {
		if order.Status == models.OrderPending && order.CreatedAt.Before(cutoff) {
			order.Status = models.OrderCancelled
			order.CancellationReason = reason
			n++
		}
	}
	return n, nil
}

// memLedger enforces the unique (gateway, gateway_txn_id) natural key the
// way the mongo index does.
type memLedger struct {
	mu      sync.Mutex
	entries []*models.Transaction
}

func newMemLedger() *memLedger {
	return &memLedger{}
}

func (l *memLedger) key(gatewayName, txnID string) string {
	return gatewayName + "/" + txnID
}

func (l *memLedger) find(gatewayName, txnID string) *models.Transaction {
	for _, e := range l.entries {
		if e.Gateway == gatewayName && e.GatewayTxnID == txnID {
			return e
		}
	}
	return nil
}

func (l *memLedger) Record(ctx context.Context, txn *models.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.find(txn.Gateway, txn.GatewayTxnID) != nil {
		return transactionRepo.ErrDuplicateTransaction
	}
	cp := *txn
	cp.CreatedAt = time.Now()
	l.entries = append(l.entries, &cp)
	return nil
}

func (l *memLedger) Settle(ctx context.Context, gatewayName, gatewayTxnID string, status models.TransactionStatus, failureReason string, response map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.find(gatewayName, gatewayTxnID)
	if e == nil || e.Status != models.TransactionPending {
		return transactionRepo.ErrNotFound
	}
	now := time.Now()
	e.Status = status
	e.FailureReason = failureReason
	e.GatewayResponse = response
	e.ProcessedAt = &now
	return nil
}

func (l *memLedger) MarkRefunded(ctx context.Context, gatewayName, gatewayTxnID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.find(gatewayName, gatewayTxnID)
	if e == nil || e.Status != models.TransactionCompleted {
		return nil
	}
	now := time.Now()
	e.Status = models.TransactionRefunded
	e.RefundedAt = &now
	return nil
}

func (l *memLedger) GetByGatewayTxnID(ctx context.Context, gatewayName, gatewayTxnID string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e := l.find(gatewayName, gatewayTxnID)
	if e == nil {
		return nil, transactionRepo.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (l *memLedger) ListByOrder(ctx context.Context, orderNumber string) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Transaction
	for _, e := range l.entries {
		if e.OrderNumber == orderNumber {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (l *memLedger) ListByBuyer(ctx context.Context, buyerID string) ([]models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []models.Transaction
	for _, e := range l.entries {
		if e.BuyerID == buyerID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type memSequences struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func newMemSequences() *memSequences {
	return &memSequences{seqs: make(map[string]int64)}
}

func (s *memSequences) Next(ctx context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[name]++
	return s.seqs[name], nil
}

// fixedCatalog prices every known item at a flat price with no tax.
type fixedCatalog struct {
	prices map[string]float64
	tax    float64
}

func (c *fixedCatalog) PriceItems(ctx context.Context, itemIDs []string) (*catalog.PricedCart, error) {
	cart := &catalog.PricedCart{}
	for _, id := range itemIDs {
		price, ok := c.prices[id]
		if !ok {
			return nil, fmt.Errorf("%w: %s", catalog.ErrUnknownItem, id)
		}
		cart.Items = append(cart.Items, models.OrderLineItem{CourseID: id, Title: id, UnitPrice: price, Quantity: 1})
		cart.Subtotal += price
		cart.Tax += price * c.tax
	}
	return cart, nil
}

// memInvoices issues at most one invoice per order.
type memInvoices struct {
	mu       sync.Mutex
	byOrder  map[string]*models.Invoice
	issueErr error
	seq      int
}

func newMemInvoices() *memInvoices {
	return &memInvoices{byOrder: make(map[string]*models.Invoice)}
}

func (i *memInvoices) Issue(ctx context.Context, order *models.Order) (*models.Invoice, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.issueErr != nil {
		return nil, i.issueErr
	}
	if inv, ok := i.byOrder[order.OrderNumber]; ok {
		return inv, nil
	}
	i.seq++
	inv := &models.Invoice{
		InvoiceNumber: fmt.Sprintf("INV-2026-%06d", i.seq),
		OrderNumber:   order.OrderNumber,
		BuyerID:       order.BuyerID,
		Total:         order.Total,
		Status:        "paid",
	}
	i.byOrder[order.OrderNumber] = inv
	return inv, nil
}

func (i *memInvoices) GetByNumber(ctx context.Context, buyerID, invoiceNumber string) (*models.Invoice, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, inv := range i.byOrder {
		if inv.InvoiceNumber == invoiceNumber && inv.BuyerID == buyerID {
			return inv, nil
		}
	}
	return nil, invoiceRepo.ErrNotFound
}

func (i *memInvoices) ListByBuyer(ctx context.Context, buyerID string) ([]models.Invoice, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	var out []models.Invoice
	for _, inv := range i.byOrder {
		if inv.BuyerID == buyerID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

type recordingNotifier struct {
	mu        sync.Mutex
	completed []string
	err       error
}

func (n *recordingNotifier) OrderCompleted(ctx context.Context, order *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.completed = append(n.completed, order.OrderNumber)
	return nil
}

// fakeGateway scripts provider behavior per test.
type fakeGateway struct {
	name       string
	configured bool

	intentResult *gateway.IntentResult
	intentErr    error

	confirmResult *gateway.ConfirmResult
	confirmErr    error
	confirmCalls  int

	refundResult *gateway.RefundResult
	refundErr    error
	refundCalls  int

	webhookEvent *gateway.WebhookEvent
	webhookErr   error
}

func newFakeGateway(name string) *fakeGateway {
	return &fakeGateway{
		name:       name,
		configured: true,
		intentResult: &gateway.IntentResult{
			ProviderRef:  "pi_" + name + "_1",
			ClientSecret: "secret_1",
		},
	}
}

func (g *fakeGateway) Name() string     { return g.name }
func (g *fakeGateway) Configured() bool { return g.configured }

func (g *fakeGateway) CreateIntent(ctx context.Context, req gateway.IntentRequest) (*gateway.IntentResult, error) {
	if g.intentErr != nil {
		return nil, g.intentErr
	}
	return g.intentResult, nil
}

func (g *fakeGateway) Confirm(ctx context.Context, providerRef string) (*gateway.ConfirmResult, error) {
	g.confirmCalls++
	if g.confirmErr != nil {
		return nil, g.confirmErr
	}
	return g.confirmResult, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req gateway.RefundRequest) (*gateway.RefundResult, error) {
	g.refundCalls++
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return g.refundResult, nil
}

func (g *fakeGateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*gateway.WebhookEvent, error) {
	if g.webhookErr != nil {
		return nil, g.webhookErr
	}
	return g.webhookEvent, nil
}

type paymentFixture struct {
	svc      *DefaultPaymentService
	orders   *memOrderRepo
	ledger   *memLedger
	invoices *memInvoices
	notifier *recordingNotifier
	gateway  *fakeGateway
}

func newPaymentFixture(t interface{ Helper() }) *paymentFixture {
	t.Helper()
	f := &paymentFixture{
		orders:   newMemOrderRepo(),
		ledger:   newMemLedger(),
		invoices: newMemInvoices(),
		notifier: &recordingNotifier{},
		gateway:  newFakeGateway("stripe"),
	}
	f.svc = &DefaultPaymentService{
		Orders:    f.orders,
		Ledger:    f.ledger,
		Sequences: newMemSequences(),
		Catalog: &fixedCatalog{
			prices: map[string]float64{"course-go": 100, "course-db": 50},
		},
		Invoices:     f.invoices,
		Notifier:     f.notifier,
		Locks:        NewMemoryLocker(),
		RefundWindow: 30 * 24 * time.Hour,
		Logger:       zap.NewNop(),
	}
	f.svc.RegisterGateway(f.gateway)
	return f
}
