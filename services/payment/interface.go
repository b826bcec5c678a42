package payment

import (
	"context"
	"net/http"
	"time"

	orderRepo "learnify/database/repository/order"
	sequenceRepo "learnify/database/repository/sequence"
	transactionRepo "learnify/database/repository/transaction"
	"learnify/models"
	"learnify/services/catalog"
	"learnify/services/invoice"
	"learnify/services/payment/gateway"

	"go.uber.org/zap"
)

// IntentRequest starts a settlement for a buyer's cart.
type IntentRequest struct {
	BuyerID  string
	ItemIDs  []string
	Currency string
	Gateway  string
	// Amount is the client's expectation, checked against server-side
	// pricing when non-zero. Pricing is always authoritative.
	Amount float64
}

// IntentResponse carries what the client needs to complete the payment.
type IntentResponse struct {
	OrderNumber  string  `json:"orderNumber"`
	Gateway      string  `json:"gateway"`
	ClientSecret string  `json:"clientSecret,omitempty"`
	ApprovalLink string  `json:"approvalLink,omitempty"`
	Total        float64 `json:"total"`
	Currency     string  `json:"currency"`
}

// CompletionNotifier receives the fire-and-acknowledge notification after an
// order completes. Failures here never roll back settlement; the sink must
// retry out of band.
type CompletionNotifier interface {
	OrderCompleted(ctx context.Context, order *models.Order) error
}

// Service is the payment orchestrator: it creates intents, reconciles
// client confirmations and provider webhooks against local order and ledger
// state, and enforces the refund policy.
type Service interface {
	RegisterGateway(g gateway.Gateway)
	CreatePaymentIntent(ctx context.Context, req IntentRequest) (*IntentResponse, error)
	ProcessPayment(ctx context.Context, buyerID, orderNumber, gatewayName string) (*models.Order, error)
	HandleWebhook(ctx context.Context, gatewayName string, payload []byte, headers http.Header) error
	RequestRefund(ctx context.Context, buyerID, orderNumber, reason string) (string, error)
	GetOrder(ctx context.Context, buyerID, orderNumber string) (*models.Order, error)
	ListOrders(ctx context.Context, buyerID string) ([]models.Order, error)
}

// DefaultPaymentService implements Service.
type DefaultPaymentService struct {
	Orders       orderRepo.OrderRepository
	Ledger       transactionRepo.TransactionRepository
	Sequences    sequenceRepo.SequenceRepository
	Catalog      catalog.Service
	Invoices     invoice.Issuer
	Notifier     CompletionNotifier
	Locks        Locker
	RefundWindow time.Duration
	Logger       *zap.Logger

	gateways map[string]gateway.Gateway
}

// RegisterGateway adds a provider adapter to the registry. Registration
// happens once at startup, before the service takes requests.
func (s *DefaultPaymentService) RegisterGateway(g gateway.Gateway) {
	if s.gateways == nil {
		s.gateways = make(map[string]gateway.Gateway)
	}
	s.gateways[g.Name()] = g
}

// lookupGateway resolves a gateway name to a registered adapter.
func (s *DefaultPaymentService) lookupGateway(name string) (gateway.Gateway, error) {
	g, ok := s.gateways[name]
	if !ok {
		return nil, &ValidationError{Field: "gateway", Message: "unsupported payment gateway: " + name}
	}
	return g, nil
}
