package gateway

import (
	"context"
	"encoding/json"
	"net/http"
)

// Providers disagree on capture-vs-authorize semantics, on synchronous
// vs. webhook-confirmed completion, and on refund support. The Gateway
// contract isolates that variance so the payment service reasons only in
// provider-neutral terms.
type Gateway interface {
	Name() string
	// Configured reports whether provider credentials are present. Missing
	// credentials are a runtime condition surfaced as a ConfigurationError
	// by the operational methods, never a crash.
	Configured() bool
	CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error)
	// Confirm reads the provider-side outcome of an intent. It is
	// idempotent: confirming an already-settled intent returns the same
	// result without re-charging.
	Confirm(ctx context.Context, providerRef string) (*ConfirmResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	// VerifyWebhook authenticates an inbound provider notification and maps
	// it to the neutral event union. Callers must reject payloads that fail
	// verification before acting on them.
	VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookEvent, error)
}

// IntentRequest is the provider-neutral request to open a payment intent.
type IntentRequest struct {
	OrderNumber string
	BuyerID     string
	Amount      float64
	Currency    string
	Description string
	Metadata    map[string]string
}

// IntentResult carries what the client needs to complete the payment:
// a client secret for card-network providers, an approval link for wallets.
type IntentResult struct {
	ProviderRef  string
	ClientSecret string
	ApprovalLink string
	Status       string
}

// ConfirmResult is the provider's answer about an intent's outcome.
// Succeeded=false means an unambiguous decline; ambiguous outcomes are
// reported as AmbiguousOutcomeError instead.
type ConfirmResult struct {
	Succeeded     bool
	SettlementRef string
	Status        string
	FailureReason string
	Raw           map[string]interface{}
}

// RefundRequest identifies the charge to reverse. Adapters pick the
// reference their provider refunds against (intent for card networks,
// capture for wallets).
type RefundRequest struct {
	IntentRef     string
	SettlementRef string
	Amount        float64
	Currency      string
	Reason        string
}

// RefundResult carries the provider-assigned refund reference.
type RefundResult struct {
	RefundRef string
	Status    string
}

// EventKind is the closed union of webhook events the payment service
// reconciles against local state.
type EventKind string

const (
	EventPaymentSucceeded EventKind = "payment-succeeded"
	EventPaymentFailed    EventKind = "payment-failed"
	EventRefundConfirmed  EventKind = "refund-confirmed"
	EventUnhandled        EventKind = "unhandled"
)

// WebhookEvent is a verified, provider-neutral notification.
type WebhookEvent struct {
	Kind          EventKind
	ProviderRef   string // intent/order reference as assigned at intent creation
	SettlementRef string
	RefundRef     string
	OrderNumber   string // local order number when the provider echoes our metadata
	FailureReason string
	ProviderType  string // the provider's own event-type string, for logging
	Raw           json.RawMessage
}
