package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/plutov/paypal/v4"
	"go.uber.org/zap"
)

// GatewayPayPal is the registry name of the wallet adapter.
const GatewayPayPal = "paypal"

// PayPalGateway settles wallet payments through PayPal checkout orders.
// Unlike the card-network flow there is no client secret: the buyer follows
// an approval link, and settlement happens at capture time.
type PayPalGateway struct {
	client    *paypal.Client
	webhookID string
	logger    *zap.Logger
}

// NewPayPalGateway returns the wallet adapter. Empty credentials are
// allowed; operations then fail with ConfigurationError.
func NewPayPalGateway(clientID, secret, webhookID string, live bool, logger *zap.Logger) *PayPalGateway {
	g := &PayPalGateway{webhookID: webhookID, logger: logger}
	if clientID == "" || secret == "" {
		return g
	}

	base := paypal.APIBaseSandBox
	if live {
		base = paypal.APIBaseLive
	}
	client, err := paypal.NewClient(clientID, secret, base)
	if err != nil {
		logger.Error("paypal client initialization failed", zap.Error(err))
		return g
	}
	g.client = client
	return g
}

func (g *PayPalGateway) Name() string { return GatewayPayPal }

func (g *PayPalGateway) Configured() bool { return g.client != nil }

// CreateIntent opens a CAPTURE-intent checkout order and returns the
// approval link the buyer must follow.
func (g *PayPalGateway) CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	if !g.Configured() {
		return nil, &ConfigurationError{Gateway: GatewayPayPal}
	}

	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: req.OrderNumber,
		CustomID:    req.OrderNumber,
		Description: req.Description,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: req.Currency,
			Value:    fmt.Sprintf("%.2f", req.Amount),
		},
	}}

	order, err := g.client.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, nil)
	if err != nil {
		return nil, g.classify("create intent", err)
	}

	res := &IntentResult{ProviderRef: order.ID, Status: order.Status}
	for _, link := range order.Links {
		if link.Rel == "approve" {
			res.ApprovalLink = link.Href
			break
		}
	}
	return res, nil
}

// Confirm captures an approved order. Capturing an already-captured order
// is resolved by re-reading it, so the call is idempotent.
func (g *PayPalGateway) Confirm(ctx context.Context, providerRef string) (*ConfirmResult, error) {
	if !g.Configured() {
		return nil, &ConfigurationError{Gateway: GatewayPayPal}
	}

	capture, err := g.client.CaptureOrder(ctx, providerRef, paypal.CaptureOrderRequest{})
	if err != nil {
		var ppErr *paypal.ErrorResponse
		if !errors.As(err, &ppErr) {
			return nil, &AmbiguousOutcomeError{Gateway: GatewayPayPal, Op: "confirm", Err: err}
		}
		switch issueOf(ppErr) {
		case "ORDER_ALREADY_CAPTURED":
			return g.confirmByLookup(ctx, providerRef)
		case "INSTRUMENT_DECLINED", "TRANSACTION_REFUSED", "PAYER_CANNOT_PAY":
			return &ConfirmResult{
				Succeeded:     false,
				Status:        "DECLINED",
				FailureReason: ppErr.Message,
			}, nil
		case "ORDER_NOT_APPROVED":
			// Buyer never finished the approval flow; not a decline yet.
			return nil, &AmbiguousOutcomeError{
				Gateway: GatewayPayPal,
				Op:      "confirm",
				Err:     fmt.Errorf("order %s not approved by buyer", providerRef),
			}
		default:
			return nil, &GatewayError{Gateway: GatewayPayPal, Code: ppErr.Name, Message: ppErr.Message}
		}
	}

	res := &ConfirmResult{
		Status: capture.Status,
		Raw:    map[string]interface{}{"order_id": capture.ID, "status": capture.Status},
	}
	if capture.Status == "COMPLETED" {
		res.Succeeded = true
		res.SettlementRef = captureRef(capture.PurchaseUnits, capture.ID)
		return res, nil
	}

	res.FailureReason = fmt.Sprintf("capture ended in status %s", capture.Status)
	return res, nil
}

// confirmByLookup resolves an already-captured order to the same successful
// result a first capture would have produced.
func (g *PayPalGateway) confirmByLookup(ctx context.Context, providerRef string) (*ConfirmResult, error) {
	order, err := g.client.GetOrder(ctx, providerRef)
	if err != nil {
		return nil, g.classify("confirm", err)
	}
	if order.Status != "COMPLETED" {
		return nil, &AmbiguousOutcomeError{
			Gateway: GatewayPayPal,
			Op:      "confirm",
			Err:     fmt.Errorf("order %s reported captured but is in status %s", providerRef, order.Status),
		}
	}

	settlementRef := order.ID
	for _, unit := range order.PurchaseUnits {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			settlementRef = unit.Payments.Captures[0].ID
			break
		}
	}
	return &ConfirmResult{
		Succeeded:     true,
		Status:        order.Status,
		SettlementRef: settlementRef,
		Raw:           map[string]interface{}{"order_id": order.ID, "status": order.Status},
	}, nil
}

// Refund reverses a capture, partially when an amount is given.
func (g *PayPalGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if !g.Configured() {
		return nil, &ConfigurationError{Gateway: GatewayPayPal}
	}
	if req.SettlementRef == "" {
		return nil, &GatewayError{
			Gateway: GatewayPayPal,
			Code:    CodeRefundNotSupported,
			Message: "order has no capture reference to refund against",
		}
	}

	refundReq := paypal.RefundCaptureRequest{NoteToPayer: req.Reason}
	if req.Amount > 0 {
		refundReq.Amount = &paypal.Money{
			Currency: req.Currency,
			Value:    fmt.Sprintf("%.2f", req.Amount),
		}
	}

	refund, err := g.client.RefundCapture(ctx, req.SettlementRef, refundReq)
	if err != nil {
		var ppErr *paypal.ErrorResponse
		if errors.As(err, &ppErr) {
			return nil, &GatewayError{Gateway: GatewayPayPal, Code: CodeRefundFailed, Message: ppErr.Message}
		}
		return nil, &AmbiguousOutcomeError{Gateway: GatewayPayPal, Op: "refund", Err: err}
	}

	return &RefundResult{RefundRef: refund.ID, Status: refund.Status}, nil
}

// VerifyWebhook verifies the transmission signature with PayPal and maps the
// event. PayPal signs with a header set rather than a single signature, so
// the adapter replays the request to the verification endpoint.
func (g *PayPalGateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookEvent, error) {
	if !g.Configured() {
		return nil, &ConfigurationError{Gateway: GatewayPayPal}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return nil, &InvalidSignatureError{Gateway: GatewayPayPal, Err: err}
	}
	httpReq.Header = headers

	verify, err := g.client.VerifyWebhookSignature(ctx, httpReq, g.webhookID)
	if err != nil {
		return nil, &InvalidSignatureError{Gateway: GatewayPayPal, Err: err}
	}
	if verify.VerificationStatus != "SUCCESS" {
		return nil, &InvalidSignatureError{
			Gateway: GatewayPayPal,
			Err:     fmt.Errorf("verification status %s", verify.VerificationStatus),
		}
	}

	var event struct {
		EventType string          `json:"event_type"`
		Resource  json.RawMessage `json:"resource"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		// Verified but unparseable; acknowledge as unhandled.
		g.logger.Warn("paypal webhook payload unparseable", zap.Error(err))
		return &WebhookEvent{Kind: EventUnhandled, Raw: payload}, nil
	}
	return MapPayPalEvent(event.EventType, event.Resource), nil
}

// MapPayPalEvent translates a verified PayPal event into the neutral union.
func MapPayPalEvent(eventType string, resource json.RawMessage) *WebhookEvent {
	out := &WebhookEvent{
		Kind:         EventUnhandled,
		ProviderType: eventType,
		Raw:          resource,
	}

	var res struct {
		ID            string `json:"id"`
		CustomID      string `json:"custom_id"`
		StatusDetails struct {
			Reason string `json:"reason"`
		} `json:"status_details"`
		SupplementaryData struct {
			RelatedIDs struct {
				OrderID string `json:"order_id"`
			} `json:"related_ids"`
		} `json:"supplementary_data"`
	}
	if err := json.Unmarshal(resource, &res); err != nil {
		return out
	}
	out.ProviderRef = res.SupplementaryData.RelatedIDs.OrderID
	out.OrderNumber = res.CustomID

	switch eventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		out.Kind = EventPaymentSucceeded
		out.SettlementRef = res.ID
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		out.Kind = EventPaymentFailed
		out.SettlementRef = res.ID
		out.FailureReason = res.StatusDetails.Reason
		if out.FailureReason == "" {
			out.FailureReason = "capture denied"
		}
	case "PAYMENT.CAPTURE.REFUNDED":
		out.Kind = EventRefundConfirmed
		out.RefundRef = res.ID
	}

	return out
}

func (g *PayPalGateway) classify(op string, err error) error {
	var ppErr *paypal.ErrorResponse
	if errors.As(err, &ppErr) {
		return &GatewayError{Gateway: GatewayPayPal, Code: ppErr.Name, Message: ppErr.Message}
	}
	return &AmbiguousOutcomeError{Gateway: GatewayPayPal, Op: op, Err: err}
}

func issueOf(err *paypal.ErrorResponse) string {
	if len(err.Details) > 0 {
		return err.Details[0].Issue
	}
	return err.Name
}

func captureRef(units []paypal.CapturedPurchaseUnit, fallback string) string {
	for _, unit := range units {
		if unit.Payments != nil && len(unit.Payments.Captures) > 0 {
			return unit.Payments.Captures[0].ID
		}
	}
	return fallback
}
