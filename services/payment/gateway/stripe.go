package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/refund"
	"github.com/stripe/stripe-go/v76/webhook"
	"go.uber.org/zap"
)

// GatewayStripe is the registry name of the card-network adapter.
const GatewayStripe = "stripe"

// StripeGateway settles card payments through Stripe PaymentIntents.
type StripeGateway struct {
	key           string
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeGateway returns the card-network adapter. Empty credentials are
// allowed; operations then fail with ConfigurationError.
func NewStripeGateway(key, webhookSecret string, logger *zap.Logger) *StripeGateway {
	return &StripeGateway{
		key:           key,
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

func (g *StripeGateway) Name() string { return GatewayStripe }

func (g *StripeGateway) Configured() bool { return g.key != "" }

// classify separates unambiguous Stripe rejections from transport failures
// whose outcome is unknown.
func (g *StripeGateway) classify(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return &GatewayError{
			Gateway: GatewayStripe,
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
		}
	}
	return &AmbiguousOutcomeError{Gateway: GatewayStripe, Op: op, Err: err}
}

// CreateIntent opens a PaymentIntent and returns its client secret.
func (g *StripeGateway) CreateIntent(ctx context.Context, req IntentRequest) (*IntentResult, error) {
	if !g.Configured() {
		return nil, &ConfigurationError{Gateway: GatewayStripe}
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(toMinorUnits(req.Amount)),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			"order_number": req.OrderNumber,
			"buyer_id":     req.BuyerID,
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, g.classify("create intent", err)
	}

	return &IntentResult{
		ProviderRef:  pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
	}, nil
}

// Confirm reads the intent's current status. Reading is idempotent; the
// client-side confirmation already happened against Stripe directly.
func (g *StripeGateway) Confirm(ctx context.Context, providerRef string) (*ConfirmResult, error) {
	if !g.Configured() {
		return nil, &ConfigurationError{Gateway: GatewayStripe}
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(providerRef, params)
	if err != nil {
		return nil, g.classify("confirm", err)
	}

	res := &ConfirmResult{
		Status: string(pi.Status),
		Raw:    map[string]interface{}{"payment_intent": pi.ID, "status": string(pi.Status)},
	}

	switch pi.Status {
	case stripe.PaymentIntentStatusSucceeded:
		res.Succeeded = true
		res.SettlementRef = pi.ID
		if pi.LatestCharge != nil {
			res.SettlementRef = pi.LatestCharge.ID
		}
		return res, nil
	case stripe.PaymentIntentStatusCanceled:
		res.FailureReason = "payment canceled"
		return res, nil
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if pi.LastPaymentError != nil {
			res.FailureReason = pi.LastPaymentError.Msg
			return res, nil
		}
	}

	// Anything else (requires_action, processing, ...) is not a terminal
	// answer; let the webhook decide.
	return nil, &AmbiguousOutcomeError{
		Gateway: GatewayStripe,
		Op:      "confirm",
		Err:     fmt.Errorf("payment intent %s in non-terminal status %s", providerRef, pi.Status),
	}
}

// Refund reverses a settled PaymentIntent, partially when an amount is given.
func (g *StripeGateway) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if !g.Configured() {
		return nil, &ConfigurationError{Gateway: GatewayStripe}
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentRef),
	}
	params.Context = ctx
	if req.Amount > 0 {
		params.Amount = stripe.Int64(toMinorUnits(req.Amount))
	}
	if req.Reason != "" {
		params.Metadata = map[string]string{"reason": req.Reason}
	}

	ref, err := refund.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, &GatewayError{
				Gateway: GatewayStripe,
				Code:    CodeRefundFailed,
				Message: stripeErr.Msg,
			}
		}
		return nil, &AmbiguousOutcomeError{Gateway: GatewayStripe, Op: "refund", Err: err}
	}

	return &RefundResult{RefundRef: ref.ID, Status: string(ref.Status)}, nil
}

// VerifyWebhook checks the Stripe-Signature header and maps the event.
func (g *StripeGateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, headers.Get("Stripe-Signature"), g.webhookSecret)
	if err != nil {
		return nil, &InvalidSignatureError{Gateway: GatewayStripe, Err: err}
	}
	return MapStripeEvent(event), nil
}

// MapStripeEvent translates a verified Stripe event into the neutral union.
func MapStripeEvent(event stripe.Event) *WebhookEvent {
	out := &WebhookEvent{
		Kind:         EventUnhandled,
		ProviderType: string(event.Type),
		Raw:          event.Data.Raw,
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var obj struct {
			ID           string            `json:"id"`
			LatestCharge string            `json:"latest_charge"`
			Metadata     map[string]string `json:"metadata"`
		}
		if err := json.Unmarshal(event.Data.Raw, &obj); err == nil {
			out.Kind = EventPaymentSucceeded
			out.ProviderRef = obj.ID
			out.OrderNumber = obj.Metadata["order_number"]
			out.SettlementRef = obj.LatestCharge
			if out.SettlementRef == "" {
				out.SettlementRef = obj.ID
			}
		}
	case "payment_intent.payment_failed":
		var obj struct {
			ID               string            `json:"id"`
			Metadata         map[string]string `json:"metadata"`
			LastPaymentError struct {
				Message string `json:"message"`
			} `json:"last_payment_error"`
		}
		if err := json.Unmarshal(event.Data.Raw, &obj); err == nil {
			out.Kind = EventPaymentFailed
			out.ProviderRef = obj.ID
			out.OrderNumber = obj.Metadata["order_number"]
			out.FailureReason = obj.LastPaymentError.Message
			if out.FailureReason == "" {
				out.FailureReason = "payment failed"
			}
		}
	case "charge.refunded":
		var obj struct {
			ID            string `json:"id"`
			PaymentIntent string `json:"payment_intent"`
			Refunds       struct {
				Data []struct {
					ID string `json:"id"`
				} `json:"data"`
			} `json:"refunds"`
		}
		if err := json.Unmarshal(event.Data.Raw, &obj); err == nil {
			out.Kind = EventRefundConfirmed
			out.ProviderRef = obj.PaymentIntent
			out.SettlementRef = obj.ID
			if len(obj.Refunds.Data) > 0 {
				out.RefundRef = obj.Refunds.Data[0].ID
			}
		}
	}

	return out
}

// toMinorUnits converts a decimal amount to the smallest currency unit.
func toMinorUnits(amount float64) int64 {
	return int64(amount*100 + 0.5)
}
