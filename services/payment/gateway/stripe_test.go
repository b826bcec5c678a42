package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76"
)

func stripeEvent(t *testing.T, eventType string, raw string) stripe.Event {
	t.Helper()
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
}

func TestMapStripeEventPaymentSucceeded(t *testing.T) {
	evt := MapStripeEvent(stripeEvent(t, "payment_intent.succeeded", `{
		"id": "pi_123",
		"latest_charge": "ch_456",
		"metadata": {"order_number": "ORD-2026-0042", "buyer_id": "buyer-1"}
	}`))

	assert.Equal(t, EventPaymentSucceeded, evt.Kind)
	assert.Equal(t, "pi_123", evt.ProviderRef)
	assert.Equal(t, "ch_456", evt.SettlementRef)
	assert.Equal(t, "ORD-2026-0042", evt.OrderNumber)
}

func TestMapStripeEventPaymentSucceededWithoutCharge(t *testing.T) {
	evt := MapStripeEvent(stripeEvent(t, "payment_intent.succeeded", `{"id": "pi_123", "metadata": {}}`))

	assert.Equal(t, EventPaymentSucceeded, evt.Kind)
	// Falls back to the intent id when no charge reference is present.
	assert.Equal(t, "pi_123", evt.SettlementRef)
}

func TestMapStripeEventPaymentFailed(t *testing.T) {
	evt := MapStripeEvent(stripeEvent(t, "payment_intent.payment_failed", `{
		"id": "pi_123",
		"metadata": {"order_number": "ORD-2026-0042"},
		"last_payment_error": {"message": "Your card was declined."}
	}`))

	assert.Equal(t, EventPaymentFailed, evt.Kind)
	assert.Equal(t, "pi_123", evt.ProviderRef)
	assert.Equal(t, "ORD-2026-0042", evt.OrderNumber)
	assert.Equal(t, "Your card was declined.", evt.FailureReason)
}

func TestMapStripeEventPaymentFailedDefaultsReason(t *testing.T) {
	evt := MapStripeEvent(stripeEvent(t, "payment_intent.payment_failed", `{"id": "pi_123"}`))

	assert.Equal(t, EventPaymentFailed, evt.Kind)
	assert.Equal(t, "payment failed", evt.FailureReason)
}

func TestMapStripeEventChargeRefunded(t *testing.T) {
	evt := MapStripeEvent(stripeEvent(t, "charge.refunded", `{
		"id": "ch_456",
		"payment_intent": "pi_123",
		"refunds": {"data": [{"id": "re_789"}]}
	}`))

	assert.Equal(t, EventRefundConfirmed, evt.Kind)
	assert.Equal(t, "pi_123", evt.ProviderRef)
	assert.Equal(t, "ch_456", evt.SettlementRef)
	assert.Equal(t, "re_789", evt.RefundRef)
}

func TestMapStripeEventUnhandledType(t *testing.T) {
	evt := MapStripeEvent(stripeEvent(t, "customer.created", `{"id": "cus_1"}`))

	assert.Equal(t, EventUnhandled, evt.Kind)
	assert.Equal(t, "customer.created", evt.ProviderType)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(10000), toMinorUnits(100))
	assert.Equal(t, int64(10750), toMinorUnits(107.5))
	// 19.99 is not exactly representable; rounding must not lose a cent.
	assert.Equal(t, int64(1999), toMinorUnits(19.99))
	assert.Equal(t, int64(1), toMinorUnits(0.01))
}

func TestStripeGatewayConfigured(t *testing.T) {
	g := NewStripeGateway("", "", nil)
	require.False(t, g.Configured())

	g = NewStripeGateway("sk_test_123", "whsec_123", nil)
	require.True(t, g.Configured())
}
