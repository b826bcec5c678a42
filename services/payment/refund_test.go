package payment

import (
	"context"
	"testing"
	"time"

	"learnify/models"
	"learnify/services/payment/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeOrder(t *testing.T, f *paymentFixture) string {
	t.Helper()
	number := createIntent(t, f)
	f.gateway.confirmResult = &gateway.ConfirmResult{Succeeded: true, SettlementRef: "ch_1"}
	_, err := f.svc.ProcessPayment(context.Background(), "buyer-1", number, "stripe")
	require.NoError(t, err)
	return number
}

func TestRequestRefundInsideWindow(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	number := completeOrder(t, f)
	f.gateway.refundResult = &gateway.RefundResult{RefundRef: "re_1", Status: "succeeded"}

	ref, err := f.svc.RequestRefund(ctx, "buyer-1", number, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, "re_1", ref)

	order, err := f.orders.GetByNumber(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, models.OrderRefunded, order.Status)
	require.NotNil(t, order.Refund)
	assert.Equal(t, 100.0, order.Refund.Amount)
	assert.Equal(t, "changed my mind", order.Refund.Reason)
	assert.Equal(t, "buyer-1", order.Refund.RequestedBy)

	refundTxn, err := f.ledger.GetByGatewayTxnID(ctx, "stripe", "re_1")
	require.NoError(t, err)
	assert.Equal(t, -100.0, refundTxn.Amount)
	assert.Equal(t, models.TransactionCompleted, refundTxn.Status)

	paymentTxn, err := f.ledger.GetByGatewayTxnID(ctx, "stripe", "pi_stripe_1")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionRefunded, paymentTxn.Status)
}

func TestRequestRefundOutsideWindow(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	number := completeOrder(t, f)

	// Day 31 of a 30-day window.
	restore := timeNow
	timeNow = func() time.Time { return time.Now().Add(31 * 24 * time.Hour) }
	defer func() { timeNow = restore }()

	_, err := f.svc.RequestRefund(ctx, "buyer-1", number, "too late")
	var policyErr *PolicyViolationError
	require.ErrorAs(t, err, &policyErr)
	assert.Contains(t, policyErr.Reason, "refund window expired")

	// Rejected before any provider call; order and ledger are untouched.
	assert.Equal(t, 0, f.gateway.refundCalls)
	order, err := f.orders.GetByNumber(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, order.Status)

	txns, err := f.ledger.ListByOrder(ctx, number)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
}

func TestRequestRefundRequiresCompletedOrder(t *testing.T) {
	f := newPaymentFixture(t)
	number := createIntent(t, f)

	_, err := f.svc.RequestRefund(context.Background(), "buyer-1", number, "not yet paid")
	var policyErr *PolicyViolationError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, 0, f.gateway.refundCalls)
}

func TestRequestRefundTwiceIsPolicyViolation(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	number := completeOrder(t, f)
	f.gateway.refundResult = &gateway.RefundResult{RefundRef: "re_1", Status: "succeeded"}

	_, err := f.svc.RequestRefund(ctx, "buyer-1", number, "first")
	require.NoError(t, err)

	// REFUNDED is terminal; a second refund never reaches the provider.
	_, err = f.svc.RequestRefund(ctx, "buyer-1", number, "second")
	var policyErr *PolicyViolationError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, 1, f.gateway.refundCalls)
}

func TestRequestRefundGatewayFailureLeavesOrderCompleted(t *testing.T) {
	f := newPaymentFixture(t)
	ctx := context.Background()
	number := completeOrder(t, f)
	f.gateway.refundErr = &gateway.GatewayError{Gateway: "stripe", Code: gateway.CodeRefundFailed, Message: "charge disputed"}

	_, err := f.svc.RequestRefund(ctx, "buyer-1", number, "please")
	var gwErr *gateway.GatewayError
	require.ErrorAs(t, err, &gwErr)

	order, err := f.orders.GetByNumber(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, models.OrderCompleted, order.Status)
	assert.Nil(t, order.Refund)
}

func TestRequestRefundScopedToBuyer(t *testing.T) {
	f := newPaymentFixture(t)
	number := completeOrder(t, f)

	_, err := f.svc.RequestRefund(context.Background(), "buyer-2", number, "not mine")
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, 0, f.gateway.refundCalls)
}
