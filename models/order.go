package models

import (
	"fmt"
	"math"
	"time"
)

// OrderStatus tracks settlement progress of an order.
type OrderStatus string

const (
	OrderPending    OrderStatus = "PENDING"
	OrderConfirmed  OrderStatus = "CONFIRMED"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderCompleted  OrderStatus = "COMPLETED"
	OrderCancelled  OrderStatus = "CANCELLED"
	OrderRefunded   OrderStatus = "REFUNDED"
	OrderFailed     OrderStatus = "FAILED"
)

// orderTransitions is the closed set of legal status edges. A confirm call
// or webhook can settle an order that never passed through the intermediate
// states, so COMPLETED and FAILED are reachable from every pre-settlement
// status.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderConfirmed, OrderProcessing, OrderCompleted, OrderCancelled, OrderFailed},
	OrderConfirmed:  {OrderProcessing, OrderCompleted, OrderCancelled, OrderFailed},
	OrderProcessing: {OrderCompleted, OrderFailed},
	OrderCompleted:  {OrderRefunded},
	OrderCancelled:  {},
	OrderRefunded:   {},
	OrderFailed:     {},
}

// SettlementEligible lists the statuses from which an order may still be
// driven to COMPLETED or FAILED by a confirm call or webhook. Derived from
// the transition table so the repository's filtered update and this model
// can never disagree.
var SettlementEligible = settlementEligible()

func settlementEligible() []OrderStatus {
	ordered := []OrderStatus{
		OrderPending, OrderConfirmed, OrderProcessing,
		OrderCompleted, OrderCancelled, OrderRefunded, OrderFailed,
	}
	var out []OrderStatus
	for _, s := range ordered {
		o := Order{Status: s}
		if o.CanTransition(OrderCompleted) {
			out = append(out, s)
		}
	}
	return out
}

// Terminal reports whether no further transitions are possible, except the
// single COMPLETED -> REFUNDED edge.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderCompleted, OrderCancelled, OrderRefunded, OrderFailed:
		return true
	}
	return false
}

// OrderLineItem is a priced snapshot of one purchased catalog item.
type OrderLineItem struct {
	CourseID  string  `bson:"course_id" json:"courseId"`
	Title     string  `bson:"title" json:"title"`
	UnitPrice float64 `bson:"unit_price" json:"unitPrice"`
	Quantity  int     `bson:"quantity" json:"quantity"`
}

// RefundRecord captures the outcome of a processed refund.
type RefundRecord struct {
	Amount      float64   `bson:"amount" json:"amount"`
	Reason      string    `bson:"reason" json:"reason"`
	ProcessedAt time.Time `bson:"processed_at" json:"processedAt"`
	Reference   string    `bson:"reference" json:"reference"` // provider refund reference
	RequestedBy string    `bson:"requested_by" json:"requestedBy"`
}

// Order represents one purchase transaction.
type Order struct {
	OrderNumber          string          `bson:"order_number" json:"orderNumber"`
	BuyerID              string          `bson:"buyer_id" json:"buyerId"`
	Items                []OrderLineItem `bson:"items" json:"items"`
	Subtotal             float64         `bson:"subtotal" json:"subtotal"`
	Tax                  float64         `bson:"tax" json:"tax"`
	Discount             float64         `bson:"discount" json:"discount"`
	Total                float64         `bson:"total" json:"total"`
	Currency             string          `bson:"currency" json:"currency"`
	Status               OrderStatus     `bson:"status" json:"status"`
	Gateway              string          `bson:"gateway" json:"gateway"`
	GatewayIntentRef     string          `bson:"gateway_intent_ref,omitempty" json:"gatewayIntentRef,omitempty"`
	GatewaySettlementRef string          `bson:"gateway_settlement_ref,omitempty" json:"gatewaySettlementRef,omitempty"`
	PaidAt               *time.Time      `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	Refund               *RefundRecord   `bson:"refund,omitempty" json:"refund,omitempty"`
	CancellationReason   string          `bson:"cancellation_reason,omitempty" json:"cancellationReason,omitempty"`
	CreatedAt            time.Time       `bson:"created_at" json:"createdAt"`
	UpdatedAt            time.Time       `bson:"updated_at" json:"updatedAt"`
}

// StatusConflictError signals an illegal status transition, letting callers
// distinguish "already settled" from other failures.
type StatusConflictError struct {
	OrderNumber string
	From        OrderStatus
	To          OrderStatus
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("order %s: illegal transition %s -> %s", e.OrderNumber, e.From, e.To)
}

// CanTransition reports whether moving to the target status is legal.
func (o *Order) CanTransition(to OrderStatus) bool {
	for _, next := range orderTransitions[o.Status] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the order to the target status, or returns a
// StatusConflictError if the edge is not legal.
func (o *Order) Transition(to OrderStatus) error {
	if !o.CanTransition(to) {
		return &StatusConflictError{OrderNumber: o.OrderNumber, From: o.Status, To: to}
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	return nil
}

// ValidateTotals checks the commercial-terms invariant.
func (o *Order) ValidateTotals() error {
	want := o.Subtotal + o.Tax - o.Discount
	if math.Abs(o.Total-want) > 0.005 {
		return fmt.Errorf("order %s: total %.2f does not equal subtotal %.2f + tax %.2f - discount %.2f",
			o.OrderNumber, o.Total, o.Subtotal, o.Tax, o.Discount)
	}
	return nil
}
