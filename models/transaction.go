package models

import "time"

// TransactionType classifies a money movement.
type TransactionType string

const (
	TransactionPayment TransactionType = "payment"
	TransactionRefund  TransactionType = "refund"
	TransactionPayout  TransactionType = "payout"
)

// TransactionStatus tracks the gateway-reported outcome of a movement.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionRefunded  TransactionStatus = "refunded"
)

// Transaction is one attempted money movement in the ledger. Entries are
// append-mostly: a refund is a new entry with a negative amount, never a
// mutation of the original payment entry. The (gateway, gateway_txn_id)
// pair is unique and acts as the idempotency key for webhook replay.
type Transaction struct {
	ID              string                 `bson:"id" json:"id"`
	BuyerID         string                 `bson:"buyer_id" json:"buyerId"`
	Amount          float64                `bson:"amount" json:"amount"` // signed; negative for refunds
	Currency        string                 `bson:"currency" json:"currency"`
	Type            TransactionType        `bson:"type" json:"type"`
	Status          TransactionStatus      `bson:"status" json:"status"`
	Gateway         string                 `bson:"gateway" json:"gateway"`
	GatewayTxnID    string                 `bson:"gateway_txn_id" json:"gatewayTxnId"`
	GatewayResponse map[string]interface{} `bson:"gateway_response,omitempty" json:"gatewayResponse,omitempty"`
	OrderNumber     string                 `bson:"order_number" json:"orderNumber"`
	FailureReason   string                 `bson:"failure_reason,omitempty" json:"failureReason,omitempty"`
	ProcessedAt     *time.Time             `bson:"processed_at,omitempty" json:"processedAt,omitempty"`
	RefundedAt      *time.Time             `bson:"refunded_at,omitempty" json:"refundedAt,omitempty"`
	CreatedAt       time.Time              `bson:"created_at" json:"createdAt"`
}
