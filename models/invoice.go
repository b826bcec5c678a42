package models

import "time"

// BillingSnapshot is the buyer and line-item state copied from the order at
// issue time. It is not live-linked; later order changes never reach it.
type BillingSnapshot struct {
	BuyerID  string          `bson:"buyer_id" json:"buyerId"`
	Gateway  string          `bson:"gateway" json:"gateway"`
	Currency string          `bson:"currency" json:"currency"`
	Items    []OrderLineItem `bson:"items" json:"items"`
}

// Invoice is the immutable billing record issued once an order completes.
// A correction requires a new invoice; existing invoices are never mutated.
type Invoice struct {
	InvoiceNumber string          `bson:"invoice_number" json:"invoiceNumber"`
	OrderNumber   string          `bson:"order_number" json:"orderNumber"`
	BuyerID       string          `bson:"buyer_id" json:"buyerId"`
	Amount        float64         `bson:"amount" json:"amount"`
	Tax           float64         `bson:"tax" json:"tax"`
	Total         float64         `bson:"total" json:"total"`
	Status        string          `bson:"status" json:"status"` // e.g. "paid"
	IssueDate     time.Time       `bson:"issue_date" json:"issueDate"`
	DueDate       time.Time       `bson:"due_date" json:"dueDate"`
	Billing       BillingSnapshot `bson:"billing" json:"billing"`
	PaidAt        *time.Time      `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	CreatedAt     time.Time       `bson:"created_at" json:"createdAt"`
}
