package invoiceRepo

import (
	"context"
	"time"

	"learnify/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Create inserts a new invoice. The unique order_number index maps a second
// issuance attempt for the same order to ErrAlreadyIssued.
func (r *mongoInvoiceRepo) Create(ctx context.Context, inv *models.Invoice) error {
	inv.CreatedAt = time.Now()
	_, err := r.coll.InsertOne(ctx, inv)
	if mongo.IsDuplicateKeyError(err) {
		return ErrAlreadyIssued
	}
	return err
}

// GetByNumber returns an invoice by its invoice number.
func (r *mongoInvoiceRepo) GetByNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.coll.FindOne(ctx, bson.M{"invoice_number": invoiceNumber}).Decode(&inv)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// GetByOrderNumber returns the invoice issued for an order.
func (r *mongoInvoiceRepo) GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Invoice, error) {
	var inv models.Invoice
	err := r.coll.FindOne(ctx, bson.M{"order_number": orderNumber}).Decode(&inv)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListByBuyer fetches all invoices belonging to a buyer, newest first.
func (r *mongoInvoiceRepo) ListByBuyer(ctx context.Context, buyerID string) ([]models.Invoice, error) {
	opts := options.Find().SetSort(bson.M{"issue_date": -1})
	cursor, err := r.coll.Find(ctx, bson.M{"buyer_id": buyerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var invoices []models.Invoice
	if err := cursor.All(ctx, &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}
