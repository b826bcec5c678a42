package invoiceRepo

import (
	"context"
	"errors"

	"learnify/database"
	"learnify/models"
	"learnify/utils"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when no invoice matches the lookup.
	ErrNotFound = errors.New("invoice not found")
	// ErrAlreadyIssued is returned when an invoice already exists for the
	// order. Issuance is exactly-once per order.
	ErrAlreadyIssued = errors.New("invoice already issued for order")
)

// InvoiceRepository persists immutable invoices. There are no update
// methods: a correction requires a new invoice.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *models.Invoice) error
	GetByNumber(ctx context.Context, invoiceNumber string) (*models.Invoice, error)
	GetByOrderNumber(ctx context.Context, orderNumber string) (*models.Invoice, error)
	ListByBuyer(ctx context.Context, buyerID string) ([]models.Invoice, error)
}

type mongoInvoiceRepo struct {
	coll *mongo.Collection
}

// NewMongoInvoiceRepo returns a new InvoiceRepository instance using MongoDB.
func NewMongoInvoiceRepo() InvoiceRepository {
	repo := &mongoInvoiceRepo{
		coll: database.DB().Collection("invoices"),
	}
	if err := repo.ensureIndexes(); err != nil {
		utils.GetLogger().Warn("invoice repo: index creation failed", zap.Error(err))
	}
	return repo
}
