package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"learnify/services/invoice"
)

// InvoiceService is wired by main at startup.
var InvoiceService invoice.Issuer

// ListInvoices returns the buyer's invoices, newest first.
func ListInvoices(c *gin.Context) {
	invoices, err := InvoiceService.ListByBuyer(c.Request.Context(), c.GetString("buyerID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list invoices", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invoices})
}

// GetInvoice returns one of the buyer's invoices.
func GetInvoice(c *gin.Context) {
	inv, err := InvoiceService.GetByNumber(c.Request.Context(), c.GetString("buyerID"), c.Param("invoiceNumber"))
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "invoice not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load invoice", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, inv)
}
