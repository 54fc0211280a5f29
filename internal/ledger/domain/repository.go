package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertEntry(ctx context.Context, db *gorm.DB, entry *LedgerEntry) error
	FindEntry(ctx context.Context, db *gorm.DB, id snowflake.ID) (*LedgerEntry, error)
	DeleteEntry(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	ListEntries(ctx context.Context, db *gorm.DB, filter EntryFilter) ([]LedgerEntry, error)
	// EntriesForCustomer returns every entry of one customer, or of all
	// customers when customerID is zero.
	EntriesForCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]LedgerEntry, error)
	// InvoiceTotals returns the totals of one customer's invoices, or of all
	// invoices when customerID is zero.
	InvoiceTotals(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]InvoiceTotal, error)
	FindInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*InvoiceTotal, error)
}
