package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billbook/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	InsertItems(ctx context.Context, db *gorm.DB, items []InvoiceItem) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]InvoiceItem, error)
	List(ctx context.Context, db *gorm.DB, filter ListInvoiceFilter, page pagination.Pagination) ([]Invoice, error)
	DeleteItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	MaxInvoiceNumber(ctx context.Context, db *gorm.DB) (int64, error)
}

// SequenceRepository backs the invoice number allocator.
type SequenceRepository interface {
	Ensure(ctx context.Context, db *gorm.DB, name string) error
	// Lock reads the sequence and holds its row lock until tx ends.
	Lock(ctx context.Context, tx *gorm.DB, name string) (*InvoiceSequence, error)
	Find(ctx context.Context, db *gorm.DB, name string) (*InvoiceSequence, error)
	// Advance moves the sequence from expected to next and reports whether
	// the row still held expected.
	Advance(ctx context.Context, db *gorm.DB, seq InvoiceSequence, expected int64) (bool, error)
}
