package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billbook/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, customer *Customer) error
	Update(ctx context.Context, db *gorm.DB, customer *Customer) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Customer, error)
	// LockByID reads the customer and holds its row lock until tx ends.
	LockByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*Customer, error)
	FindByEmail(ctx context.Context, db *gorm.DB, email string) (*Customer, error)
	List(ctx context.Context, db *gorm.DB, filter ListCustomerFilter, page pagination.Pagination) ([]Customer, error)
	ListAll(ctx context.Context, db *gorm.DB) ([]Customer, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
	CountInvoices(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	CountLedgerEntries(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
}
