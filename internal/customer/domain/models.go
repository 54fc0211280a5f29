package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Customer is an account that invoices and ledger entries are posted to.
// Its outstanding balance is derived by the ledger and never stored here.
type Customer struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(100);not null" json:"name"`
	Email       string          `gorm:"type:varchar(120);not null;uniqueIndex:ux_customers_email" json:"email"`
	Phone       string          `gorm:"type:varchar(20);not null" json:"phone"`
	Address     string          `gorm:"type:text;not null" json:"address"`
	GSTIN       *string         `gorm:"column:gstin;type:varchar(20)" json:"gstin,omitempty"`
	CreditLimit decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"credit_limit"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
