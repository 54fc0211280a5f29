package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// EntryKind is the direction of a ledger entry against a customer account.
type EntryKind string

const (
	KindCredit  EntryKind = "credit"
	KindPayment EntryKind = "payment"
)

func (k EntryKind) Valid() bool {
	return k == KindCredit || k == KindPayment
}

// LedgerEntry is an append-only credit or payment posted to a customer.
type LedgerEntry struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	CustomerID  snowflake.ID    `gorm:"not null;index:ix_ledger_entries_customer_date,priority:1" json:"customer_id"`
	Kind        EntryKind       `gorm:"type:varchar(20);not null" json:"kind"`
	Amount      decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"amount"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Date        time.Time       `gorm:"not null;index:ix_ledger_entries_customer_date,priority:2;index:ix_ledger_entries_date" json:"date"`
	PaymentMode *string         `gorm:"type:varchar(50)" json:"payment_mode,omitempty"`
	InvoiceID   *snowflake.ID   `gorm:"index" json:"invoice_id,omitempty"`
	CreatedBy   string          `gorm:"type:varchar(100);not null" json:"created_by"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// Clone returns a copy that shares no pointers with e.
func (e LedgerEntry) Clone() LedgerEntry {
	out := e
	if e.PaymentMode != nil {
		mode := *e.PaymentMode
		out.PaymentMode = &mode
	}
	if e.InvoiceID != nil {
		id := *e.InvoiceID
		out.InvoiceID = &id
	}
	return out
}

// InvoiceTotal is the slice of an invoice the ledger needs.
type InvoiceTotal struct {
	InvoiceID     snowflake.ID    `json:"invoice_id"`
	InvoiceNumber int64           `json:"invoice_number"`
	CustomerID    snowflake.ID    `json:"customer_id"`
	Date          time.Time       `json:"date"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}
