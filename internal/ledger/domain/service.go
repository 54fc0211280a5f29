package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	PostEntry(ctx context.Context, req PostEntryRequest) (LedgerEntry, error)
	OutstandingBalance(ctx context.Context, customerID snowflake.ID) (decimal.Decimal, error)
	Statement(ctx context.Context, customerID snowflake.ID) (Statement, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]LedgerEntry, error)
	Report(ctx context.Context, filter EntryFilter) (Report, error)
	CreditReport(ctx context.Context) ([]CustomerBalance, error)
	Summary(ctx context.Context, day time.Time) (Summary, error)
	DeleteEntry(ctx context.Context, id snowflake.ID) error
}

type PostEntryRequest struct {
	CustomerID  snowflake.ID    `json:"customer_id"`
	Kind        EntryKind       `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	// Date defaults to now when zero.
	Date        time.Time     `json:"date"`
	PaymentMode *string       `json:"payment_mode"`
	InvoiceID   *snowflake.ID `json:"invoice_id"`
}

// EntryFilter selects ledger entries. From and To are calendar days; To
// includes the whole day.
type EntryFilter struct {
	CustomerID snowflake.ID
	Kind       EntryKind
	From       *time.Time
	To         *time.Time
	Limit      int
}

type Report struct {
	Entries       []LedgerEntry   `json:"entries"`
	TotalCredits  decimal.Decimal `json:"total_credits"`
	TotalPayments decimal.Decimal `json:"total_payments"`
	// Net is credits minus payments over the selected entries.
	Net decimal.Decimal `json:"net"`
}

type CustomerBalance struct {
	CustomerID  snowflake.ID    `json:"customer_id"`
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
	Balance     Balance         `json:"balance"`
	// Available is the credit still allowed before the limit is reached.
	Available decimal.Decimal `json:"available"`
}

type Statement struct {
	CustomerBalance
	Invoices []InvoiceTotal `json:"invoices"`
	Entries  []LedgerEntry  `json:"entries"`
}

type Summary struct {
	TotalCustomers   int64           `json:"total_customers"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	PaymentsOnDay    decimal.Decimal `json:"payments_on_day"`
	TotalCredits     decimal.Decimal `json:"total_credits"`
	RecentEntries    []LedgerEntry   `json:"recent_entries"`
}
