package domain

import "errors"

var (
	ErrInvalidID               = errors.New("invalid_id")
	ErrInvalidCustomer         = errors.New("invalid_customer")
	ErrInvalidKind             = errors.New("invalid_kind")
	ErrInvalidAmount           = errors.New("invalid_amount")
	ErrInvalidDescription      = errors.New("invalid_description")
	ErrInvalidDateRange        = errors.New("invalid_date_range")
	ErrInvoiceNotFound         = errors.New("invoice_not_found")
	ErrInvoiceCustomerMismatch = errors.New("invoice_customer_mismatch")
	ErrCreditLimitExceeded     = errors.New("credit_limit_exceeded")
	ErrNotFound                = errors.New("ledger_entry_not_found")
)
