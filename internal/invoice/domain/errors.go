package domain

import "errors"

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidCustomer    = errors.New("invalid_customer")
	ErrInvalidPaymentMode = errors.New("invalid_payment_mode")
	ErrInvalidCharges     = errors.New("invalid_charges")
	ErrInvalidDate        = errors.New("invalid_date")
	ErrInvalidLineItem    = errors.New("invalid_line_item")
	ErrAllocationConflict = errors.New("allocation_conflict")
	ErrNotFound           = errors.New("invoice_not_found")
)
