package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/billbook/pkg/db/pagination"
)

type ListCustomerRequest struct {
	pagination.Pagination
	Name  string `form:"name"`
	Email string `form:"email"`
}

type ListCustomerFilter struct {
	Name  string
	Email string
}

type ListCustomerResponse struct {
	pagination.PageInfo
	Customers []Customer `json:"customers"`
}

type CreateCustomerRequest struct {
	Name        string          `json:"name"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	Address     string          `json:"address"`
	GSTIN       *string         `json:"gstin"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

type UpdateCustomerRequest struct {
	ID          snowflake.ID     `json:"-"`
	Name        *string          `json:"name"`
	Email       *string          `json:"email"`
	Phone       *string          `json:"phone"`
	Address     *string          `json:"address"`
	GSTIN       *string          `json:"gstin"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
}

type Service interface {
	Create(context.Context, CreateCustomerRequest) (Customer, error)
	Update(context.Context, UpdateCustomerRequest) (Customer, error)
	GetByID(context.Context, snowflake.ID) (Customer, error)
	List(context.Context, ListCustomerRequest) (ListCustomerResponse, error)
	Delete(context.Context, snowflake.ID) error
}

// BalanceReader reports a customer's derived outstanding balance.
type BalanceReader interface {
	OutstandingBalance(ctx context.Context, customerID snowflake.ID) (decimal.Decimal, error)
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidEmail        = errors.New("invalid_email")
	ErrInvalidPhone        = errors.New("invalid_phone")
	ErrInvalidAddress      = errors.New("invalid_address")
	ErrInvalidGSTIN        = errors.New("invalid_gstin")
	ErrInvalidCreditLimit  = errors.New("invalid_credit_limit")
	ErrInvalidID           = errors.New("invalid_id")
	ErrEmailTaken          = errors.New("email_taken")
	ErrNotFound            = errors.New("customer_not_found")
	ErrCustomerHasActivity = errors.New("customer_has_activity")
)
