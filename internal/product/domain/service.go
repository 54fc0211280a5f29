package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Product, error)
	Update(ctx context.Context, req UpdateRequest) (*Product, error)
	Get(ctx context.Context, id snowflake.ID) (*Product, error)
	List(ctx context.Context, req ListRequest) ([]Product, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

type ListRequest struct {
	Name string `form:"name"`
	HSN  string `form:"hsn"`
}

type CreateRequest struct {
	Name       string          `json:"name" validate:"required,max=100"`
	HSN        string          `json:"hsn" validate:"required,max=20"`
	GSTPercent decimal.Decimal `json:"gst_percent"`
	Price      decimal.Decimal `json:"price"`
}

type UpdateRequest struct {
	ID         snowflake.ID     `json:"-"`
	Name       *string          `json:"name" validate:"omitempty,max=100"`
	HSN        *string          `json:"hsn" validate:"omitempty,max=20"`
	GSTPercent *decimal.Decimal `json:"gst_percent"`
	Price      *decimal.Decimal `json:"price"`
}

var (
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidHSN        = errors.New("invalid_hsn")
	ErrInvalidGSTPercent = errors.New("invalid_gst_percent")
	ErrInvalidPrice      = errors.New("invalid_price")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("product_not_found")
	ErrProductInUse      = errors.New("product_in_use")
)
