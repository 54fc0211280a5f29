package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/billbook/pkg/db/pagination"
)

type Service interface {
	Create(ctx context.Context, req CreateInvoiceRequest) (Invoice, error)
	Get(ctx context.Context, id snowflake.ID) (InvoiceDetail, error)
	List(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	Delete(ctx context.Context, id snowflake.ID) error
	NextNumber(ctx context.Context) (int64, error)
}

type CreateInvoiceRequest struct {
	CustomerID      snowflake.ID    `json:"customer_id"`
	Date            time.Time       `json:"date"`
	PaymentMode     string          `json:"payment_mode"`
	TransportCharge decimal.Decimal `json:"transport_charge"`
	RoundOff        decimal.Decimal `json:"round_off"`
	VehicleNo       *string         `json:"vehicle_no"`
	DeliveryDate    *time.Time      `json:"delivery_date"`
	Destination     *string         `json:"destination"`
	Metadata        map[string]any  `json:"metadata"`
	Lines           []LineItem      `json:"lines"`
}

// LineItem is one requested line. Rate falls back to the product price.
type LineItem struct {
	ProductID       snowflake.ID     `json:"product_id"`
	Quantity        decimal.Decimal  `json:"quantity"`
	Rate            *decimal.Decimal `json:"rate"`
	DiscountPercent decimal.Decimal  `json:"discount_percent"`
}

type InvoiceDetail struct {
	Invoice
	Totals Totals `json:"totals"`
}

type ListInvoiceFilter struct {
	CustomerID snowflake.ID
	From       *time.Time
	To         *time.Time
}

type ListInvoiceRequest struct {
	pagination.Pagination
	CustomerID snowflake.ID `form:"customer_id"`
	From       *time.Time   `form:"start_date" time_format:"2006-01-02"`
	To         *time.Time   `form:"end_date" time_format:"2006-01-02"`
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}
