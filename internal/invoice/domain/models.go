// Package domain contains persistence models for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Invoice is a numbered, priced sale to one customer. TotalAmount is always
// the Aggregate of its items and charges.
type Invoice struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	InvoiceNumber   int64             `gorm:"not null;uniqueIndex:ux_invoices_invoice_number" json:"invoice_number"`
	CustomerID      snowflake.ID      `gorm:"not null;index" json:"customer_id"`
	Date            time.Time         `gorm:"not null;index" json:"date"`
	PaymentMode     string            `gorm:"type:varchar(50);not null" json:"payment_mode"`
	TransportCharge decimal.Decimal   `gorm:"type:numeric(24,8);not null" json:"transport_charge"`
	RoundOff        decimal.Decimal   `gorm:"type:numeric(24,8);not null" json:"round_off"`
	TotalAmount     decimal.Decimal   `gorm:"type:numeric(24,8);not null" json:"total_amount"`
	VehicleNo       *string           `gorm:"type:varchar(50)" json:"vehicle_no,omitempty"`
	DeliveryDate    *time.Time        `json:"delivery_date,omitempty"`
	Destination     *string           `gorm:"type:varchar(200)" json:"destination,omitempty"`
	CreatedBy       string            `gorm:"type:varchar(100);not null" json:"created_by"`
	Metadata        datatypes.JSONMap `gorm:"not null" json:"metadata"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`

	NumberLabel string        `gorm:"-" json:"number_label"`
	Items       []InvoiceItem `gorm:"-" json:"items"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// Clone returns a copy of inv that shares no pointers, map or slice with it.
func (inv Invoice) Clone() Invoice {
	out := inv
	if inv.VehicleNo != nil {
		v := *inv.VehicleNo
		out.VehicleNo = &v
	}
	if inv.DeliveryDate != nil {
		d := *inv.DeliveryDate
		out.DeliveryDate = &d
	}
	if inv.Destination != nil {
		d := *inv.Destination
		out.Destination = &d
	}
	if inv.Metadata != nil {
		out.Metadata = make(datatypes.JSONMap, len(inv.Metadata))
		for k, v := range inv.Metadata {
			out.Metadata[k] = v
		}
	}
	if inv.Items != nil {
		out.Items = append([]InvoiceItem(nil), inv.Items...)
	}
	return out
}

// InvoiceItem is one priced line. Product name, HSN and GST rate are copied
// from the product when the invoice is created.
type InvoiceItem struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID       snowflake.ID    `gorm:"not null;uniqueIndex:ux_invoice_items_position,priority:1" json:"invoice_id"`
	Position        int             `gorm:"not null;uniqueIndex:ux_invoice_items_position,priority:2" json:"position"`
	ProductID       snowflake.ID    `gorm:"not null;index" json:"product_id"`
	Description     string          `gorm:"type:varchar(100);not null" json:"description"`
	Quantity        decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"quantity"`
	Rate            decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"rate"`
	DiscountPercent decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"discount_percent"`
	HSN             string          `gorm:"column:hsn;type:varchar(20);not null" json:"hsn"`
	GSTPercent      decimal.Decimal `gorm:"column:gst_percent;type:numeric(24,8);not null" json:"gst_percent"`
	Price           decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"price"`
	Discount        decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"discount"`
	Taxable         decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"taxable"`
	CGST            decimal.Decimal `gorm:"column:cgst;type:numeric(24,8);not null" json:"cgst"`
	SGST            decimal.Decimal `gorm:"column:sgst;type:numeric(24,8);not null" json:"sgst"`
	Amount          decimal.Decimal `gorm:"type:numeric(24,8);not null" json:"amount"`
}

// TableName sets the database table name.
func (InvoiceItem) TableName() string { return "invoice_items" }

// InvoiceSequence is the durable counter behind invoice numbers. It only
// moves forward, so deleting the newest invoice never frees its number.
type InvoiceSequence struct {
	Name         string    `gorm:"primaryKey;type:varchar(50)" json:"name"`
	CurrentValue int64     `gorm:"not null" json:"current_value"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (InvoiceSequence) TableName() string { return "invoice_sequences" }
