package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billbook/internal/invoice/domain"
	"github.com/smallbiznis/billbook/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	selectInvoice = `SELECT id, invoice_number, customer_id, date, payment_mode, transport_charge, round_off, total_amount,
		vehicle_no, delivery_date, destination, created_by, metadata, created_at FROM invoices`
	selectItem = `SELECT id, invoice_id, position, product_id, description, quantity, rate, discount_percent, hsn, gst_percent,
		price, discount, taxable, cgst, sgst, amount FROM invoice_items`
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO invoices (id, invoice_number, customer_id, date, payment_mode, transport_charge, round_off, total_amount,
			vehicle_no, delivery_date, destination, created_by, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		invoice.ID,
		invoice.InvoiceNumber,
		invoice.CustomerID,
		invoice.Date,
		invoice.PaymentMode,
		invoice.TransportCharge,
		invoice.RoundOff,
		invoice.TotalAmount,
		invoice.VehicleNo,
		invoice.DeliveryDate,
		invoice.Destination,
		invoice.CreatedBy,
		invoice.Metadata,
		invoice.CreatedAt,
	).Error
}

func (r *repo) InsertItems(ctx context.Context, db *gorm.DB, items []domain.InvoiceItem) error {
	for _, item := range items {
		err := db.WithContext(ctx).Exec(
			`INSERT INTO invoice_items (id, invoice_id, position, product_id, description, quantity, rate, discount_percent,
				hsn, gst_percent, price, discount, taxable, cgst, sgst, amount)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID,
			item.InvoiceID,
			item.Position,
			item.ProductID,
			item.Description,
			item.Quantity,
			item.Rate,
			item.DiscountPercent,
			item.HSN,
			item.GSTPercent,
			item.Price,
			item.Discount,
			item.Taxable,
			item.CGST,
			item.SGST,
			item.Amount,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	if err := db.WithContext(ctx).Raw(selectInvoice+` WHERE id = ?`, id).Scan(&invoice).Error; err != nil {
		return nil, err
	}
	if invoice.ID == 0 {
		return nil, nil
	}
	return &invoice, nil
}

func (r *repo) FindItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) ([]domain.InvoiceItem, error) {
	var items []domain.InvoiceItem
	err := db.WithContext(ctx).Raw(selectItem+` WHERE invoice_id = ? ORDER BY position ASC`, invoiceID).Scan(&items).Error
	return items, err
}

// List orders by date then id, newest first. The page token names the last
// invoice of the previous page; its date anchors the next page.
func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListInvoiceFilter, page pagination.Pagination) ([]domain.Invoice, error) {
	after, err := page.After()
	if err != nil {
		return nil, err
	}

	stmt := db.WithContext(ctx).Model(&domain.Invoice{})
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.From != nil {
		stmt = stmt.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("date < ?", *filter.To)
	}
	if after != nil {
		anchor, err := r.FindByID(ctx, db, snowflake.ID(after.ID))
		if err != nil {
			return nil, err
		}
		if anchor == nil {
			return nil, pagination.ErrInvalidPageToken
		}
		stmt = stmt.Where("(date < ? OR (date = ? AND id < ?))", anchor.Date, anchor.Date, anchor.ID)
	}

	var invoices []domain.Invoice
	err = stmt.
		Order("date desc").
		Order("id desc").
		Limit(page.Limit() + 1).
		Find(&invoices).Error
	return invoices, err
}

func (r *repo) DeleteItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM invoice_items WHERE invoice_id = ?`, invoiceID).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	result := db.WithContext(ctx).Exec(`DELETE FROM invoices WHERE id = ?`, id)
	return result.RowsAffected, result.Error
}

func (r *repo) MaxInvoiceNumber(ctx context.Context, db *gorm.DB) (int64, error) {
	var max int64
	err := db.WithContext(ctx).Raw(`SELECT COALESCE(MAX(invoice_number), 0) FROM invoices`).Scan(&max).Error
	return max, err
}
