package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billbook/internal/ledger/domain"
	"gorm.io/gorm"
)

const (
	selectEntry   = `SELECT id, customer_id, kind, amount, description, date, payment_mode, invoice_id, created_by, created_at FROM ledger_entries`
	selectInvoice = `SELECT id AS invoice_id, invoice_number, customer_id, date, total_amount FROM invoices`
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.LedgerEntry) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (id, customer_id, kind, amount, description, date, payment_mode, invoice_id, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.CustomerID,
		string(entry.Kind),
		entry.Amount,
		entry.Description,
		entry.Date,
		entry.PaymentMode,
		entry.InvoiceID,
		entry.CreatedBy,
		entry.CreatedAt,
	).Error
}

func (r *repo) FindEntry(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	if err := db.WithContext(ctx).Raw(selectEntry+` WHERE id = ?`, id).Scan(&entry).Error; err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (r *repo) DeleteEntry(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM ledger_entries WHERE id = ?`, id).Error
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, filter domain.EntryFilter) ([]domain.LedgerEntry, error) {
	stmt := db.WithContext(ctx).Model(&domain.LedgerEntry{})
	if filter.CustomerID != 0 {
		stmt = stmt.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.Kind != "" {
		stmt = stmt.Where("kind = ?", string(filter.Kind))
	}
	if filter.From != nil {
		stmt = stmt.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("date < ?", *filter.To)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var entries []domain.LedgerEntry
	err := stmt.Order("date desc").Order("id desc").Find(&entries).Error
	return entries, err
}

func (r *repo) EntriesForCustomer(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	var err error
	if customerID == 0 {
		err = db.WithContext(ctx).Raw(selectEntry + ` ORDER BY date ASC, id ASC`).Scan(&entries).Error
	} else {
		err = db.WithContext(ctx).Raw(selectEntry+` WHERE customer_id = ? ORDER BY date ASC, id ASC`, customerID).Scan(&entries).Error
	}
	return entries, err
}

func (r *repo) InvoiceTotals(ctx context.Context, db *gorm.DB, customerID snowflake.ID) ([]domain.InvoiceTotal, error) {
	var totals []domain.InvoiceTotal
	var err error
	if customerID == 0 {
		err = db.WithContext(ctx).Raw(selectInvoice + ` ORDER BY date ASC, id ASC`).Scan(&totals).Error
	} else {
		err = db.WithContext(ctx).Raw(selectInvoice+` WHERE customer_id = ? ORDER BY date ASC, id ASC`, customerID).Scan(&totals).Error
	}
	return totals, err
}

func (r *repo) FindInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (*domain.InvoiceTotal, error) {
	var total domain.InvoiceTotal
	if err := db.WithContext(ctx).Raw(selectInvoice+` WHERE id = ?`, invoiceID).Scan(&total).Error; err != nil {
		return nil, err
	}
	if total.InvoiceID == 0 {
		return nil, nil
	}
	return &total, nil
}
