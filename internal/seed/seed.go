package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	customerdomain "github.com/smallbiznis/billbook/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/billbook/internal/invoice/domain"
	productdomain "github.com/smallbiznis/billbook/internal/product/domain"
	"gorm.io/gorm"
)

const (
	sampleCustomerEmail = "walkin@billbook.local"
	sampleCustomerName  = "Walk-in Customer"
)

// EnsureInvoiceSequence creates the named invoice counter when missing.
func EnsureInvoiceSequence(db *gorm.DB, name string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("invoice sequence name is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := ensureInvoiceSequenceTx(ctx, tx, name)
		return err
	})
}

func ensureInvoiceSequenceTx(ctx context.Context, tx *gorm.DB, name string) (invoicedomain.InvoiceSequence, error) {
	var seq invoicedomain.InvoiceSequence
	err := tx.WithContext(ctx).Where("name = ?", name).First(&seq).Error
	if err == nil {
		return seq, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return seq, err
	}

	// Continue after any invoices already stored.
	var highest int64
	if err := tx.WithContext(ctx).Raw(`SELECT COALESCE(MAX(invoice_number), 0) FROM invoices`).Scan(&highest).Error; err != nil {
		return seq, err
	}

	seq = invoicedomain.InvoiceSequence{
		Name:         name,
		CurrentValue: highest,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(&seq).Error; err != nil {
		return seq, err
	}
	return seq, nil
}

// EnsureSampleData seeds a walk-in customer and a small catalog for local
// development. It does nothing once the sample customer exists.
func EnsureSampleData(db *gorm.DB, nodeID int64) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := ensureSampleCustomerTx(ctx, tx, node)
		if err != nil || !created {
			return err
		}
		return ensureSampleProductsTx(ctx, tx, node)
	})
}

func ensureSampleCustomerTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) (bool, error) {
	var customer customerdomain.Customer
	err := tx.WithContext(ctx).Where("email = ?", sampleCustomerEmail).First(&customer).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	now := time.Now().UTC()
	customer = customerdomain.Customer{
		ID:          node.Generate(),
		Name:        sampleCustomerName,
		Email:       sampleCustomerEmail,
		Phone:       "0000000000",
		Address:     "Counter sale",
		CreditLimit: decimal.NewFromInt(10000),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return true, tx.WithContext(ctx).Create(&customer).Error
}

func ensureSampleProductsTx(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	samples := []struct {
		name  string
		hsn   string
		gst   int64
		price string
	}{
		{name: "Wheat Flour 10kg", hsn: "1101", gst: 5, price: "420"},
		{name: "Basmati Rice 5kg", hsn: "1006", gst: 5, price: "650"},
		{name: "Steel Bucket", hsn: "7323", gst: 18, price: "100"},
	}

	now := time.Now().UTC()
	for _, sample := range samples {
		product := productdomain.Product{
			ID:         node.Generate(),
			Name:       sample.name,
			HSN:        sample.hsn,
			GSTPercent: decimal.NewFromInt(sample.gst),
			Price:      decimal.RequireFromString(sample.price),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.WithContext(ctx).Create(&product).Error; err != nil {
			return err
		}
	}
	return nil
}
