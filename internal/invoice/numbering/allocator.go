// Package numbering hands out invoice numbers from a durable sequence.
package numbering

import (
	"context"
	"strings"

	"github.com/smallbiznis/billbook/internal/clock"
	"github.com/smallbiznis/billbook/internal/config"
	"github.com/smallbiznis/billbook/internal/invoice/domain"
	"gorm.io/gorm"
)

// Allocator assigns the next invoice number inside the caller's transaction.
// Callers serialize Next with lock.InvoiceSequenceKey; the row lock,
// compare-and-set and the unique invoice_number index back that up when the
// lock is lost or the store is shared by instances with separate lockers.
type Allocator struct {
	sequences domain.SequenceRepository
	invoices  domain.Repository
	settings  *config.InvoicingConfigHolder
	clock     clock.Clock
}

func NewAllocator(sequences domain.SequenceRepository, invoices domain.Repository, settings *config.InvoicingConfigHolder, clk clock.Clock) *Allocator {
	return &Allocator{
		sequences: sequences,
		invoices:  invoices,
		settings:  settings,
		clock:     clk,
	}
}

// Sequence names the counter in use.
func (a *Allocator) Sequence() string {
	return strings.TrimSpace(a.settings.Get().SequenceName)
}

// Next advances the sequence and returns the new number. The number is only
// consumed if tx commits.
func (a *Allocator) Next(ctx context.Context, tx *gorm.DB) (int64, error) {
	name := a.Sequence()
	if err := a.sequences.Ensure(ctx, tx, name); err != nil {
		return 0, err
	}

	seq, err := a.sequences.Lock(ctx, tx, name)
	if err != nil {
		return 0, err
	}
	if seq == nil {
		return 0, domain.ErrAllocationConflict
	}

	highest, err := a.invoices.MaxInvoiceNumber(ctx, tx)
	if err != nil {
		return 0, err
	}

	expected := seq.CurrentValue
	next := max(expected, highest) + 1

	ok, err := a.sequences.Advance(ctx, tx, domain.InvoiceSequence{
		Name:         name,
		CurrentValue: next,
		UpdatedAt:    a.clock.Now(),
	}, expected)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, domain.ErrAllocationConflict
	}
	return next, nil
}

// Peek returns the number the next invoice would most likely receive. It
// takes no lock and reserves nothing.
func (a *Allocator) Peek(ctx context.Context, db *gorm.DB) (int64, error) {
	var current int64
	seq, err := a.sequences.Find(ctx, db, a.Sequence())
	if err != nil {
		return 0, err
	}
	if seq != nil {
		current = seq.CurrentValue
	}

	highest, err := a.invoices.MaxInvoiceNumber(ctx, db)
	if err != nil {
		return 0, err
	}
	return max(current, highest) + 1, nil
}
