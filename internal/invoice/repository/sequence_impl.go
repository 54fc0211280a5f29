package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/billbook/internal/invoice/domain"
	"github.com/smallbiznis/billbook/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type sequenceRepo struct{}

func ProvideSequence() domain.SequenceRepository {
	return &sequenceRepo{}
}

func (r *sequenceRepo) Ensure(ctx context.Context, tx *gorm.DB, name string) error {
	return tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.InvoiceSequence{Name: name, CurrentValue: 0, UpdatedAt: time.Now().UTC()}).
		Error
}

func (r *sequenceRepo) Lock(ctx context.Context, tx *gorm.DB, name string) (*domain.InvoiceSequence, error) {
	return r.findOne(ctx, tx, `SELECT name, current_value, updated_at FROM invoice_sequences WHERE name = ?`+db.LockSuffix(tx), name)
}

func (r *sequenceRepo) Find(ctx context.Context, tx *gorm.DB, name string) (*domain.InvoiceSequence, error) {
	return r.findOne(ctx, tx, `SELECT name, current_value, updated_at FROM invoice_sequences WHERE name = ?`, name)
}

func (r *sequenceRepo) findOne(ctx context.Context, tx *gorm.DB, query string, args ...any) (*domain.InvoiceSequence, error) {
	var seq domain.InvoiceSequence
	if err := tx.WithContext(ctx).Raw(query, args...).Scan(&seq).Error; err != nil {
		return nil, err
	}
	if seq.Name == "" {
		return nil, nil
	}
	return &seq, nil
}

func (r *sequenceRepo) Advance(ctx context.Context, tx *gorm.DB, seq domain.InvoiceSequence, expected int64) (bool, error) {
	result := tx.WithContext(ctx).Exec(
		`UPDATE invoice_sequences SET current_value = ?, updated_at = ? WHERE name = ? AND current_value = ?`,
		seq.CurrentValue,
		seq.UpdatedAt,
		seq.Name,
		expected,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
