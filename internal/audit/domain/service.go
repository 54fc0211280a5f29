package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/billbook/pkg/db/pagination"
	"gorm.io/gorm"
)

const (
	ActionInvoiceDelete     = "invoice.delete"
	ActionLedgerEntryDelete = "ledger_entry.delete"
	ActionCustomerDelete    = "customer.delete"
	ActionProductDelete     = "product.delete"
)

// Recorder writes audit entries. A non-nil tx joins the caller's transaction
// so the entry commits or rolls back with the change it describes.
type Recorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) error
}

type Service interface {
	Recorder
	List(ctx context.Context, req ListAuditLogRequest) (ListAuditLogResponse, error)
}

type Entry struct {
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]any
}

type ListAuditLogRequest struct {
	pagination.Pagination
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListAuditLogResponse struct {
	pagination.PageInfo
	AuditLogs []AuditLog `json:"audit_logs"`
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
	After      *pagination.Cursor
	Limit      int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]AuditLog, error)
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidTarget    = errors.New("invalid_target")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)

// NopRecorder discards every entry.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *gorm.DB, Entry) error { return nil }
