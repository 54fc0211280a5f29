package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	OperationInvoiceCreate = "invoice_create"
	OperationInvoiceDelete = "invoice_delete"
	OperationLedgerPost    = "ledger_post"
)

const (
	OutcomeCommitted = "committed"
	OutcomeRetried   = "retried"
	OutcomeFailed    = "failed"
)

const (
	CommitReasonDeadlineExceeded     = "deadline_exceeded"
	CommitReasonDBLockTimeout        = "db_lock_timeout"
	CommitReasonSerializationFailure = "serialization_failure"
	CommitReasonUniqueViolation      = "unique_violation"
	CommitReasonStorage              = "storage"
	CommitReasonBusinessRule         = "business_rule"
)

const (
	LockResourceInvoiceSequence = "invoice_sequence"
	LockResourceCustomerLedger  = "customer_ledger"
)

// CommitMetrics tracks the critical sections that allocate invoice numbers
// and authorize credit. A nil *CommitMetrics is valid and records nothing.
type CommitMetrics struct {
	attempts      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	lockWait      *prometheus.HistogramVec
	lockObservers map[string]prometheus.Observer
}

// NewCommitMetrics registers the commit instruments on registerer.
func NewCommitMetrics(registerer prometheus.Registerer, cfg Config) *CommitMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "billbook"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "billbook_commit_attempts_total",
		Help:        "Commit attempts by operation and outcome.",
		ConstLabels: constLabels,
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "billbook_commit_duration_seconds",
		Help:        "Wall time of a commit including retries.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	}, []string{"operation"})
	commitErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "billbook_commit_errors_total",
		Help:        "Commit errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	lockWait := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "billbook_lock_wait_seconds",
		Help:        "Time spent waiting to enter a critical section.",
		Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: constLabels,
	}, []string{"resource"})

	registerer.MustRegister(attempts, duration, commitErrors, lockWait)

	return &CommitMetrics{
		attempts: attempts,
		duration: duration,
		errors:   commitErrors,
		lockWait: lockWait,
		lockObservers: map[string]prometheus.Observer{
			LockResourceInvoiceSequence: lockWait.WithLabelValues(LockResourceInvoiceSequence),
			LockResourceCustomerLedger:  lockWait.WithLabelValues(LockResourceCustomerLedger),
		},
	}
}

func (m *CommitMetrics) IncAttempt(operation, outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(operation, outcome).Inc()
}

func (m *CommitMetrics) ObserveDuration(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// IncError classifies err and counts it against operation.
func (m *CommitMetrics) IncError(operation string, err error) {
	if m == nil || err == nil {
		return
	}
	m.errors.WithLabelValues(operation, ClassifyCommitReason(err)).Inc()
}

func (m *CommitMetrics) ObserveLockWait(resource string, wait time.Duration) {
	if m == nil {
		return
	}
	if wait < 0 {
		wait = 0
	}
	if observer, ok := m.lockObservers[resource]; ok {
		observer.Observe(wait.Seconds())
		return
	}
	m.lockWait.WithLabelValues(resource).Observe(wait.Seconds())
}

// ClassifyCommitReason maps commit errors to low-cardinality reasons.
func ClassifyCommitReason(err error) string {
	switch {
	case err == nil:
		return CommitReasonBusinessRule
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return CommitReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return CommitReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return CommitReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return CommitReasonUniqueViolation
	case isDBError(err):
		return CommitReasonStorage
	default:
		return CommitReasonBusinessRule
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrInvalidValue) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
