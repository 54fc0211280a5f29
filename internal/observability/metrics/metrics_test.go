package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	"gorm.io/gorm"
)

func TestFilterAttributesDropsIdentifiers(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("kind", "credit"),
		attribute.String("customer_id", "456"),
		attribute.String("invoice_number", "17"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("kind"), attrs[0].Key)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordInvoiceCreated(context.Background(), "cash", 2)
	m.RecordLedgerEntry(context.Background(), "credit")
	m.RecordAllocationConflict(context.Background(), 1)
	m.RecordCreditLimitRejection(context.Background())

	var cm *CommitMetrics
	cm.IncAttempt(OperationInvoiceCreate, OutcomeCommitted)
	cm.IncError(OperationLedgerPost, errors.New("boom"))
	cm.ObserveLockWait(LockResourceCustomerLedger, time.Millisecond)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "billbook"}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordInvoiceCreated(context.Background(), "upi", 3)
}

func TestClassifyCommitReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: CommitReasonDeadlineExceeded},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: CommitReasonDBLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: CommitReasonSerializationFailure},
		{name: "duplicate", err: fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), want: CommitReasonUniqueViolation},
		{name: "pg_other", err: &pgconn.PgError{Code: "08006"}, want: CommitReasonStorage},
		{name: "not_found", err: gorm.ErrRecordNotFound, want: CommitReasonBusinessRule},
		{name: "unknown", err: errors.New("credit_limit_exceeded"), want: CommitReasonBusinessRule},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyCommitReason(tc.err))
		})
	}
}

func TestCommitMetricsCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewCommitMetrics(registry, Config{ServiceName: "billbook", Environment: "test"})

	m.IncAttempt(OperationInvoiceCreate, OutcomeRetried)
	m.IncAttempt(OperationInvoiceCreate, OutcomeCommitted)
	m.IncError(OperationInvoiceCreate, gorm.ErrDuplicatedKey)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.attempts.WithLabelValues(OperationInvoiceCreate, OutcomeRetried)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.errors.WithLabelValues(OperationInvoiceCreate, CommitReasonUniqueViolation)))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := NewHTTPMetrics(registry)

	router := gin.New()
	router.Use(m.GinMiddleware())
	router.GET("/api/invoices/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/invoices/42", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/api/invoices/:id", "404")))
}
