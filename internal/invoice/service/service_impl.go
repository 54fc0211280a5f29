package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/billbook/internal/actorcontext"
	auditdomain "github.com/smallbiznis/billbook/internal/audit/domain"
	"github.com/smallbiznis/billbook/internal/clock"
	"github.com/smallbiznis/billbook/internal/config"
	customerdomain "github.com/smallbiznis/billbook/internal/customer/domain"
	"github.com/smallbiznis/billbook/internal/events"
	invoicedomain "github.com/smallbiznis/billbook/internal/invoice/domain"
	"github.com/smallbiznis/billbook/internal/invoice/numbering"
	"github.com/smallbiznis/billbook/internal/lock"
	obsmetrics "github.com/smallbiznis/billbook/internal/observability/metrics"
	"github.com/smallbiznis/billbook/internal/observability/tracing"
	productdomain "github.com/smallbiznis/billbook/internal/product/domain"
	"github.com/smallbiznis/billbook/internal/tax"
	"github.com/smallbiznis/billbook/pkg/db"
	"github.com/smallbiznis/billbook/pkg/db/pagination"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Settings      *config.InvoicingConfigHolder
	Repo          invoicedomain.Repository
	Allocator     *numbering.Allocator
	Customers     customerdomain.Repository
	Products      productdomain.Repository
	Locker        lock.Locker
	Audit         auditdomain.Recorder      `optional:"true"`
	Publisher     events.Publisher         `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics       `optional:"true"`
	CommitMetrics *obsmetrics.CommitMetrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID         *snowflake.Node
	clock         clock.Clock
	settings      *config.InvoicingConfigHolder
	repo          invoicedomain.Repository
	allocator     *numbering.Allocator
	customers     customerdomain.Repository
	products      productdomain.Repository
	locker        lock.Locker
	audit         auditdomain.Recorder
	publisher     events.Publisher
	obsMetrics    *obsmetrics.Metrics
	commitMetrics *obsmetrics.CommitMetrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	var recorder auditdomain.Recorder = auditdomain.NopRecorder{}
	if p.Audit != nil {
		recorder = p.Audit
	}
	return &Service{
		db:  p.DB,
		log: p.Log.Named("invoice.service"),

		genID:         p.GenID,
		clock:         p.Clock,
		settings:      p.Settings,
		repo:          p.Repo,
		allocator:     p.Allocator,
		customers:     p.Customers,
		products:      p.Products,
		locker:        p.Locker,
		audit:         recorder,
		publisher:     publisher,
		obsMetrics:    p.ObsMetrics,
		commitMetrics: p.CommitMetrics,
	}
}

func (s *Service) Create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	ctx, span := tracing.StartSpan(ctx, "invoice.Create",
		attribute.Int64("customer.id", req.CustomerID.Int64()),
		attribute.Int("invoice.lines", len(req.Lines)),
	)
	invoice, err := s.create(ctx, req)
	tracing.EndSpan(span, err)
	return invoice, err
}

func (s *Service) create(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	if err := validateHeader(req); err != nil {
		return invoicedomain.Invoice{}, err
	}

	customer, err := s.customers.FindByID(ctx, s.db, req.CustomerID)
	if err != nil {
		return invoicedomain.Invoice{}, db.Wrap(err)
	}
	if customer == nil {
		return invoicedomain.Invoice{}, customerdomain.ErrNotFound
	}

	invoice, err := s.price(ctx, req)
	if err != nil {
		return invoicedomain.Invoice{}, err
	}

	cfg := s.settings.Get()
	policy := db.RetryPolicy{MaxAttempts: cfg.MaxCommitAttempts, BaseDelay: cfg.RetryBaseDelay}
	started := s.clock.Now()

	number, err := db.Retry(ctx, policy, retryable, func(attempt int) (int64, error) {
		number, err := s.commit(ctx, &invoice)
		if errors.Is(err, invoicedomain.ErrAllocationConflict) {
			s.obsMetrics.RecordAllocationConflict(ctx, attempt)
		}
		if err != nil && retryable(err) && attempt < policy.MaxAttempts {
			s.commitMetrics.IncAttempt(obsmetrics.OperationInvoiceCreate, obsmetrics.OutcomeRetried)
			s.log.Warn("invoice commit retry",
				zap.Int("attempt", attempt),
				zap.String("reason", obsmetrics.ClassifyCommitReason(err)),
				zap.Error(err),
			)
		}
		return number, err
	})
	s.commitMetrics.ObserveDuration(obsmetrics.OperationInvoiceCreate, s.clock.Now().Sub(started))
	if err != nil {
		s.commitMetrics.IncAttempt(obsmetrics.OperationInvoiceCreate, obsmetrics.OutcomeFailed)
		s.commitMetrics.IncError(obsmetrics.OperationInvoiceCreate, err)
		s.log.Error("invoice create failed", zap.Int64("customer_id", req.CustomerID.Int64()), zap.Error(err))
		return invoicedomain.Invoice{}, err
	}
	invoice.InvoiceNumber = number
	invoice.NumberLabel = s.allocator.Label(invoice.Date, number)

	s.commitMetrics.IncAttempt(obsmetrics.OperationInvoiceCreate, obsmetrics.OutcomeCommitted)
	s.obsMetrics.RecordInvoiceCreated(ctx, invoice.PaymentMode, len(invoice.Items))
	s.log.Info("invoice created",
		zap.Int64("invoice_id", invoice.ID.Int64()),
		zap.Int64("invoice_number", invoice.InvoiceNumber),
		zap.Int64("customer_id", invoice.CustomerID.Int64()),
		zap.String("total_amount", invoice.TotalAmount.String()),
	)

	s.publisher.Publish(ctx, events.New(ctx, events.TopicInvoiceCreated, invoice.CreatedAt, invoice.Clone()))
	s.publisher.Publish(ctx, events.New(ctx, events.TopicCustomerUpdated, invoice.CreatedAt, map[string]any{
		"customer_id": invoice.CustomerID,
		"invoice_id":  invoice.ID,
	}))
	return invoice, nil
}

// price builds the full invoice outside any lock. The first invalid line
// aborts the whole request.
func (s *Service) price(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (invoicedomain.Invoice, error) {
	ids := make([]snowflake.ID, 0, len(req.Lines))
	for _, line := range req.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, s.db, ids)
	if err != nil {
		return invoicedomain.Invoice{}, db.Wrap(err)
	}

	invoiceID := s.genID.Generate()
	items := make([]invoicedomain.InvoiceItem, 0, len(req.Lines))
	priced := make([]tax.PricedLine, 0, len(req.Lines))
	for i, line := range req.Lines {
		product, ok := products[line.ProductID]
		if !ok {
			return invoicedomain.Invoice{}, lineError(i, productdomain.ErrNotFound)
		}

		rate := product.Price
		if line.Rate != nil {
			rate = *line.Rate
		}
		pl, err := tax.PriceLine(tax.Line{
			Quantity:        line.Quantity,
			Rate:            rate,
			DiscountPercent: line.DiscountPercent,
			HSN:             product.HSN,
			GSTPercent:      product.GSTPercent,
		})
		if err != nil {
			return invoicedomain.Invoice{}, lineError(i, err)
		}

		priced = append(priced, pl)
		items = append(items, invoicedomain.InvoiceItem{
			ID:              s.genID.Generate(),
			InvoiceID:       invoiceID,
			Position:        i + 1,
			ProductID:       product.ID,
			Description:     product.Name,
			Quantity:        pl.Quantity,
			Rate:            pl.Rate,
			DiscountPercent: pl.DiscountPercent,
			HSN:             pl.HSN,
			GSTPercent:      pl.GSTPercent,
			Price:           pl.Price,
			Discount:        pl.Discount,
			Taxable:         pl.Taxable,
			CGST:            pl.CGST,
			SGST:            pl.SGST,
			Amount:          pl.Amount,
		})
	}

	totals := invoicedomain.Aggregate(priced, req.TransportCharge, req.RoundOff)

	now := s.clock.Now()
	date := req.Date
	if date.IsZero() {
		date = now
	}
	var deliveryDate *time.Time
	if req.DeliveryDate != nil {
		d := req.DeliveryDate.UTC()
		deliveryDate = &d
	}
	metadata := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	return invoicedomain.Invoice{
		ID:              invoiceID,
		CustomerID:      req.CustomerID,
		Date:            date.UTC(),
		PaymentMode:     strings.TrimSpace(req.PaymentMode),
		TransportCharge: req.TransportCharge,
		RoundOff:        req.RoundOff,
		TotalAmount:     totals.GrandTotal,
		VehicleNo:       trimOptional(req.VehicleNo),
		DeliveryDate:    deliveryDate,
		Destination:     trimOptional(req.Destination),
		CreatedBy:       actorcontext.ActorOrSystem(ctx),
		Metadata:        metadata,
		CreatedAt:       now,
		Items:           items,
	}, nil
}

// commit allocates a number and stores the invoice with its items in one
// transaction under the sequence lock.
func (s *Service) commit(ctx context.Context, invoice *invoicedomain.Invoice) (int64, error) {
	waitStart := time.Now()
	release, err := s.locker.Acquire(ctx, lock.InvoiceSequenceKey(s.allocator.Sequence()))
	if err != nil {
		return 0, err
	}
	defer release()
	s.commitMetrics.ObserveLockWait(obsmetrics.LockResourceInvoiceSequence, time.Since(waitStart))

	var number int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := s.allocator.Next(ctx, tx)
		if err != nil {
			return err
		}

		row := *invoice
		row.InvoiceNumber = next
		if err := s.repo.Insert(ctx, tx, &row); err != nil {
			return err
		}
		if err := s.repo.InsertItems(ctx, tx, invoice.Items); err != nil {
			return err
		}
		number = next
		return nil
	})
	if err != nil {
		return 0, classifyCommitErr(err)
	}
	return number, nil
}

func classifyCommitErr(err error) error {
	switch {
	case errors.Is(err, invoicedomain.ErrAllocationConflict):
		return err
	case db.IsDuplicateKeyErr(err):
		return fmt.Errorf("%w: %w", invoicedomain.ErrAllocationConflict, err)
	default:
		return db.Wrap(err)
	}
}

func retryable(err error) bool {
	if errors.Is(err, invoicedomain.ErrAllocationConflict) {
		return true
	}
	return errors.Is(err, db.ErrStorageFailure) && db.IsTransientErr(err)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (invoicedomain.InvoiceDetail, error) {
	if id == 0 {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrInvalidID
	}
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, db.Wrap(err)
	}
	if invoice == nil {
		return invoicedomain.InvoiceDetail{}, invoicedomain.ErrNotFound
	}
	items, err := s.repo.FindItems(ctx, s.db, id)
	if err != nil {
		return invoicedomain.InvoiceDetail{}, db.Wrap(err)
	}
	invoice.Items = items
	invoice.NumberLabel = s.allocator.Label(invoice.Date, invoice.InvoiceNumber)

	return invoicedomain.InvoiceDetail{
		Invoice: *invoice,
		Totals:  invoicedomain.TotalsOf(*invoice),
	}, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	filter := invoicedomain.ListInvoiceFilter{CustomerID: req.CustomerID}
	if req.From != nil {
		from := startOfDay(*req.From)
		filter.From = &from
	}
	if req.To != nil {
		to := startOfDay(*req.To).Add(24 * time.Hour)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidDate
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return invoicedomain.ListInvoiceResponse{}, err
		}
		return invoicedomain.ListInvoiceResponse{}, db.Wrap(err)
	}

	invoices, pageInfo := pagination.Page(items, req.Limit(), func(inv invoicedomain.Invoice) int64 {
		return inv.ID.Int64()
	})
	for i := range invoices {
		invoices[i].NumberLabel = s.allocator.Label(invoices[i].Date, invoices[i].InvoiceNumber)
	}
	return invoicedomain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

// Delete removes the invoice and its items together. The sequence is left
// untouched so the number is never handed out again.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return invoicedomain.ErrInvalidID
	}

	ctx, span := tracing.StartSpan(ctx, "invoice.Delete", attribute.Int64("invoice.id", id.Int64()))
	var deleted invoicedomain.Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return db.Wrap(err)
		}
		if invoice == nil {
			return invoicedomain.ErrNotFound
		}
		if err := s.repo.DeleteItems(ctx, tx, id); err != nil {
			return db.Wrap(err)
		}
		rows, err := s.repo.Delete(ctx, tx, id)
		if err != nil {
			return db.Wrap(err)
		}
		if rows == 0 {
			return invoicedomain.ErrNotFound
		}
		deleted = *invoice
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionInvoiceDelete,
			TargetType: "invoice",
			TargetID:   id.String(),
			Metadata: map[string]any{
				"invoice_number": invoice.InvoiceNumber,
				"customer_id":    invoice.CustomerID.String(),
				"total_amount":   invoice.TotalAmount.String(),
			},
		})
	})
	tracing.EndSpan(span, err)
	if err != nil {
		s.commitMetrics.IncError(obsmetrics.OperationInvoiceDelete, err)
		return err
	}

	s.commitMetrics.IncAttempt(obsmetrics.OperationInvoiceDelete, obsmetrics.OutcomeCommitted)
	s.log.Warn("invoice deleted",
		zap.Int64("invoice_id", id.Int64()),
		zap.Int64("invoice_number", deleted.InvoiceNumber),
		zap.String("actor_id", actorcontext.ActorOrSystem(ctx)),
	)
	now := s.clock.Now()
	s.publisher.Publish(ctx, events.New(ctx, events.TopicInvoiceDeleted, now, map[string]any{
		"invoice_id":     deleted.ID,
		"invoice_number": deleted.InvoiceNumber,
		"customer_id":    deleted.CustomerID,
	}))
	s.publisher.Publish(ctx, events.New(ctx, events.TopicCustomerUpdated, now, map[string]any{
		"customer_id": deleted.CustomerID,
		"invoice_id":  deleted.ID,
	}))
	return nil
}

func (s *Service) NextNumber(ctx context.Context) (int64, error) {
	next, err := s.allocator.Peek(ctx, s.db)
	if err != nil {
		return 0, db.Wrap(err)
	}
	return next, nil
}

func validateHeader(req invoicedomain.CreateInvoiceRequest) error {
	if req.CustomerID == 0 {
		return invoicedomain.ErrInvalidCustomer
	}
	mode := strings.TrimSpace(req.PaymentMode)
	if mode == "" || len(mode) > 50 {
		return invoicedomain.ErrInvalidPaymentMode
	}
	if req.TransportCharge.IsNegative() {
		return invoicedomain.ErrInvalidCharges
	}
	if req.DeliveryDate != nil && !req.Date.IsZero() && req.DeliveryDate.Before(startOfDay(req.Date)) {
		return invoicedomain.ErrInvalidDate
	}
	return nil
}

func lineError(index int, err error) error {
	return fmt.Errorf("%w: line %d: %w", invoicedomain.ErrInvalidLineItem, index+1, err)
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
