package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/billbook/internal/actorcontext"
	auditdomain "github.com/smallbiznis/billbook/internal/audit/domain"
	"github.com/smallbiznis/billbook/internal/clock"
	"github.com/smallbiznis/billbook/internal/config"
	customerdomain "github.com/smallbiznis/billbook/internal/customer/domain"
	"github.com/smallbiznis/billbook/internal/events"
	"github.com/smallbiznis/billbook/internal/ledger/domain"
	"github.com/smallbiznis/billbook/internal/lock"
	obsmetrics "github.com/smallbiznis/billbook/internal/observability/metrics"
	"github.com/smallbiznis/billbook/internal/observability/tracing"
	"github.com/smallbiznis/billbook/pkg/db"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
	recentEntries    = 10
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          domain.Repository
	Customers     customerdomain.Repository
	Locker        lock.Locker
	Settings      *config.InvoicingConfigHolder `optional:"true"`
	Audit         auditdomain.Recorder          `optional:"true"`
	Publisher     events.Publisher              `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics           `optional:"true"`
	CommitMetrics *obsmetrics.CommitMetrics     `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	customers     customerdomain.Repository
	locker        lock.Locker
	settings      *config.InvoicingConfigHolder
	audit         auditdomain.Recorder
	publisher     events.Publisher
	obsMetrics    *obsmetrics.Metrics
	commitMetrics *obsmetrics.CommitMetrics
}

func New(p Params) domain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	var recorder auditdomain.Recorder = auditdomain.NopRecorder{}
	if p.Audit != nil {
		recorder = p.Audit
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("ledger.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		customers:     p.Customers,
		locker:        p.Locker,
		settings:      p.Settings,
		audit:         recorder,
		publisher:     publisher,
		obsMetrics:    p.ObsMetrics,
		commitMetrics: p.CommitMetrics,
	}
}

// BalanceUpdate is published on the customer topic after a ledger write.
type BalanceUpdate struct {
	CustomerID  snowflake.ID    `json:"customer_id"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

func (s *Service) PostEntry(ctx context.Context, req domain.PostEntryRequest) (domain.LedgerEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "ledger.PostEntry",
		attribute.String("ledger.kind", string(req.Kind)),
		attribute.Int64("customer.id", req.CustomerID.Int64()),
	)
	entry, err := s.postEntry(ctx, req)
	tracing.EndSpan(span, err)
	return entry, err
}

func (s *Service) postEntry(ctx context.Context, req domain.PostEntryRequest) (domain.LedgerEntry, error) {
	entry, err := s.newEntry(ctx, req)
	if err != nil {
		return domain.LedgerEntry{}, err
	}

	cfg := s.settings.Get()
	policy := db.RetryPolicy{MaxAttempts: cfg.MaxCommitAttempts, BaseDelay: cfg.RetryBaseDelay}
	started := s.clock.Now()

	outstanding, err := db.Retry(ctx, policy, retryable, func(attempt int) (decimal.Decimal, error) {
		outstanding, err := s.commit(ctx, &entry)
		if err != nil && retryable(err) && attempt < policy.MaxAttempts {
			s.commitMetrics.IncAttempt(obsmetrics.OperationLedgerPost, obsmetrics.OutcomeRetried)
			s.log.Warn("ledger commit retry",
				zap.Int("attempt", attempt),
				zap.String("reason", obsmetrics.ClassifyCommitReason(err)),
				zap.Error(err),
			)
		}
		return outstanding, err
	})

	s.commitMetrics.ObserveDuration(obsmetrics.OperationLedgerPost, s.clock.Now().Sub(started))
	if err != nil {
		s.commitMetrics.IncAttempt(obsmetrics.OperationLedgerPost, obsmetrics.OutcomeFailed)
		if errors.Is(err, domain.ErrCreditLimitExceeded) {
			s.obsMetrics.RecordCreditLimitRejection(ctx)
			s.log.Info("credit entry rejected",
				zap.Int64("customer_id", entry.CustomerID.Int64()),
				zap.String("amount", entry.Amount.String()),
			)
		} else {
			s.commitMetrics.IncError(obsmetrics.OperationLedgerPost, err)
		}
		return domain.LedgerEntry{}, err
	}

	s.commitMetrics.IncAttempt(obsmetrics.OperationLedgerPost, obsmetrics.OutcomeCommitted)
	s.obsMetrics.RecordLedgerEntry(ctx, string(entry.Kind))
	s.log.Info("ledger entry posted",
		zap.Int64("entry_id", entry.ID.Int64()),
		zap.Int64("customer_id", entry.CustomerID.Int64()),
		zap.String("kind", string(entry.Kind)),
		zap.String("amount", entry.Amount.String()),
	)

	s.publisher.Publish(ctx, events.New(ctx, events.TopicLedgerEntryCreated, entry.CreatedAt, entry.Clone()))
	s.publisher.Publish(ctx, events.New(ctx, events.TopicCustomerUpdated, entry.CreatedAt, BalanceUpdate{
		CustomerID:  entry.CustomerID,
		Outstanding: outstanding,
	}))
	return entry, nil
}

// commit runs one attempt: the customer lock, then a transaction that
// authorizes and appends the entry. It returns the new outstanding balance.
func (s *Service) commit(ctx context.Context, entry *domain.LedgerEntry) (decimal.Decimal, error) {
	waitStart := time.Now()
	release, err := s.locker.Acquire(ctx, lock.CustomerLedgerKey(entry.CustomerID.Int64()))
	if err != nil {
		return decimal.Zero, err
	}
	defer release()
	s.commitMetrics.ObserveLockWait(obsmetrics.LockResourceCustomerLedger, time.Since(waitStart))

	var outstanding decimal.Decimal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.customers.LockByID(ctx, tx, entry.CustomerID)
		if err != nil {
			return db.Wrap(err)
		}
		if customer == nil {
			return customerdomain.ErrNotFound
		}

		if entry.InvoiceID != nil {
			invoice, err := s.repo.FindInvoice(ctx, tx, *entry.InvoiceID)
			if err != nil {
				return db.Wrap(err)
			}
			if invoice == nil {
				return domain.ErrInvoiceNotFound
			}
			if invoice.CustomerID != entry.CustomerID {
				return domain.ErrInvoiceCustomerMismatch
			}
		}

		balance, err := s.balance(ctx, tx, entry.CustomerID)
		if err != nil {
			return err
		}
		if entry.Kind == domain.KindCredit {
			if err := domain.AuthorizeCredit(balance.Outstanding, entry.Amount, customer.CreditLimit); err != nil {
				return err
			}
		}

		if err := s.repo.InsertEntry(ctx, tx, entry); err != nil {
			return db.Wrap(err)
		}
		outstanding = applyEntry(balance.Outstanding, *entry)
		return nil
	})
	if err != nil {
		if isDomainErr(err) {
			return decimal.Zero, err
		}
		return decimal.Zero, db.Wrap(err)
	}
	return outstanding, nil
}

// retryable accepts only transient storage failures. Business rule and
// validation errors are final.
func retryable(err error) bool {
	return errors.Is(err, db.ErrStorageFailure) && db.IsTransientErr(err)
}

func isDomainErr(err error) bool {
	return errors.Is(err, domain.ErrCreditLimitExceeded) ||
		errors.Is(err, domain.ErrInvoiceNotFound) ||
		errors.Is(err, domain.ErrInvoiceCustomerMismatch) ||
		errors.Is(err, customerdomain.ErrNotFound)
}

func (s *Service) newEntry(ctx context.Context, req domain.PostEntryRequest) (domain.LedgerEntry, error) {
	if req.CustomerID == 0 {
		return domain.LedgerEntry{}, domain.ErrInvalidCustomer
	}
	if !req.Amount.IsPositive() {
		return domain.LedgerEntry{}, domain.ErrInvalidAmount
	}
	kind := domain.EntryKind(strings.ToLower(strings.TrimSpace(string(req.Kind))))
	if !kind.Valid() {
		return domain.LedgerEntry{}, domain.ErrInvalidKind
	}
	description := strings.TrimSpace(req.Description)
	if description == "" || len(description) > 500 {
		return domain.LedgerEntry{}, domain.ErrInvalidDescription
	}
	if req.InvoiceID != nil && *req.InvoiceID == 0 {
		return domain.LedgerEntry{}, domain.ErrInvoiceNotFound
	}

	now := s.clock.Now()
	date := req.Date
	if date.IsZero() {
		date = now
	}

	var paymentMode *string
	if req.PaymentMode != nil {
		if mode := strings.TrimSpace(*req.PaymentMode); mode != "" {
			paymentMode = &mode
		}
	}

	return domain.LedgerEntry{
		ID:          s.genID.Generate(),
		CustomerID:  req.CustomerID,
		Kind:        kind,
		Amount:      req.Amount,
		Description: description,
		Date:        date.UTC(),
		PaymentMode: paymentMode,
		InvoiceID:   req.InvoiceID,
		CreatedBy:   actorcontext.ActorOrSystem(ctx),
		CreatedAt:   now,
	}, nil
}

func applyEntry(outstanding decimal.Decimal, entry domain.LedgerEntry) decimal.Decimal {
	if entry.Kind == domain.KindPayment {
		return outstanding.Sub(entry.Amount)
	}
	return outstanding.Add(entry.Amount)
}

func (s *Service) balance(ctx context.Context, tx *gorm.DB, customerID snowflake.ID) (domain.Balance, error) {
	invoices, err := s.repo.InvoiceTotals(ctx, tx, customerID)
	if err != nil {
		return domain.Balance{}, db.Wrap(err)
	}
	entries, err := s.repo.EntriesForCustomer(ctx, tx, customerID)
	if err != nil {
		return domain.Balance{}, db.Wrap(err)
	}
	return domain.ComputeBalance(invoices, entries), nil
}

// OutstandingBalance recomputes the balance from storage on every call.
func (s *Service) OutstandingBalance(ctx context.Context, customerID snowflake.ID) (decimal.Decimal, error) {
	if customerID == 0 {
		return decimal.Zero, domain.ErrInvalidCustomer
	}
	customer, err := s.customers.FindByID(ctx, s.db, customerID)
	if err != nil {
		return decimal.Zero, db.Wrap(err)
	}
	if customer == nil {
		return decimal.Zero, customerdomain.ErrNotFound
	}
	balance, err := s.balance(ctx, s.db, customerID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Outstanding, nil
}

func (s *Service) Statement(ctx context.Context, customerID snowflake.ID) (domain.Statement, error) {
	if customerID == 0 {
		return domain.Statement{}, domain.ErrInvalidCustomer
	}
	customer, err := s.customers.FindByID(ctx, s.db, customerID)
	if err != nil {
		return domain.Statement{}, db.Wrap(err)
	}
	if customer == nil {
		return domain.Statement{}, customerdomain.ErrNotFound
	}

	invoices, err := s.repo.InvoiceTotals(ctx, s.db, customerID)
	if err != nil {
		return domain.Statement{}, db.Wrap(err)
	}
	entries, err := s.repo.EntriesForCustomer(ctx, s.db, customerID)
	if err != nil {
		return domain.Statement{}, db.Wrap(err)
	}

	return domain.Statement{
		CustomerBalance: customerBalance(*customer, domain.ComputeBalance(invoices, entries)),
		Invoices:        invoices,
		Entries:         entries,
	}, nil
}

func (s *Service) ListEntries(ctx context.Context, filter domain.EntryFilter) ([]domain.LedgerEntry, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}

	entries, err := s.repo.ListEntries(ctx, s.db, filter)
	if err != nil {
		return nil, db.Wrap(err)
	}
	return entries, nil
}

func (s *Service) Report(ctx context.Context, filter domain.EntryFilter) (domain.Report, error) {
	filter, err := normalizeFilter(filter)
	if err != nil {
		return domain.Report{}, err
	}
	filter.Limit = 0

	entries, err := s.repo.ListEntries(ctx, s.db, filter)
	if err != nil {
		return domain.Report{}, db.Wrap(err)
	}

	totals := domain.ComputeBalance(nil, entries)
	return domain.Report{
		Entries:       entries,
		TotalCredits:  totals.TotalCredit,
		TotalPayments: totals.TotalPayment,
		Net:           totals.TotalCredit.Sub(totals.TotalPayment),
	}, nil
}

// CreditReport lists every customer with its balance, largest first.
func (s *Service) CreditReport(ctx context.Context) ([]domain.CustomerBalance, error) {
	customers, err := s.customers.ListAll(ctx, s.db)
	if err != nil {
		return nil, db.Wrap(err)
	}
	invoices, err := s.repo.InvoiceTotals(ctx, s.db, 0)
	if err != nil {
		return nil, db.Wrap(err)
	}
	entries, err := s.repo.EntriesForCustomer(ctx, s.db, 0)
	if err != nil {
		return nil, db.Wrap(err)
	}

	invoicesByCustomer := make(map[snowflake.ID][]domain.InvoiceTotal, len(customers))
	for _, inv := range invoices {
		invoicesByCustomer[inv.CustomerID] = append(invoicesByCustomer[inv.CustomerID], inv)
	}
	entriesByCustomer := make(map[snowflake.ID][]domain.LedgerEntry, len(customers))
	for _, entry := range entries {
		entriesByCustomer[entry.CustomerID] = append(entriesByCustomer[entry.CustomerID], entry)
	}

	report := make([]domain.CustomerBalance, 0, len(customers))
	for _, customer := range customers {
		balance := domain.ComputeBalance(invoicesByCustomer[customer.ID], entriesByCustomer[customer.ID])
		report = append(report, customerBalance(customer, balance))
	}
	sort.SliceStable(report, func(i, j int) bool {
		return report[i].Balance.Outstanding.GreaterThan(report[j].Balance.Outstanding)
	})
	return report, nil
}

func (s *Service) Summary(ctx context.Context, day time.Time) (domain.Summary, error) {
	if day.IsZero() {
		day = s.clock.Now()
	}

	count, err := s.customers.Count(ctx, s.db)
	if err != nil {
		return domain.Summary{}, db.Wrap(err)
	}
	invoices, err := s.repo.InvoiceTotals(ctx, s.db, 0)
	if err != nil {
		return domain.Summary{}, db.Wrap(err)
	}
	entries, err := s.repo.EntriesForCustomer(ctx, s.db, 0)
	if err != nil {
		return domain.Summary{}, db.Wrap(err)
	}

	start := startOfDay(day)
	end := start.Add(24 * time.Hour)
	paymentsOnDay := decimal.Zero
	for _, entry := range entries {
		if entry.Kind != domain.KindPayment {
			continue
		}
		if !entry.Date.Before(start) && entry.Date.Before(end) {
			paymentsOnDay = paymentsOnDay.Add(entry.Amount)
		}
	}

	recent, err := s.repo.ListEntries(ctx, s.db, domain.EntryFilter{Limit: recentEntries})
	if err != nil {
		return domain.Summary{}, db.Wrap(err)
	}

	totals := domain.ComputeBalance(invoices, entries)
	return domain.Summary{
		TotalCustomers:   count,
		TotalOutstanding: totals.Outstanding,
		PaymentsOnDay:    paymentsOnDay,
		TotalCredits:     totals.TotalCredit,
		RecentEntries:    recent,
	}, nil
}

// DeleteEntry hard-deletes an entry under the customer's ledger lock.
func (s *Service) DeleteEntry(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}

	entry, err := s.repo.FindEntry(ctx, s.db, id)
	if err != nil {
		return db.Wrap(err)
	}
	if entry == nil {
		return domain.ErrNotFound
	}

	release, err := s.locker.Acquire(ctx, lock.CustomerLedgerKey(entry.CustomerID.Int64()))
	if err != nil {
		return err
	}
	defer release()

	var outstanding decimal.Decimal
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.customers.LockByID(ctx, tx, entry.CustomerID); err != nil {
			return db.Wrap(err)
		}
		current, err := s.repo.FindEntry(ctx, tx, id)
		if err != nil {
			return db.Wrap(err)
		}
		if current == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.DeleteEntry(ctx, tx, id); err != nil {
			return db.Wrap(err)
		}
		balance, err := s.balance(ctx, tx, entry.CustomerID)
		if err != nil {
			return err
		}
		outstanding = balance.Outstanding
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionLedgerEntryDelete,
			TargetType: "ledger_entry",
			TargetID:   id.String(),
			Metadata: map[string]any{
				"customer_id": current.CustomerID.String(),
				"kind":        string(current.Kind),
				"amount":      current.Amount.String(),
			},
		})
	})
	if err != nil {
		return err
	}

	s.log.Warn("ledger entry deleted",
		zap.Int64("entry_id", id.Int64()),
		zap.Int64("customer_id", entry.CustomerID.Int64()),
		zap.String("actor_id", actorcontext.ActorOrSystem(ctx)),
	)
	s.publisher.Publish(ctx, events.New(ctx, events.TopicCustomerUpdated, s.clock.Now(), BalanceUpdate{
		CustomerID:  entry.CustomerID,
		Outstanding: outstanding,
	}))
	return nil
}

func customerBalance(customer customerdomain.Customer, balance domain.Balance) domain.CustomerBalance {
	available := customer.CreditLimit.Sub(balance.Outstanding)
	if available.IsNegative() {
		available = decimal.Zero
	}
	return domain.CustomerBalance{
		CustomerID:  customer.ID,
		Name:        customer.Name,
		Email:       customer.Email,
		CreditLimit: customer.CreditLimit,
		Balance:     balance,
		Available:   available,
	}
}

// normalizeFilter widens From and To to whole UTC days.
func normalizeFilter(filter domain.EntryFilter) (domain.EntryFilter, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return filter, domain.ErrInvalidKind
	}
	if filter.From != nil {
		from := startOfDay(*filter.From)
		filter.From = &from
	}
	if filter.To != nil {
		to := startOfDay(*filter.To).Add(24 * time.Hour)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return filter, domain.ErrInvalidDateRange
	}
	return filter, nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
