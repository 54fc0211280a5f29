package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/billbook/internal/clock"
	"github.com/smallbiznis/billbook/internal/config"
	customerdomain "github.com/smallbiznis/billbook/internal/customer/domain"
	customerrepo "github.com/smallbiznis/billbook/internal/customer/repository"
	"github.com/smallbiznis/billbook/internal/events"
	invoicedomain "github.com/smallbiznis/billbook/internal/invoice/domain"
	"github.com/smallbiznis/billbook/internal/invoice/numbering"
	"github.com/smallbiznis/billbook/internal/invoice/repository"
	"github.com/smallbiznis/billbook/internal/lock"
	"github.com/smallbiznis/billbook/internal/migration/migrationtest"
	productdomain "github.com/smallbiznis/billbook/internal/product/domain"
	productrepo "github.com/smallbiznis/billbook/internal/product/repository"
	"github.com/smallbiznis/billbook/internal/tax"
	"github.com/smallbiznis/billbook/pkg/db"
	"github.com/smallbiznis/billbook/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var today = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event events.Event) {
	m.Called(ctx, event.Topic)
}

// failingRepo fails the first n item inserts to simulate a commit failure
// after a number was allocated.
type failingRepo struct {
	invoicedomain.Repository
	mu       sync.Mutex
	failures int
	err      error
}

func (r *failingRepo) InsertItems(ctx context.Context, tx *gorm.DB, items []invoicedomain.InvoiceItem) error {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return r.err
	}
	r.mu.Unlock()
	return r.Repository.InsertItems(ctx, tx, items)
}

// lossySequences loses the compare-and-set whenever the mock says so.
type lossySequences struct {
	invoicedomain.SequenceRepository
	mock.Mock
}

func (m *lossySequences) Advance(ctx context.Context, tx *gorm.DB, seq invoicedomain.InvoiceSequence, expected int64) (bool, error) {
	args := m.Called(expected)
	if !args.Bool(0) {
		return false, nil
	}
	return m.SequenceRepository.Advance(ctx, tx, seq, expected)
}

func losingSequences(losses int) *lossySequences {
	seq := &lossySequences{SequenceRepository: repository.ProvideSequence()}
	seq.On("Advance", mock.Anything).Return(false).Times(losses)
	seq.On("Advance", mock.Anything).Return(true)
	return seq
}

type fixture struct {
	svc       invoicedomain.Service
	db        *gorm.DB
	node      *snowflake.Node
	publisher *mockPublisher
	repo      invoicedomain.Repository
	customer  snowflake.ID
	productA  snowflake.ID
}

func newFixture(t *testing.T, wrap func(invoicedomain.Repository) invoicedomain.Repository) *fixture {
	t.Helper()
	return newFixtureWithSequences(t, wrap, repository.ProvideSequence())
}

func newFixtureWithSequences(t *testing.T, wrap func(invoicedomain.Repository) invoicedomain.Repository, sequences invoicedomain.SequenceRepository) *fixture {
	t.Helper()
	conn := migrationtest.NewDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.DefaultInvoicingConfig()
	cfg.RetryBaseDelay = time.Millisecond
	settings := config.NewStaticInvoicingConfigHolder(cfg)
	clk := clock.NewFakeClock(today)

	var repo invoicedomain.Repository = repository.Provide()
	if wrap != nil {
		repo = wrap(repo)
	}

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything).Return()

	svc := NewService(ServiceParam{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clk,
		Settings:  settings,
		Repo:      repo,
		Allocator: numbering.NewAllocator(sequences, repo, settings, clk),
		Customers: customerrepo.Provide(),
		Products:  productrepo.Provide(),
		Locker:    lock.NewLocal(),
		Publisher: publisher,
	})

	f := &fixture{svc: svc, db: conn, node: node, publisher: publisher, repo: repo}
	f.customer = f.addCustomer(t)
	f.productA = f.addProduct(t, "Product A", "1001", "18", "100")
	return f
}

func (f *fixture) addCustomer(t *testing.T) snowflake.ID {
	t.Helper()
	c := customerdomain.Customer{
		ID:          f.node.Generate(),
		Name:        "Asha Traders",
		Email:       "asha@example.com",
		Phone:       "9876543210",
		Address:     "12 Market Road",
		CreditLimit: decimal.NewFromInt(1000),
		CreatedAt:   today,
		UpdatedAt:   today,
	}
	require.NoError(t, customerrepo.Provide().Insert(context.Background(), f.db, &c))
	return c.ID
}

func (f *fixture) addProduct(t *testing.T, name, hsn, gst, price string) snowflake.ID {
	t.Helper()
	p := productdomain.Product{
		ID:         f.node.Generate(),
		Name:       name,
		HSN:        hsn,
		GSTPercent: decimal.RequireFromString(gst),
		Price:      decimal.RequireFromString(price),
		CreatedAt:  today,
		UpdatedAt:  today,
	}
	require.NoError(t, productrepo.Provide().Insert(context.Background(), f.db, &p))
	return p.ID
}

func (f *fixture) scenarioRequest() invoicedomain.CreateInvoiceRequest {
	rate := decimal.NewFromInt(100)
	return invoicedomain.CreateInvoiceRequest{
		CustomerID:      f.customer,
		PaymentMode:     "cash",
		TransportCharge: decimal.NewFromInt(50),
		RoundOff:        decimal.RequireFromString("-0.4"),
		Lines: []invoicedomain.LineItem{{
			ProductID:       f.productA,
			Quantity:        decimal.NewFromInt(2),
			Rate:            &rate,
			DiscountPercent: decimal.NewFromInt(10),
		}},
	}
}

func TestCreateInvoiceScenario(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	invoice, err := f.svc.Create(ctx, f.scenarioRequest())
	require.NoError(t, err)

	assert.EqualValues(t, 1, invoice.InvoiceNumber)
	assert.Equal(t, "1", invoice.NumberLabel)
	assert.True(t, decimal.RequireFromString("262.0").Equal(invoice.TotalAmount), invoice.TotalAmount.String())
	require.Len(t, invoice.Items, 1)
	item := invoice.Items[0]
	assert.True(t, decimal.RequireFromString("212.4").Equal(item.Amount))
	assert.True(t, item.CGST.Equal(item.SGST))
	assert.Equal(t, "1001", item.HSN)
	assert.Equal(t, "system", invoice.CreatedBy)

	detail, err := f.svc.Get(ctx, invoice.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 1)
	assert.True(t, decimal.RequireFromString("262.0").Equal(detail.TotalAmount))
	assert.True(t, decimal.RequireFromString("180").Equal(detail.Totals.TotalTaxable))
	assert.True(t, decimal.RequireFromString("16.2").Equal(detail.Totals.TotalCGST))
	assert.True(t, detail.Totals.GrandTotal.Equal(detail.TotalAmount))

	f.publisher.AssertCalled(t, "Publish", mock.Anything, events.TopicInvoiceCreated)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, events.TopicCustomerUpdated)
}

func TestCreateInvoiceRateDefaultsToProductPrice(t *testing.T) {
	f := newFixture(t, nil)
	req := f.scenarioRequest()
	req.Lines[0].Rate = nil

	invoice, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(invoice.Items[0].Rate))
}

func TestCreateInvoiceWithoutLines(t *testing.T) {
	f := newFixture(t, nil)
	req := f.scenarioRequest()
	req.Lines = nil

	invoice, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("49.6").Equal(invoice.TotalAmount))
	assert.Empty(t, invoice.Items)
}

func TestCreateInvoiceFailsFastOnInvalidLine(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	req := f.scenarioRequest()
	req.Lines = append(req.Lines,
		invoicedomain.LineItem{ProductID: f.productA, Quantity: decimal.Zero},
		invoicedomain.LineItem{ProductID: 77, Quantity: decimal.NewFromInt(1)},
	)
	_, err := f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidLineItem)
	assert.ErrorIs(t, err, tax.ErrInvalidQuantity)
	assert.Contains(t, err.Error(), "line 2")

	req = f.scenarioRequest()
	req.Lines[0].ProductID = 77
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidLineItem)
	assert.ErrorIs(t, err, productdomain.ErrNotFound)

	req = f.scenarioRequest()
	req.Lines[0].DiscountPercent = decimal.NewFromInt(101)
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, tax.ErrInvalidDiscount)

	var count int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(1) FROM invoices`).Scan(&count).Error)
	assert.Zero(t, count)
	f.publisher.AssertNotCalled(t, "Publish", mock.Anything, events.TopicInvoiceCreated)
}

func TestCreateInvoiceRequestValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	req := f.scenarioRequest()
	req.CustomerID = 99
	_, err := f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, customerdomain.ErrNotFound)

	req = f.scenarioRequest()
	req.PaymentMode = " "
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidPaymentMode)

	req = f.scenarioRequest()
	req.TransportCharge = decimal.NewFromInt(-1)
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidCharges)
}

func TestConcurrentCreatesGetDistinctConsecutiveNumbers(t *testing.T) {
	f := newFixture(t, nil)

	const n = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		numbers []int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			invoice, err := f.svc.Create(context.Background(), f.scenarioRequest())
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			numbers = append(numbers, invoice.InvoiceNumber)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, numbers, n)
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for i, number := range numbers {
		assert.EqualValues(t, i+1, number)
	}
}

func TestDeletedNumberIsNotReused(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.scenarioRequest())
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, f.scenarioRequest())
	require.NoError(t, err)
	require.EqualValues(t, 2, second.InvoiceNumber)

	require.NoError(t, f.svc.Delete(ctx, second.ID))
	_, err = f.svc.Get(ctx, second.ID)
	assert.ErrorIs(t, err, invoicedomain.ErrNotFound)

	var items int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(1) FROM invoice_items WHERE invoice_id = ?`, second.ID).Scan(&items).Error)
	assert.Zero(t, items)

	next, err := f.svc.NextNumber(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, next)

	third, err := f.svc.Create(ctx, f.scenarioRequest())
	require.NoError(t, err)
	assert.EqualValues(t, 3, third.InvoiceNumber)
	assert.Less(t, first.InvoiceNumber, third.InvoiceNumber)

	assert.ErrorIs(t, f.svc.Delete(ctx, second.ID), invoicedomain.ErrNotFound)
	f.publisher.AssertCalled(t, "Publish", mock.Anything, events.TopicInvoiceDeleted)
}

func TestFailedCommitDoesNotConsumeNumber(t *testing.T) {
	broken := &failingRepo{failures: 1, err: errors.New("disk full")}
	f := newFixture(t, func(r invoicedomain.Repository) invoicedomain.Repository {
		broken.Repository = r
		return broken
	})
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.scenarioRequest())
	assert.ErrorIs(t, err, db.ErrStorageFailure)

	var headers int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(1) FROM invoices`).Scan(&headers).Error)
	assert.Zero(t, headers)

	invoice, err := f.svc.Create(ctx, f.scenarioRequest())
	require.NoError(t, err)
	assert.EqualValues(t, 1, invoice.InvoiceNumber)
}

func TestTransientFailureIsRetried(t *testing.T) {
	broken := &failingRepo{failures: 2, err: errors.New("database is locked")}
	f := newFixture(t, func(r invoicedomain.Repository) invoicedomain.Repository {
		broken.Repository = r
		return broken
	})

	invoice, err := f.svc.Create(context.Background(), f.scenarioRequest())
	require.NoError(t, err)
	assert.EqualValues(t, 1, invoice.InvoiceNumber)
}

func TestRetryBudgetIsBounded(t *testing.T) {
	broken := &failingRepo{failures: 10, err: errors.New("database is locked")}
	f := newFixture(t, func(r invoicedomain.Repository) invoicedomain.Repository {
		broken.Repository = r
		return broken
	})

	_, err := f.svc.Create(context.Background(), f.scenarioRequest())
	assert.ErrorIs(t, err, db.ErrStorageFailure)
	assert.Equal(t, 10-config.DefaultInvoicingConfig().MaxCommitAttempts, broken.failures)
}

func TestLostAllocationIsRetriedWithinBudget(t *testing.T) {
	attempts := config.DefaultInvoicingConfig().MaxCommitAttempts
	sequences := losingSequences(attempts - 1)
	f := newFixtureWithSequences(t, nil, sequences)

	invoice, err := f.svc.Create(context.Background(), f.scenarioRequest())
	require.NoError(t, err)
	assert.EqualValues(t, 1, invoice.InvoiceNumber)
	sequences.AssertNumberOfCalls(t, "Advance", attempts)
}

func TestLostAllocationBeyondBudgetIsAConflict(t *testing.T) {
	attempts := config.DefaultInvoicingConfig().MaxCommitAttempts
	sequences := losingSequences(attempts)
	f := newFixtureWithSequences(t, nil, sequences)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.scenarioRequest())
	assert.ErrorIs(t, err, invoicedomain.ErrAllocationConflict)
	sequences.AssertNumberOfCalls(t, "Advance", attempts)

	var headers int64
	require.NoError(t, f.db.Raw(`SELECT COUNT(1) FROM invoices`).Scan(&headers).Error)
	assert.Zero(t, headers)

	invoice, err := f.svc.Create(ctx, f.scenarioRequest())
	require.NoError(t, err)
	assert.EqualValues(t, 1, invoice.InvoiceNumber)
}

func TestCreatedEventIsACopy(t *testing.T) {
	hub := events.NewHub()
	f := newFixture(t, nil)
	f.svc.(*Service).publisher = hub

	req := f.scenarioRequest()
	req.Lines = append(req.Lines, req.Lines[0])
	invoice, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, invoice.Items, 2)

	_, backlog, err := hub.Subscribe(events.TopicInvoiceCreated)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	published, ok := backlog[0].Payload.(invoicedomain.Invoice)
	require.True(t, ok)

	invoice.Items[0].Amount = decimal.NewFromInt(1)
	assert.True(t, decimal.RequireFromString("212.4").Equal(published.Items[0].Amount))
	assert.True(t, published.TotalAmount.Equal(invoice.TotalAmount))
}

func TestDuplicateNumberMapsToAllocationConflict(t *testing.T) {
	err := classifyCommitErr(errors.New("UNIQUE constraint failed: invoices.invoice_number"))
	assert.ErrorIs(t, err, invoicedomain.ErrAllocationConflict)
	assert.True(t, retryable(err))

	err = classifyCommitErr(errors.New("no such table"))
	assert.ErrorIs(t, err, db.ErrStorageFailure)
	assert.False(t, retryable(err))
}

func TestListInvoicesNewestFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for day := 1; day <= 3; day++ {
		req := f.scenarioRequest()
		req.Date = time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)
		_, err := f.svc.Create(ctx, req)
		require.NoError(t, err)
	}

	page, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, page.Invoices, 2)
	assert.Equal(t, 3, page.Invoices[0].Date.Day())
	assert.True(t, page.HasMore)

	rest, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: page.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, rest.Invoices, 1)
	assert.Equal(t, 1, rest.Invoices[0].Date.Day())

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from
	oneDay, err := f.svc.List(ctx, invoicedomain.ListInvoiceRequest{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, oneDay.Invoices, 1)
	assert.Equal(t, 2, oneDay.Invoices[0].Date.Day())
}
