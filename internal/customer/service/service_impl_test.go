package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/billbook/internal/clock"
	"github.com/smallbiznis/billbook/internal/customer/domain"
	"github.com/smallbiznis/billbook/internal/customer/repository"
	"github.com/smallbiznis/billbook/internal/events"
	"github.com/smallbiznis/billbook/internal/lock"
	"github.com/smallbiznis/billbook/internal/migration/migrationtest"
	"github.com/smallbiznis/billbook/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockBalances struct {
	mock.Mock
}

func (m *mockBalances) OutstandingBalance(ctx context.Context, customerID snowflake.ID) (decimal.Decimal, error) {
	args := m.Called(ctx, customerID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	balances *mockBalances
	hub      *events.Hub
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	conn := migrationtest.NewDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	balances := &mockBalances{}
	hub := events.NewHub()
	svc := New(Params{
		DB:        conn,
		Log:       zap.NewNop(),
		GenID:     node,
		Clock:     clock.NewFakeClock(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)),
		Repo:      repository.Provide(),
		Locker:    lock.NewLocal(),
		Balances:  balances,
		Publisher: hub,
	})
	return fixture{svc: svc, db: conn, balances: balances, hub: hub}
}

func validRequest(email string) domain.CreateCustomerRequest {
	return domain.CreateCustomerRequest{
		Name:        "Asha Traders",
		Email:       email,
		Phone:       "9876543210",
		Address:     "12 Market Road",
		CreditLimit: decimal.NewFromInt(1000),
	}
}

func TestCreateCustomerNormalizesAndPublishes(t *testing.T) {
	f := newFixture(t)
	sub, _, err := f.hub.Subscribe(events.TopicCustomerUpdated)
	require.NoError(t, err)
	defer sub.Close()

	blank := "  "
	req := validRequest("  Asha@Example.COM ")
	req.GSTIN = &blank
	created, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", created.Email)
	assert.Nil(t, created.GSTIN)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, events.TopicCustomerUpdated, ev.Topic)
	case <-time.After(time.Second):
		t.Fatal("customer.updated not published")
	}
}

func TestCreateCustomerRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, validRequest("dup@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, validRequest("DUP@example.com"))
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestCreateCustomerValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := validRequest("not-an-email")
	_, err := f.svc.Create(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)

	bad = validRequest("ok@example.com")
	bad.CreditLimit = decimal.NewFromInt(-1)
	_, err = f.svc.Create(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidCreditLimit)

	bad = validRequest("ok@example.com")
	bad.Name = ""
	_, err = f.svc.Create(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestUpdateCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.Create(ctx, validRequest("a@example.com"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, validRequest("b@example.com"))
	require.NoError(t, err)

	limit := decimal.NewFromInt(2500)
	updated, err := f.svc.Update(ctx, domain.UpdateCustomerRequest{ID: a.ID, CreditLimit: &limit})
	require.NoError(t, err)
	assert.True(t, limit.Equal(updated.CreditLimit))

	taken := "b@example.com"
	_, err = f.svc.Update(ctx, domain.UpdateCustomerRequest{ID: a.ID, Email: &taken})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)

	_, err = f.svc.Update(ctx, domain.UpdateCustomerRequest{ID: 999})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestListCustomersPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, email := range []string{"c1@example.com", "c2@example.com", "c3@example.com"} {
		_, err := f.svc.Create(ctx, validRequest(email))
		require.NoError(t, err)
	}

	first, err := f.svc.List(ctx, domain.ListCustomerRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.Customers, 2)
	assert.True(t, first.HasMore)

	second, err := f.svc.List(ctx, domain.ListCustomerRequest{Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken}})
	require.NoError(t, err)
	require.Len(t, second.Customers, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "c1@example.com", second.Customers[0].Email)

	_, err = f.svc.List(ctx, domain.ListCustomerRequest{Pagination: pagination.Pagination{PageToken: "%%%"}})
	assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
}

func TestDeleteCustomerRefusedWithBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, validRequest("owes@example.com"))
	require.NoError(t, err)

	f.balances.On("OutstandingBalance", mock.Anything, c.ID).Return(decimal.NewFromInt(50), nil).Once()
	assert.ErrorIs(t, f.svc.Delete(ctx, c.ID), domain.ErrCustomerHasActivity)
	f.balances.AssertExpectations(t)

	_, err = f.svc.GetByID(ctx, c.ID)
	require.NoError(t, err)
}

func TestDeleteCustomerRefusedWithInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, validRequest("settled@example.com"))
	require.NoError(t, err)
	require.NoError(t, f.db.Exec(
		`INSERT INTO invoices (id, invoice_number, customer_id, date, payment_mode, transport_charge, round_off, total_amount, created_by, metadata, created_at)
		 VALUES (1, 1, ?, ?, 'cash', 0, 0, 0, 'system', '{}', ?)`, c.ID, time.Now().UTC(), time.Now().UTC()).Error)

	f.balances.On("OutstandingBalance", mock.Anything, c.ID).Return(decimal.Zero, nil).Once()
	assert.ErrorIs(t, f.svc.Delete(ctx, c.ID), domain.ErrCustomerHasActivity)
}

func TestDeleteCustomer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.svc.Create(ctx, validRequest("gone@example.com"))
	require.NoError(t, err)

	f.balances.On("OutstandingBalance", mock.Anything, c.ID).Return(decimal.Zero, nil).Once()
	require.NoError(t, f.svc.Delete(ctx, c.ID))

	_, err = f.svc.GetByID(ctx, c.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, 0), domain.ErrInvalidID)
}
