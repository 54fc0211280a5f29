package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/billbook/internal/audit/domain"
	"github.com/smallbiznis/billbook/internal/clock"
	"github.com/smallbiznis/billbook/internal/customer/domain"
	"github.com/smallbiznis/billbook/internal/events"
	"github.com/smallbiznis/billbook/internal/lock"
	"github.com/smallbiznis/billbook/pkg/db"
	"github.com/smallbiznis/billbook/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var validate = validator.New()

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Locker    lock.Locker
	Balances  domain.BalanceReader
	Audit     auditdomain.Recorder `optional:"true"`
	Publisher events.Publisher     `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	locker    lock.Locker
	balances  domain.BalanceReader
	audit     auditdomain.Recorder
	publisher events.Publisher
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
		db:        p.DB,
		log:       p.Log.Named("customer.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		locker:    p.Locker,
		balances:  p.Balances,
		audit:     recorder,
		publisher: publisher,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCustomerRequest) (domain.Customer, error) {
	now := s.clock.Now()
	customer := domain.Customer{
		ID:          s.genID.Generate(),
		Name:        strings.TrimSpace(req.Name),
		Email:       normalizeEmail(req.Email),
		Phone:       strings.TrimSpace(req.Phone),
		Address:     strings.TrimSpace(req.Address),
		GSTIN:       normalizeOptional(req.GSTIN),
		CreditLimit: req.CreditLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateCustomer(customer); err != nil {
		return domain.Customer{}, err
	}

	existing, err := s.repo.FindByEmail(ctx, s.db, customer.Email)
	if err != nil {
		return domain.Customer{}, db.Wrap(err)
	}
	if existing != nil {
		return domain.Customer{}, domain.ErrEmailTaken
	}

	if err := s.repo.Insert(ctx, s.db, &customer); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Customer{}, domain.ErrEmailTaken
		}
		s.log.Error("insert customer failed", zap.Error(err))
		return domain.Customer{}, db.Wrap(err)
	}

	s.publisher.Publish(ctx, events.New(ctx, events.TopicCustomerUpdated, now, customer))
	return customer, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCustomerRequest) (domain.Customer, error) {
	customer, err := s.GetByID(ctx, req.ID)
	if err != nil {
		return domain.Customer{}, err
	}

	if req.Name != nil {
		customer.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		customer.Email = normalizeEmail(*req.Email)
	}
	if req.Phone != nil {
		customer.Phone = strings.TrimSpace(*req.Phone)
	}
	if req.Address != nil {
		customer.Address = strings.TrimSpace(*req.Address)
	}
	if req.GSTIN != nil {
		customer.GSTIN = normalizeOptional(req.GSTIN)
	}
	if req.CreditLimit != nil {
		customer.CreditLimit = *req.CreditLimit
	}
	if err := validateCustomer(customer); err != nil {
		return domain.Customer{}, err
	}

	if req.Email != nil {
		other, err := s.repo.FindByEmail(ctx, s.db, customer.Email)
		if err != nil {
			return domain.Customer{}, db.Wrap(err)
		}
		if other != nil && other.ID != customer.ID {
			return domain.Customer{}, domain.ErrEmailTaken
		}
	}

	customer.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, &customer); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Customer{}, domain.ErrEmailTaken
		}
		s.log.Error("update customer failed", zap.Int64("customer_id", customer.ID.Int64()), zap.Error(err))
		return domain.Customer{}, db.Wrap(err)
	}

	s.publisher.Publish(ctx, events.New(ctx, events.TopicCustomerUpdated, customer.UpdatedAt, customer))
	return customer, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.Customer, error) {
	if id == 0 {
		return domain.Customer{}, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Customer{}, db.Wrap(err)
	}
	if item == nil {
		return domain.Customer{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListCustomerRequest) (domain.ListCustomerResponse, error) {
	filter := domain.ListCustomerFilter{
		Name:  strings.TrimSpace(req.Name),
		Email: normalizeEmail(req.Email),
	}

	items, err := s.repo.List(ctx, s.db, filter, req.Pagination)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.ListCustomerResponse{}, err
		}
		return domain.ListCustomerResponse{}, db.Wrap(err)
	}

	customers, pageInfo := pagination.Page(items, req.Limit(), func(c domain.Customer) int64 {
		return c.ID.Int64()
	})
	return domain.ListCustomerResponse{PageInfo: pageInfo, Customers: customers}, nil
}

// Delete removes a customer with no invoices, no ledger history and no
// outstanding balance. It holds the customer's ledger lock so no credit can
// be posted while the checks run.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}

	release, err := s.locker.Acquire(ctx, lock.CustomerLedgerKey(id.Int64()))
	if err != nil {
		return err
	}
	defer release()

	balance, err := s.balances.OutstandingBalance(ctx, id)
	if err != nil {
		return err
	}
	if balance.IsPositive() {
		return domain.ErrCustomerHasActivity
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		customer, err := s.repo.LockByID(ctx, tx, id)
		if err != nil {
			return db.Wrap(err)
		}
		if customer == nil {
			return domain.ErrNotFound
		}

		invoices, err := s.repo.CountInvoices(ctx, tx, id)
		if err != nil {
			return db.Wrap(err)
		}
		entries, err := s.repo.CountLedgerEntries(ctx, tx, id)
		if err != nil {
			return db.Wrap(err)
		}
		if invoices > 0 || entries > 0 {
			return domain.ErrCustomerHasActivity
		}

		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return db.Wrap(err)
		}
		s.log.Info("customer deleted", zap.Int64("customer_id", id.Int64()))
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionCustomerDelete,
			TargetType: "customer",
			TargetID:   id.String(),
			Metadata:   map[string]any{"name": customer.Name},
		})
	})
}

func validateCustomer(c domain.Customer) error {
	if c.Name == "" || len(c.Name) > 100 {
		return domain.ErrInvalidName
	}
	if len(c.Email) > 120 || validate.Var(c.Email, "required,email") != nil {
		return domain.ErrInvalidEmail
	}
	if c.Phone == "" || len(c.Phone) > 20 {
		return domain.ErrInvalidPhone
	}
	if c.Address == "" {
		return domain.ErrInvalidAddress
	}
	if c.GSTIN != nil && len(*c.GSTIN) > 20 {
		return domain.ErrInvalidGSTIN
	}
	if c.CreditLimit.IsNegative() {
		return domain.ErrInvalidCreditLimit
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
