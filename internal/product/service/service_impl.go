package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/billbook/internal/audit/domain"
	"github.com/smallbiznis/billbook/internal/clock"
	"github.com/smallbiznis/billbook/internal/product/domain"
	"github.com/smallbiznis/billbook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
	Audit auditdomain.Recorder `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
	audit auditdomain.Recorder
}

func New(p Params) domain.Service {
	var recorder auditdomain.Recorder = auditdomain.NopRecorder{}
	if p.Audit != nil {
		recorder = p.Audit
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("product.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
		audit: recorder,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Product, error) {
	now := s.clock.Now()
	p := &domain.Product{
		ID:         s.genID.Generate(),
		Name:       strings.TrimSpace(req.Name),
		HSN:        strings.TrimSpace(req.HSN),
		GSTPercent: req.GSTPercent,
		Price:      req.Price,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := validate(p); err != nil {
		return nil, err
	}

	if err := s.repo.Insert(ctx, s.db, p); err != nil {
		s.log.Error("insert product failed", zap.Error(err))
		return nil, db.Wrap(err)
	}
	return p, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Product, error) {
	if req.ID == 0 {
		return nil, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, req.ID)
	if err != nil {
		return nil, db.Wrap(err)
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
	}
	if req.HSN != nil {
		item.HSN = strings.TrimSpace(*req.HSN)
	}
	if req.GSTPercent != nil {
		item.GSTPercent = *req.GSTPercent
	}
	if req.Price != nil {
		item.Price = *req.Price
	}
	if err := validate(item); err != nil {
		return nil, err
	}

	item.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, s.db, item); err != nil {
		s.log.Error("update product failed", zap.Int64("product_id", item.ID.Int64()), zap.Error(err))
		return nil, db.Wrap(err)
	}
	return item, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Product, error) {
	if id == 0 {
		return nil, domain.ErrInvalidID
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, db.Wrap(err)
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Product, error) {
	items, err := s.repo.List(ctx, s.db, domain.ListRequest{
		Name: strings.TrimSpace(req.Name),
		HSN:  strings.TrimSpace(req.HSN),
	})
	if err != nil {
		return nil, db.Wrap(err)
	}
	return items, nil
}

// Delete removes a product that no invoice line references. Lines snapshot
// HSN and GST but keep the product reference for reporting.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	if id == 0 {
		return domain.ErrInvalidID
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return db.Wrap(err)
		}
		if item == nil {
			return domain.ErrNotFound
		}
		used, err := s.repo.CountInvoiceLines(ctx, tx, id)
		if err != nil {
			return db.Wrap(err)
		}
		if used > 0 {
			return domain.ErrProductInUse
		}
		if err := s.repo.Delete(ctx, tx, id); err != nil {
			return db.Wrap(err)
		}
		return s.audit.Record(ctx, tx, auditdomain.Entry{
			Action:     auditdomain.ActionProductDelete,
			TargetType: "product",
			TargetID:   id.String(),
			Metadata:   map[string]any{"name": item.Name, "hsn": item.HSN},
		})
	})
}

func validate(p *domain.Product) error {
	if p.Name == "" || len(p.Name) > 100 {
		return domain.ErrInvalidName
	}
	if p.HSN == "" || len(p.HSN) > 20 {
		return domain.ErrInvalidHSN
	}
	if p.GSTPercent.IsNegative() || p.GSTPercent.GreaterThan(hundred) {
		return domain.ErrInvalidGSTPercent
	}
	if p.Price.IsNegative() {
		return domain.ErrInvalidPrice
	}
	return nil
}
