package invoice

import (
	"github.com/smallbiznis/billbook/internal/invoice/numbering"
	"github.com/smallbiznis/billbook/internal/invoice/repository"
	"github.com/smallbiznis/billbook/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(repository.ProvideSequence),
	fx.Provide(numbering.NewAllocator),
	fx.Provide(service.NewService),
)
