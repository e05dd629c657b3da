package product

import (
	"github.com/smallbiznis/keygate/internal/product/repository"
	"github.com/smallbiznis/keygate/internal/product/service"
	"go.uber.org/fx"
)

var Module = fx.Module("product.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
