package payment

import (
	"github.com/smallbiznis/keygate/internal/payment/adapters"
	"github.com/smallbiznis/keygate/internal/payment/adapters/stripe"
	"github.com/smallbiznis/keygate/internal/payment/repository"
	"github.com/smallbiznis/keygate/internal/payment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.webhook",
	fx.Provide(newRegistry),
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)

func newRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		stripe.NewFactory(),
	)
}
