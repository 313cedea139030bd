package paymentretry

import (
	"go.uber.org/fx"

	"github.com/tidyroundlabs/tidyround/internal/paymentretry/repository"
	"github.com/tidyroundlabs/tidyround/internal/paymentretry/service"
)

var Module = fx.Module("paymentretry",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
