package payout

import (
	"go.uber.org/fx"

	"github.com/tidyroundlabs/tidyround/internal/payout/repository"
	"github.com/tidyroundlabs/tidyround/internal/payout/service"
)

var Module = fx.Module("payout",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
