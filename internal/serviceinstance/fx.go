package serviceinstance

import (
	"go.uber.org/fx"

	"github.com/tidyroundlabs/tidyround/internal/serviceinstance/repository"
	"github.com/tidyroundlabs/tidyround/internal/serviceinstance/service"
)

var Module = fx.Module("serviceinstance",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
