package employee

import (
	"go.uber.org/fx"

	"github.com/tidyroundlabs/tidyround/internal/employee/repository"
)

var Module = fx.Module("employee",
	fx.Provide(repository.Provide),
)
