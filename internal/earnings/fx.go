package earnings

import (
	"go.uber.org/fx"

	"github.com/tidyroundlabs/tidyround/internal/config"
)

var Module = fx.Module("earnings",
	fx.Provide(func(cfg config.Config) *Calculator {
		return NewCalculator(cfg.Earnings.PlatformCutBps, cfg.Earnings.CadenceDivisor)
	}),
)
