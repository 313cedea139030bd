package gateway

import (
	"go.uber.org/fx"

	"github.com/tidyroundlabs/tidyround/internal/config"
	"github.com/tidyroundlabs/tidyround/internal/gateway/domain"
	"github.com/tidyroundlabs/tidyround/internal/gateway/sandbox"
	"github.com/tidyroundlabs/tidyround/internal/gateway/stripe"
)

var Module = fx.Module("gateway",
	fx.Provide(ProvideGateway),
)

func ProvideGateway(cfg config.Config) domain.Gateway {
	switch cfg.Gateway.Provider {
	case "stripe":
		return stripe.New(cfg.Gateway.APIKey, cfg.Gateway.BaseURL, cfg.Gateway.Timeout)
	default:
		return sandbox.New()
	}
}
