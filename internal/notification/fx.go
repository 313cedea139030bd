package notification

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidyroundlabs/tidyround/internal/config"
	"github.com/tidyroundlabs/tidyround/internal/notification/domain"
)

var Module = fx.Module("notification",
	fx.Provide(ProvideNotifier),
	fx.Provide(NewDispatcher),
)

func ProvideNotifier(cfg config.Config, log *zap.Logger) domain.Notifier {
	if cfg.Notification.WebhookURL != "" {
		return NewWebhookNotifier(cfg.Notification.WebhookURL)
	}
	return NewLogNotifier(log)
}
