package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/tidyroundlabs/tidyround/internal/notification/domain"
)

// LogNotifier records events instead of delivering them. Used when no
// webhook endpoint is configured.
type LogNotifier struct {
	log *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{log: log.Named("notification.log")}
}

func (n *LogNotifier) Notify(_ context.Context, event domain.Event) error {
	n.log.Info("notification",
		zap.String("kind", event.Kind),
		zap.String("user_id", event.UserID.String()),
		zap.Any("payload", event.Payload),
	)
	return nil
}
