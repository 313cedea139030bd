package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/tidyroundlabs/tidyround/internal/notification/domain"
)

// Dispatcher drains post-commit event lists. Failures are logged and
// swallowed; callers never see them.
type Dispatcher struct {
	notifier domain.Notifier
	log      *zap.Logger
}

func NewDispatcher(notifier domain.Notifier, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		log:      log.Named("notification.dispatcher"),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, events []domain.Event) {
	for _, event := range events {
		if err := d.notifier.Notify(ctx, event); err != nil {
			d.log.Warn("notification delivery failed",
				zap.String("kind", event.Kind),
				zap.String("user_id", event.UserID.String()),
				zap.Error(err),
			)
		}
	}
}
