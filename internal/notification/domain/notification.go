// Package domain defines the outbound notification contract. Notifications
// are best-effort: state machines return events post-commit and the
// dispatcher sends them after the transaction is done, so a delivery failure
// never rolls back a transition.
package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

const (
	KindServiceScheduled = "service_scheduled"
	KindServiceClaimed   = "service_claimed"
	KindServiceCompleted = "service_completed"
	KindServiceCancelled = "service_cancelled"
	KindPayoutRequested  = "payout_requested"
)

type Event struct {
	UserID  snowflake.ID
	Kind    string
	Payload map[string]any
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}
