package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ScheduleRequest struct {
	PaymentID        snowflake.ID
	PaymentReference string
	SubscriptionID   *snowflake.ID
}

type ProcessResult struct {
	Succeeded []snowflake.ID
	Failed    []snowflake.ID
	Errors    int
}

// PathCount is one observed status path with its frequency.
type PathCount struct {
	Path  []Status `json:"path"`
	Count int      `json:"count"`
}

// AnalyticsReport summarizes statusHistory across retries, used for tuning
// retry cadence. Read-only.
type AnalyticsReport struct {
	TotalRetries int `json:"total_retries"`
	// TransitionCounts keys look like "SCHEDULED->SUCCESS".
	TransitionCounts map[string]int `json:"transition_counts"`
	// AvgTimeInTransition is the mean duration spent before each outcome,
	// keyed the same way as TransitionCounts.
	AvgTimeInTransition   map[string]time.Duration `json:"avg_time_in_transition"`
	MostCommonSuccessPath *PathCount               `json:"most_common_success_path,omitempty"`
}

type Service interface {
	// ScheduleNext opens a new retry record for a failed charge, bounded by
	// the configured maximum attempt count.
	ScheduleNext(ctx context.Context, req ScheduleRequest) (PaymentRetry, error)

	// ProcessDue runs every SCHEDULED retry whose time has come. Each retry
	// is processed independently; a transport failure marks the retry
	// FAILED rather than leaving it SCHEDULED (fail-closed).
	ProcessDue(ctx context.Context) (ProcessResult, error)

	GetByID(ctx context.Context, id snowflake.ID) (PaymentRetry, error)
	Report(ctx context.Context) (AnalyticsReport, error)
}
