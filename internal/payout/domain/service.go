package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"

	notificationdomain "github.com/tidyroundlabs/tidyround/internal/notification/domain"
)

type RequestPayoutInput struct {
	EmployeeID         snowflake.ID
	ServiceInstanceIDs []snowflake.ID
	// ClaimedTotalCents is what the employee believes they are owed for the
	// listed instances; it must match the computed sum within tolerance.
	ClaimedTotalCents int64
}

type RequestPayoutResult struct {
	Payout Payout
	Events []notificationdomain.Event
}

type AccrueCommissionInput struct {
	EmployeeID       snowflake.ID
	SourceEmployeeID snowflake.ID
	Amount           int64
	Note             string
}

// DailyEarnings is one day of an employee's completed-job earnings.
type DailyEarnings struct {
	Date        string `json:"date"`
	TotalAmount int64  `json:"total_amount"`
	JobCount    int    `json:"job_count"`
}

type WeeklyEarnings struct {
	WeekStart      string          `json:"week_start"`
	WeekEnd        string          `json:"week_end"`
	WeeklyTotal    int64           `json:"weekly_total"`
	JobCount       int             `json:"job_count"`
	DailyBreakdown []DailyEarnings `json:"daily_breakdown"`
}

type EarningsSummary struct {
	EmployeeID snowflake.ID     `json:"employee_id"`
	Total      int64            `json:"total"`
	Weeks      []WeeklyEarnings `json:"weeks"`
}

type Service interface {
	// RequestPayout validates and settles a payout request; the referenced
	// instances advance PENDING→PAYOUT_REQUESTED atomically as a set.
	RequestPayout(ctx context.Context, input RequestPayoutInput) (RequestPayoutResult, error)

	// MarkPaid advances a requested payout and its instances and
	// commissions to PAID.
	MarkPaid(ctx context.Context, payoutID snowflake.ID) (Payout, error)

	AccrueCommission(ctx context.Context, input AccrueCommissionInput) (ReferralCommission, error)

	// EarningsSummary reports completed-job earnings by week since the
	// given time.
	EarningsSummary(ctx context.Context, employeeID snowflake.ID, since time.Time) (EarningsSummary, error)
}
