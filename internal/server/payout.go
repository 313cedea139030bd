package server

import (
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	payoutdomain "github.com/tidyroundlabs/tidyround/internal/payout/domain"
	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

type requestPayoutRequest struct {
	ServiceInstanceIDs []string `json:"service_instance_ids"`
	TotalCents         int64    `json:"total_cents"`
}

type payoutResponse struct {
	ID               string                    `json:"id"`
	Reference        string                    `json:"reference"`
	EmployeeID       string                    `json:"employee_id"`
	Status           payoutdomain.PayoutStatus `json:"status"`
	EarningsAmount   int64                     `json:"earnings_amount"`
	CommissionAmount int64                     `json:"commission_amount"`
	TotalAmount      int64                     `json:"total_amount"`
	InstanceIDs      []string                  `json:"instance_ids"`
	CreatedAt        time.Time                 `json:"created_at"`
	PaidAt           *time.Time                `json:"paid_at,omitempty"`
}

func newPayoutResponse(p payoutdomain.Payout) payoutResponse {
	ids := make([]string, 0, len(p.InstanceIDs))
	for _, id := range p.InstanceIDs {
		ids = append(ids, id.String())
	}
	return payoutResponse{
		ID:               p.ID.String(),
		Reference:        p.Reference,
		EmployeeID:       p.EmployeeID.String(),
		Status:           p.Status,
		EarningsAmount:   p.EarningsAmount,
		CommissionAmount: p.CommissionAmount,
		TotalAmount:      p.TotalAmount,
		InstanceIDs:      ids,
		CreatedAt:        p.CreatedAt,
		PaidAt:           p.PaidAt,
	}
}

// RequestPayout settles earnings for the calling employee. Admins are not
// allowed to request on someone's behalf; payouts are employee-initiated.
func (s *Server) RequestPayout(c *gin.Context) {
	caller := actorFrom(c)
	if !caller.IsEmployee() {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req requestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ids := make([]snowflake.ID, 0, len(req.ServiceInstanceIDs))
	for _, raw := range req.ServiceInstanceIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil {
			AbortWithError(c, errs.Validation("invalid_id", "invalid service instance id"))
			return
		}
		ids = append(ids, id)
	}

	result, err := s.payoutSvc.RequestPayout(c.Request.Context(), payoutdomain.RequestPayoutInput{
		EmployeeID:         caller.UserID,
		ServiceInstanceIDs: ids,
		ClaimedTotalCents:  req.TotalCents,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.dispatcher.Dispatch(c.Request.Context(), result.Events)
	respondData(c, newPayoutResponse(result.Payout))
}

func (s *Server) MarkPayoutPaid(c *gin.Context) {
	if !actorFrom(c).IsAdmin() {
		AbortWithError(c, ErrForbidden)
		return
	}

	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, payoutdomain.ErrPayoutNotFound)
		return
	}

	payout, err := s.payoutSvc.MarkPaid(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, newPayoutResponse(payout))
}

type accrueCommissionRequest struct {
	EmployeeID       string `json:"employee_id"`
	SourceEmployeeID string `json:"source_employee_id"`
	AmountCents      int64  `json:"amount_cents"`
	Note             string `json:"note"`
}

func (s *Server) AccrueCommission(c *gin.Context) {
	if !actorFrom(c).IsAdmin() {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req accrueCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	employeeID, err := snowflake.ParseString(strings.TrimSpace(req.EmployeeID))
	if err != nil {
		AbortWithError(c, errs.Validation("invalid_id", "invalid employee id"))
		return
	}
	sourceID, err := snowflake.ParseString(strings.TrimSpace(req.SourceEmployeeID))
	if err != nil {
		AbortWithError(c, errs.Validation("invalid_id", "invalid source employee id"))
		return
	}

	commission, err := s.payoutSvc.AccrueCommission(c.Request.Context(), payoutdomain.AccrueCommissionInput{
		EmployeeID:       employeeID,
		SourceEmployeeID: sourceID,
		Amount:           req.AmountCents,
		Note:             strings.TrimSpace(req.Note),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, gin.H{
		"id":          commission.ID.String(),
		"employee_id": commission.EmployeeID.String(),
		"amount":      commission.Amount,
		"status":      commission.Status,
	})
}

// GetEarningsSummary reports weekly earnings for an employee. Employees may
// only read their own summary.
func (s *Server) GetEarningsSummary(c *gin.Context) {
	employeeID, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, errs.Validation("invalid_id", "invalid employee id"))
		return
	}

	caller := actorFrom(c)
	if !caller.IsAdmin() && caller.UserID != employeeID {
		AbortWithError(c, ErrForbidden)
		return
	}

	weeks := 12
	if raw := strings.TrimSpace(c.Query("weeks")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 520 {
			AbortWithError(c, errs.Validation("invalid_weeks", "weeks must be a positive integer"))
			return
		}
		weeks = parsed
	}
	since := time.Now().UTC().AddDate(0, 0, -7*weeks)

	summary, err := s.payoutSvc.EarningsSummary(c.Request.Context(), employeeID, since)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, summary)
}
