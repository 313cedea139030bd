package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	retrydomain "github.com/tidyroundlabs/tidyround/internal/paymentretry/domain"
	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

type retryResponse struct {
	ID               string                     `json:"id"`
	PaymentID        string                     `json:"payment_id"`
	PaymentReference string                     `json:"payment_reference"`
	Status           retrydomain.Status         `json:"status"`
	AttemptCount     int                        `json:"attempt_count"`
	ScheduledDate    time.Time                  `json:"scheduled_date"`
	ProcessedAt      *time.Time                 `json:"processed_at,omitempty"`
	FailureReason    *string                    `json:"failure_reason,omitempty"`
	TransactionID    *string                    `json:"transaction_id,omitempty"`
	StatusHistory    []retrydomain.StatusChange `json:"status_history"`
}

func newRetryResponse(r retrydomain.PaymentRetry) retryResponse {
	return retryResponse{
		ID:               r.ID.String(),
		PaymentID:        r.PaymentID.String(),
		PaymentReference: r.PaymentReference,
		Status:           r.Status,
		AttemptCount:     r.AttemptCount,
		ScheduledDate:    r.ScheduledDate,
		ProcessedAt:      r.ProcessedAt,
		FailureReason:    r.FailureReason,
		TransactionID:    r.TransactionID,
		StatusHistory:    r.StatusHistory,
	}
}

func (s *Server) GetPaymentRetry(c *gin.Context) {
	if !actorFrom(c).IsAdmin() {
		AbortWithError(c, ErrForbidden)
		return
	}

	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, retrydomain.ErrRetryNotFound)
		return
	}

	retry, err := s.retrySvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, newRetryResponse(retry))
}

type scheduleRetryRequest struct {
	PaymentID        string  `json:"payment_id"`
	PaymentReference string  `json:"payment_reference"`
	SubscriptionID   *string `json:"subscription_id,omitempty"`
}

func (s *Server) SchedulePaymentRetry(c *gin.Context) {
	if !actorFrom(c).IsAdmin() {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req scheduleRetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paymentID, err := snowflake.ParseString(strings.TrimSpace(req.PaymentID))
	if err != nil {
		AbortWithError(c, errs.Validation("invalid_id", "invalid payment id"))
		return
	}
	if strings.TrimSpace(req.PaymentReference) == "" {
		AbortWithError(c, errs.Validation("missing_reference", "payment_reference is required"))
		return
	}

	schedReq := retrydomain.ScheduleRequest{
		PaymentID:        paymentID,
		PaymentReference: strings.TrimSpace(req.PaymentReference),
	}
	if req.SubscriptionID != nil {
		subID, err := snowflake.ParseString(strings.TrimSpace(*req.SubscriptionID))
		if err != nil {
			AbortWithError(c, errs.Validation("invalid_id", "invalid subscription id"))
			return
		}
		schedReq.SubscriptionID = &subID
	}

	retry, err := s.retrySvc.ScheduleNext(c.Request.Context(), schedReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, newRetryResponse(retry))
}

func (s *Server) GetRetryReport(c *gin.Context) {
	if !actorFrom(c).IsAdmin() {
		AbortWithError(c, ErrForbidden)
		return
	}

	report, err := s.retrySvc.Report(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, report)
}
