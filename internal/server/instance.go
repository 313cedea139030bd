package server

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	instancedomain "github.com/tidyroundlabs/tidyround/internal/serviceinstance/domain"
)

type instanceResponse struct {
	ID                string                         `json:"id"`
	CustomerID        string                         `json:"customer_id"`
	PeriodKey         string                         `json:"period_key"`
	EmployeeID        *string                        `json:"employee_id,omitempty"`
	Status            instancedomain.Status          `json:"status"`
	PaymentStatus     instancedomain.PaymentStatus   `json:"payment_status"`
	ScheduledDate     time.Time                      `json:"scheduled_date"`
	ClaimedAt         *time.Time                     `json:"claimed_at,omitempty"`
	CompletedDate     *time.Time                     `json:"completed_date,omitempty"`
	PotentialEarnings int64                          `json:"potential_earnings"`
	Currency          string                         `json:"currency"`
	Checklist         []instancedomain.ChecklistItem `json:"checklist,omitempty"`
	Notes             string                         `json:"notes,omitempty"`
	IsLocked          bool                           `json:"is_locked"`
}

func newInstanceResponse(inst instancedomain.ServiceInstance) instanceResponse {
	resp := instanceResponse{
		ID:                inst.ID.String(),
		CustomerID:        inst.CustomerID.String(),
		PeriodKey:         inst.PeriodKey,
		Status:            inst.Status,
		PaymentStatus:     inst.PaymentStatus,
		ScheduledDate:     inst.ScheduledDate,
		ClaimedAt:         inst.ClaimedAt,
		CompletedDate:     inst.CompletedDate,
		PotentialEarnings: inst.PotentialEarnings,
		Currency:          inst.Currency,
		Checklist:         inst.Checklist,
		Notes:             inst.Notes,
		IsLocked:          inst.IsLocked,
	}
	if inst.EmployeeID != nil {
		id := inst.EmployeeID.String()
		resp.EmployeeID = &id
	}
	return resp
}

func instanceIDParam(c *gin.Context) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param("id")))
	if err != nil {
		return 0, instancedomain.ErrInstanceNotFound
	}
	return id, nil
}

func (s *Server) GetInstance(c *gin.Context) {
	id, err := instanceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	inst, err := s.instanceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, newInstanceResponse(inst))
}

func (s *Server) ListAvailableInstances(c *gin.Context) {
	from := time.Now().UTC()
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		from = parsed
	}

	instances, err := s.instanceSvc.ListAvailable(c.Request.Context(), from)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	out := make([]instanceResponse, 0, len(instances))
	for _, inst := range instances {
		out = append(out, newInstanceResponse(inst))
	}
	respondData(c, out)
}

func (s *Server) ClaimInstance(c *gin.Context) {
	id, err := instanceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.instanceSvc.Claim(c.Request.Context(), instancedomain.ClaimRequest{
		InstanceID: id,
		Actor:      actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.dispatcher.Dispatch(c.Request.Context(), result.Events)
	respondData(c, newInstanceResponse(result.Instance))
}

func (s *Server) StartInstance(c *gin.Context) {
	id, err := instanceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.instanceSvc.Start(c.Request.Context(), instancedomain.StartRequest{
		InstanceID: id,
		Actor:      actorFrom(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.dispatcher.Dispatch(c.Request.Context(), result.Events)
	respondData(c, newInstanceResponse(result.Instance))
}

type addNoteRequest struct {
	Note string `json:"note"`
}

func (s *Server) AddInstanceNote(c *gin.Context) {
	id, err := instanceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req addNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inst, err := s.instanceSvc.AddNote(c.Request.Context(), id, actorFrom(c), strings.TrimSpace(req.Note))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, newInstanceResponse(inst))
}

type completeInstanceRequest struct {
	Photos    []instancedomain.Photo `json:"photos"`
	Checklist map[string]bool        `json:"checklist"`
}

func (s *Server) CompleteInstance(c *gin.Context) {
	id, err := instanceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req completeInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.instanceSvc.Complete(c.Request.Context(), instancedomain.CompleteRequest{
		InstanceID: id,
		Actor:      actorFrom(c),
		Photos:     req.Photos,
		Checklist:  req.Checklist,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.dispatcher.Dispatch(c.Request.Context(), result.Events)
	respondData(c, newInstanceResponse(result.Instance))
}

type cancelInstanceRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) CancelInstance(c *gin.Context) {
	id, err := instanceIDParam(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req cancelInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.instanceSvc.Cancel(c.Request.Context(), instancedomain.CancelRequest{
		InstanceID: id,
		Actor:      actorFrom(c),
		Reason:     strings.TrimSpace(req.Reason),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.dispatcher.Dispatch(c.Request.Context(), result.Events)
	respondData(c, newInstanceResponse(result.Instance))
}
