package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/internal/actor"
	"github.com/tidyroundlabs/tidyround/internal/clock"
	"github.com/tidyroundlabs/tidyround/internal/config"
	"github.com/tidyroundlabs/tidyround/internal/earnings"
	employeedomain "github.com/tidyroundlabs/tidyround/internal/employee/domain"
	"github.com/tidyroundlabs/tidyround/internal/metrics"
	notificationdomain "github.com/tidyroundlabs/tidyround/internal/notification/domain"
	"github.com/tidyroundlabs/tidyround/internal/serviceinstance/domain"
	subscriptiondomain "github.com/tidyroundlabs/tidyround/internal/subscription/domain"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	cfg   config.ServiceConfig
	loc   *time.Location

	repo         domain.Repository
	employeeRepo employeedomain.Repository
	subRepo      subscriptiondomain.Repository
	calc         *earnings.Calculator
	metrics      *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Cfg   config.Config

	Repo         domain.Repository
	EmployeeRepo employeedomain.Repository
	SubRepo      subscriptiondomain.Repository
	Calc         *earnings.Calculator
	Metrics      *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	loc, err := time.LoadLocation(p.Cfg.Service.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("serviceinstance.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		cfg:          p.Cfg.Service,
		loc:          loc,
		repo:         p.Repo,
		employeeRepo: p.EmployeeRepo,
		subRepo:      p.SubRepo,
		calc:         p.Calc,
		metrics:      p.Metrics,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.ServiceInstance, error) {
	inst, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ServiceInstance{}, err
	}
	if inst == nil {
		return domain.ServiceInstance{}, domain.ErrInstanceNotFound
	}
	return *inst, nil
}

func (s *Service) ListAvailable(ctx context.Context, from time.Time) ([]domain.ServiceInstance, error) {
	return s.repo.ListAvailable(ctx, s.db, from)
}

func (s *Service) AddNote(ctx context.Context, id snowflake.ID, by actor.Actor, text string) (domain.ServiceInstance, error) {
	if !by.IsAdmin() {
		return domain.ServiceInstance{}, domain.ErrRoleForbidden
	}
	if text == "" {
		return domain.ServiceInstance{}, domain.ErrEmptyNote
	}

	inst, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.ServiceInstance{}, err
	}
	if inst == nil {
		return domain.ServiceInstance{}, domain.ErrInstanceNotFound
	}

	now := s.clock.Now(ctx)
	note := domain.NoteLine(now, "admin note: "+text)
	if err := s.repo.AppendNote(ctx, s.db, id, note, now); err != nil {
		return domain.ServiceInstance{}, err
	}
	inst.Notes += note
	return *inst, nil
}

// Claim implements the SCHEDULED→CLAIMED transition. Exclusivity comes from
// the repository's conditional update: when two employees race, exactly one
// update lands and the loser gets ErrClaimConflict.
func (s *Service) Claim(ctx context.Context, req domain.ClaimRequest) (domain.TransitionResult, error) {
	if !req.Actor.IsEmployee() {
		return domain.TransitionResult{}, domain.ErrRoleForbidden
	}

	emp, err := s.employeeRepo.FindByID(ctx, s.db, req.Actor.UserID)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if emp == nil {
		return domain.TransitionResult{}, employeedomain.ErrEmployeeNotFound
	}
	if !emp.ServiceAreaReady {
		return domain.TransitionResult{}, domain.ErrServiceAreaSetup
	}

	inst, err := s.repo.FindByID(ctx, s.db, req.InstanceID)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if inst == nil {
		return domain.TransitionResult{}, domain.ErrInstanceNotFound
	}
	if inst.IsLocked {
		return domain.TransitionResult{}, domain.ErrInstanceLocked
	}

	now := s.clock.Now(ctx)
	ok, err := s.repo.Claim(ctx, s.db, req.InstanceID, req.Actor.UserID, now)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if !ok {
		s.metrics.ClaimAttempts.WithLabelValues("conflict").Inc()
		return domain.TransitionResult{}, domain.ErrClaimConflict
	}
	s.metrics.ClaimAttempts.WithLabelValues("won").Inc()

	claimed := *inst
	claimed.Status = domain.StatusClaimed
	claimed.EmployeeID = &req.Actor.UserID
	claimed.ClaimedAt = &now

	return domain.TransitionResult{
		Instance: claimed,
		Events: []notificationdomain.Event{{
			UserID: inst.CustomerID,
			Kind:   notificationdomain.KindServiceClaimed,
			Payload: map[string]any{
				"instance_id":    inst.ID.String(),
				"scheduled_date": inst.ScheduledDate,
			},
		}},
	}, nil
}

func (s *Service) Start(ctx context.Context, req domain.StartRequest) (domain.TransitionResult, error) {
	if !req.Actor.IsEmployee() {
		return domain.TransitionResult{}, domain.ErrRoleForbidden
	}

	inst, err := s.repo.FindByID(ctx, s.db, req.InstanceID)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if inst == nil {
		return domain.TransitionResult{}, domain.ErrInstanceNotFound
	}
	if inst.EmployeeID == nil || *inst.EmployeeID != req.Actor.UserID {
		return domain.TransitionResult{}, domain.ErrNotClaimOwner
	}

	ok, err := s.repo.Start(ctx, s.db, req.InstanceID, req.Actor.UserID, s.clock.Now(ctx))
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if !ok {
		return domain.TransitionResult{}, domain.ErrInvalidTransition
	}

	started := *inst
	started.Status = domain.StatusInProgress
	return domain.TransitionResult{Instance: started}, nil
}

// Complete enforces the exit criteria: minimum before/after photos and all
// required checklist items done. Admins may complete on the owner's behalf.
func (s *Service) Complete(ctx context.Context, req domain.CompleteRequest) (domain.TransitionResult, error) {
	inst, err := s.repo.FindByID(ctx, s.db, req.InstanceID)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if inst == nil {
		return domain.TransitionResult{}, domain.ErrInstanceNotFound
	}
	if inst.Status.Terminal() {
		return domain.TransitionResult{}, domain.ErrTerminalImmutable
	}

	if !req.Actor.IsAdmin() {
		if !req.Actor.IsEmployee() {
			return domain.TransitionResult{}, domain.ErrRoleForbidden
		}
		if inst.EmployeeID == nil || *inst.EmployeeID != req.Actor.UserID {
			return domain.TransitionResult{}, domain.ErrNotClaimOwner
		}
	}

	if err := s.validateCompletion(inst, req); err != nil {
		return domain.TransitionResult{}, err
	}

	now := s.clock.Now(ctx)
	ok, err := s.repo.Complete(ctx, s.db, req.InstanceID, now)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if !ok {
		return domain.TransitionResult{}, domain.ErrInvalidTransition
	}

	completed := *inst
	completed.Status = domain.StatusCompleted
	completed.CompletedDate = &now

	return domain.TransitionResult{
		Instance: completed,
		Events: []notificationdomain.Event{{
			UserID: inst.CustomerID,
			Kind:   notificationdomain.KindServiceCompleted,
			Payload: map[string]any{
				"instance_id":  inst.ID.String(),
				"completed_at": now,
			},
		}},
	}, nil
}

func (s *Service) validateCompletion(inst *domain.ServiceInstance, req domain.CompleteRequest) error {
	var before, after int
	for _, photo := range req.Photos {
		switch photo.Phase {
		case domain.PhotoPhaseBefore:
			before++
		case domain.PhotoPhaseAfter:
			after++
		}
	}
	if before < s.cfg.MinBeforePhotos || after < s.cfg.MinAfterPhotos {
		return domain.ErrMissingPhotos
	}

	for _, item := range inst.Checklist {
		if item.Required && !req.Checklist[item.Name] {
			return domain.ErrChecklistIncomplete
		}
	}
	return nil
}

// Cancel is allowed from SCHEDULED or CLAIMED by an admin or the owning
// customer; from IN_PROGRESS only with admin override.
func (s *Service) Cancel(ctx context.Context, req domain.CancelRequest) (domain.TransitionResult, error) {
	inst, err := s.repo.FindByID(ctx, s.db, req.InstanceID)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if inst == nil {
		return domain.TransitionResult{}, domain.ErrInstanceNotFound
	}
	if inst.Status.Terminal() {
		return domain.TransitionResult{}, domain.ErrTerminalImmutable
	}

	switch {
	case req.Actor.IsAdmin():
	case req.Actor.IsCustomer() && req.Actor.UserID == inst.CustomerID:
		if inst.Status == domain.StatusInProgress {
			return domain.TransitionResult{}, domain.ErrCancelForbidden
		}
	default:
		return domain.TransitionResult{}, domain.ErrCancelForbidden
	}

	from := []domain.Status{domain.StatusScheduled, domain.StatusClaimed}
	if req.Actor.IsAdmin() {
		from = append(from, domain.StatusInProgress)
	}

	now := s.clock.Now(ctx)
	reason := req.Reason
	if reason == "" {
		reason = "no reason given"
	}
	note := domain.NoteLine(now, "cancelled by "+string(req.Actor.Role)+": "+reason)

	ok, err := s.repo.Cancel(ctx, s.db, req.InstanceID, from, note, now)
	if err != nil {
		return domain.TransitionResult{}, err
	}
	if !ok {
		return domain.TransitionResult{}, domain.ErrInvalidTransition
	}

	cancelled := *inst
	cancelled.Status = domain.StatusCancelled

	events := []notificationdomain.Event{{
		UserID: inst.CustomerID,
		Kind:   notificationdomain.KindServiceCancelled,
		Payload: map[string]any{
			"instance_id": inst.ID.String(),
			"reason":      reason,
		},
	}}
	if inst.EmployeeID != nil {
		events = append(events, notificationdomain.Event{
			UserID: *inst.EmployeeID,
			Kind:   notificationdomain.KindServiceCancelled,
			Payload: map[string]any{
				"instance_id": inst.ID.String(),
				"reason":      reason,
			},
		})
	}

	return domain.TransitionResult{Instance: cancelled, Events: events}, nil
}
