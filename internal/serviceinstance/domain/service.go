package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/tidyroundlabs/tidyround/internal/actor"
	notificationdomain "github.com/tidyroundlabs/tidyround/internal/notification/domain"
	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

var (
	ErrInstanceNotFound = errs.NotFound("instance_not_found", "service instance not found")
	// ErrClaimConflict is the user-visible outcome of a lost claim race.
	ErrClaimConflict       = errs.Conflict("claim_conflict", "job no longer available")
	ErrInstanceLocked      = errs.Conflict("instance_locked", "service instance is locked")
	ErrServiceAreaSetup    = errs.Validation("service_area_incomplete", "employee must complete service-area setup before claiming")
	ErrNotClaimOwner       = errs.Validation("not_claim_owner", "only the claiming employee may act on this instance")
	ErrInvalidTransition   = errs.Conflict("invalid_transition", "transition not allowed from current status")
	ErrTerminalImmutable   = errs.Conflict("terminal_immutable", "completed or cancelled instances cannot change")
	ErrMissingPhotos       = errs.Validation("missing_photos", "completion requires the minimum before and after photos")
	ErrChecklistIncomplete = errs.Validation("checklist_incomplete", "all required checklist items must be done")
	ErrCancelForbidden     = errs.Validation("cancel_forbidden", "caller may not cancel this instance")
	ErrRoleForbidden       = errs.Validation("role_forbidden", "caller role may not perform this action")
	ErrEmptyNote           = errs.Validation("empty_note", "note text must not be empty")
)

type PhotoPhase string

const (
	PhotoPhaseBefore PhotoPhase = "before"
	PhotoPhaseAfter  PhotoPhase = "after"
)

type Photo struct {
	Phase PhotoPhase `json:"phase"`
	URL   string     `json:"url"`
}

type ClaimRequest struct {
	InstanceID snowflake.ID
	Actor      actor.Actor
}

type StartRequest struct {
	InstanceID snowflake.ID
	Actor      actor.Actor
}

type CompleteRequest struct {
	InstanceID snowflake.ID
	Actor      actor.Actor
	Photos     []Photo
	// Checklist marks items done by name.
	Checklist map[string]bool
}

type CancelRequest struct {
	InstanceID snowflake.ID
	Actor      actor.Actor
	Reason     string
}

// TransitionResult carries the mutated instance plus the post-commit
// notification events the caller must dispatch.
type TransitionResult struct {
	Instance ServiceInstance
	Events   []notificationdomain.Event
}

// ItemError records a single item's failure inside a batch run.
type ItemError struct {
	SubscriptionID snowflake.ID `json:"subscription_id,omitempty"`
	InstanceID     snowflake.ID `json:"instance_id,omitempty"`
	Reason         string       `json:"reason"`
}

type GenerateResult struct {
	Created []snowflake.ID
	Skipped int
	Failed  []ItemError
	Events  []notificationdomain.Event
}

type ReconcileResult struct {
	Moved   []snowflake.ID
	Skipped int
	Failed  []ItemError
}

type Service interface {
	Claim(ctx context.Context, req ClaimRequest) (TransitionResult, error)
	Start(ctx context.Context, req StartRequest) (TransitionResult, error)
	Complete(ctx context.Context, req CompleteRequest) (TransitionResult, error)
	Cancel(ctx context.Context, req CancelRequest) (TransitionResult, error)

	GetByID(ctx context.Context, id snowflake.ID) (ServiceInstance, error)
	ListAvailable(ctx context.Context, from time.Time) ([]ServiceInstance, error)

	// AddNote appends one line to the instance's audit trail. Admin only;
	// notes are allowed on terminal instances since they never change state.
	AddNote(ctx context.Context, id snowflake.ID, by actor.Actor, text string) (ServiceInstance, error)

	// GenerateWeek expands the ISO week containing target into service
	// instances, one per active subscription. Partial-failure semantics.
	GenerateWeek(ctx context.Context, target time.Time) (GenerateResult, error)

	// ReconcileUnclaimed moves stale unclaimed instances forward to the
	// default slot on the current day. Idempotent per day.
	ReconcileUnclaimed(ctx context.Context) (ReconcileResult, error)
}
