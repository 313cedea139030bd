package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/internal/clock"
	"github.com/tidyroundlabs/tidyround/internal/config"
	gatewaydomain "github.com/tidyroundlabs/tidyround/internal/gateway/domain"
	"github.com/tidyroundlabs/tidyround/internal/metrics"
	"github.com/tidyroundlabs/tidyround/internal/paymentretry/domain"
	subscriptiondomain "github.com/tidyroundlabs/tidyround/internal/subscription/domain"
	"github.com/tidyroundlabs/tidyround/pkg/errs"
)

const processBatchLimit = 200

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	cfg     config.Config
	repo    domain.Repository
	subRepo subscriptiondomain.Repository
	gateway gatewaydomain.Gateway
	metrics *metrics.Metrics
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Cfg     config.Config
	Repo    domain.Repository
	SubRepo subscriptiondomain.Repository
	Gateway gatewaydomain.Gateway
	Metrics *metrics.Metrics
}

func NewService(p ServiceParam) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("paymentretry.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		cfg:     p.Cfg,
		repo:    p.Repo,
		subRepo: p.SubRepo,
		gateway: p.Gateway,
		metrics: p.Metrics,
	}
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (domain.PaymentRetry, error) {
	retry, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.PaymentRetry{}, err
	}
	if retry == nil {
		return domain.PaymentRetry{}, domain.ErrRetryNotFound
	}
	return *retry, nil
}

// ScheduleNext opens a new retry record after a failed charge. The attempt
// budget is enforced here, on the scheduling side; processing never blocks
// on it.
func (s *Service) ScheduleNext(ctx context.Context, req domain.ScheduleRequest) (domain.PaymentRetry, error) {
	if req.PaymentReference == "" {
		return domain.PaymentRetry{}, errs.Validation("missing_payment_reference", "payment reference is required")
	}
	if req.SubscriptionID != nil {
		sub, err := s.subRepo.FindByID(ctx, s.db, *req.SubscriptionID)
		if err != nil {
			return domain.PaymentRetry{}, err
		}
		if sub == nil {
			return domain.PaymentRetry{}, subscriptiondomain.ErrSubscriptionNotFound
		}
	}

	attempts, err := s.repo.CountAttempts(ctx, s.db, req.PaymentID)
	if err != nil {
		return domain.PaymentRetry{}, err
	}
	if attempts >= int64(s.cfg.Retry.MaxAttempts) {
		return domain.PaymentRetry{}, domain.ErrMaxAttempts
	}

	now := s.clock.Now(ctx)
	retry := domain.PaymentRetry{
		ID:               s.genID.Generate(),
		PaymentID:        req.PaymentID,
		PaymentReference: req.PaymentReference,
		SubscriptionID:   req.SubscriptionID,
		Status:           domain.StatusScheduled,
		AttemptCount:     int(attempts) + 1,
		ScheduledDate:    now.Add(s.cfg.Retry.Backoff * time.Duration(attempts+1)),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	retry.AppendHistory(domain.StatusScheduled, now)

	if err := s.repo.Insert(ctx, s.db, &retry); err != nil {
		return domain.PaymentRetry{}, err
	}
	return retry, nil
}

// ProcessDue runs every due retry independently. A gateway decline marks the
// retry FAILED with the gateway's reason; a transport error marks it FAILED
// with a generic reason instead of leaving it SCHEDULED, so a flaky network
// cannot stall the chain silently.
func (s *Service) ProcessDue(ctx context.Context) (domain.ProcessResult, error) {
	now := s.clock.Now(ctx)
	due, err := s.repo.ListDue(ctx, s.db, now, processBatchLimit)
	if err != nil {
		return domain.ProcessResult{}, err
	}

	result := domain.ProcessResult{}
	for i := range due {
		retry := due[i]
		if err := s.processOne(ctx, &retry); err != nil {
			s.log.Error("retry processing errored",
				zap.String("retry_id", retry.ID.String()), zap.Error(err))
			result.Errors++
			continue
		}
		switch retry.Status {
		case domain.StatusSuccess:
			result.Succeeded = append(result.Succeeded, retry.ID)
		case domain.StatusFailed:
			result.Failed = append(result.Failed, retry.ID)
		}
	}
	return result, nil
}

func (s *Service) processOne(ctx context.Context, retry *domain.PaymentRetry) error {
	itemCtx, cancel := context.WithTimeout(ctx, s.cfg.Gateway.Timeout)
	defer cancel()

	res, err := s.gateway.ChargeRetry(itemCtx, retry.PaymentReference)
	now := s.clock.Now(ctx)
	retry.ProcessedAt = &now

	switch {
	case err != nil:
		// Fail-closed: the outcome is unknown, so record a failure rather
		// than leave the retry stalled in SCHEDULED.
		reason := "gateway_unavailable"
		if !errors.Is(err, gatewaydomain.ErrGatewayUnavailable) {
			reason = errs.CodeOf(err)
			if reason == "" {
				reason = "gateway_error"
			}
		}
		retry.Status = domain.StatusFailed
		retry.FailureReason = &reason
		s.metrics.RetriesProcessed.WithLabelValues("error").Inc()
	case res.Success:
		retry.Status = domain.StatusSuccess
		retry.TransactionID = &res.TransactionID
		s.metrics.RetriesProcessed.WithLabelValues("success").Inc()
	default:
		reason := res.ReasonCode
		retry.Status = domain.StatusFailed
		retry.FailureReason = &reason
		s.metrics.RetriesProcessed.WithLabelValues("failed").Inc()
	}
	retry.AppendHistory(retry.Status, now)

	ok, err := s.repo.MarkProcessed(ctx, s.db, retry)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAlreadyTerminal
	}

	s.syncSubscription(ctx, retry)
	return nil
}

// syncSubscription reflects the terminal retry outcome on the linked
// subscription: a successful charge recovers PAST_DUE, exhausting the attempt
// budget marks the subscription PAST_DUE. Best effort; the retry row is
// already terminal and a later sweep or manual action can fix the status.
func (s *Service) syncSubscription(ctx context.Context, retry *domain.PaymentRetry) {
	if retry.SubscriptionID == nil {
		return
	}

	now := s.clock.Now(ctx)
	var err error
	switch {
	case retry.Status == domain.StatusSuccess:
		_, err = s.subRepo.UpdateStatus(ctx, s.db, *retry.SubscriptionID,
			[]subscriptiondomain.SubscriptionStatus{subscriptiondomain.SubscriptionStatusPastDue},
			subscriptiondomain.SubscriptionStatusActive, nil, now)
	case retry.Status == domain.StatusFailed && retry.AttemptCount >= s.cfg.Retry.MaxAttempts:
		_, err = s.subRepo.UpdateStatus(ctx, s.db, *retry.SubscriptionID,
			[]subscriptiondomain.SubscriptionStatus{subscriptiondomain.SubscriptionStatusActive},
			subscriptiondomain.SubscriptionStatusPastDue, nil, now)
	default:
		return
	}
	if err != nil {
		s.log.Warn("subscription status sync failed",
			zap.String("subscription_id", retry.SubscriptionID.String()),
			zap.Error(err))
	}
}
