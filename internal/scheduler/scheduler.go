// Package scheduler runs the periodic jobs: weekly instance generation,
// daily reconciliation of unclaimed instances, and payment retry processing.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidyroundlabs/tidyround/internal/clock"
	"github.com/tidyroundlabs/tidyround/internal/config"
	"github.com/tidyroundlabs/tidyround/internal/joblock"
	"github.com/tidyroundlabs/tidyround/internal/metrics"
	"github.com/tidyroundlabs/tidyround/internal/notification"
	paymentretrydomain "github.com/tidyroundlabs/tidyround/internal/paymentretry/domain"
	instancedomain "github.com/tidyroundlabs/tidyround/internal/serviceinstance/domain"
)

const (
	jobGenerate  = "generate-week"
	jobReconcile = "reconcile-unclaimed"
	jobRetries   = "process-retries"
)

type Scheduler struct {
	log *zap.Logger
	cfg config.SchedulerConfig

	cron       gocron.Scheduler
	clock      clock.Clock
	locker     *joblock.Locker
	metrics    *metrics.Metrics
	dispatcher *notification.Dispatcher

	instances instancedomain.Service
	retries   paymentretrydomain.Service
}

type Param struct {
	fx.In

	Log        *zap.Logger
	Cfg        config.Config
	Clock      clock.Clock
	Locker     *joblock.Locker
	Metrics    *metrics.Metrics
	Dispatcher *notification.Dispatcher

	Instances instancedomain.Service
	Retries   paymentretrydomain.Service
}

func New(p Param) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		log:        p.Log.Named("scheduler"),
		cfg:        p.Cfg.Scheduler,
		cron:       cron,
		clock:      p.Clock,
		locker:     p.Locker,
		metrics:    p.Metrics,
		dispatcher: p.Dispatcher,
		instances:  p.Instances,
		retries:    p.Retries,
	}, nil
}

func (s *Scheduler) Start(ctx context.Context) error {
	jobs := []struct {
		name string
		def  gocron.JobDefinition
		run  func(ctx context.Context) error
	}{
		{jobGenerate, gocron.CronJob(s.cfg.GenerateCron, false), s.RunGenerate},
		{jobReconcile, gocron.CronJob(s.cfg.ReconcileCron, false), s.RunReconcile},
		{jobRetries, gocron.DurationJob(s.cfg.RetryEvery), s.RunRetries},
	}
	for _, job := range jobs {
		job := job
		_, err := s.cron.NewJob(
			job.def,
			gocron.NewTask(func() { s.runLocked(job.name, job.run) }),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			return err
		}
	}

	s.cron.Start()
	s.log.Info("scheduler started",
		zap.String("generate_cron", s.cfg.GenerateCron),
		zap.String("reconcile_cron", s.cfg.ReconcileCron),
		zap.Duration("retry_every", s.cfg.RetryEvery),
	)
	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	return s.cron.Shutdown()
}

// runLocked serializes a job across replicas: only the replica that wins
// the redis lock executes; the rest skip the tick.
func (s *Scheduler) runLocked(name string, fn func(ctx context.Context) error) {
	ctx := context.Background()
	start := time.Now()

	err := s.locker.WithLock(ctx, name, fn)
	s.metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, joblock.ErrHeld):
		s.log.Debug("job lock held elsewhere, skipping tick", zap.String("job", name))
	case err != nil:
		s.log.Error("job run failed", zap.String("job", name), zap.Error(err))
	}
}

// RunGenerate expands the current ISO week into service instances.
func (s *Scheduler) RunGenerate(ctx context.Context) error {
	result, err := s.instances.GenerateWeek(ctx, s.clock.Now(ctx))
	if err != nil {
		return err
	}
	s.log.Info("generation run finished",
		zap.Int("created", len(result.Created)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)),
	)
	s.dispatcher.Dispatch(ctx, result.Events)
	return nil
}

// RunReconcile moves stale unclaimed instances to today's default slot.
func (s *Scheduler) RunReconcile(ctx context.Context) error {
	result, err := s.instances.ReconcileUnclaimed(ctx)
	if err != nil {
		return err
	}
	s.log.Info("reconcile run finished",
		zap.Int("moved", len(result.Moved)),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)),
	)
	return nil
}

// RunRetries processes all due payment retries.
func (s *Scheduler) RunRetries(ctx context.Context) error {
	result, err := s.retries.ProcessDue(ctx)
	if err != nil {
		return err
	}
	if len(result.Succeeded)+len(result.Failed)+result.Errors > 0 {
		s.log.Info("retry run finished",
			zap.Int("succeeded", len(result.Succeeded)),
			zap.Int("failed", len(result.Failed)),
			zap.Int("errors", result.Errors),
		)
	}
	return nil
}
