// Package server exposes the HTTP surface: marketplace endpoints for
// employees and customers, admin settlement endpoints, and internal job
// triggers.
package server

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tidyroundlabs/tidyround/internal/config"
	"github.com/tidyroundlabs/tidyround/internal/metrics"
	"github.com/tidyroundlabs/tidyround/internal/notification"
	paymentretrydomain "github.com/tidyroundlabs/tidyround/internal/paymentretry/domain"
	payoutdomain "github.com/tidyroundlabs/tidyround/internal/payout/domain"
	"github.com/tidyroundlabs/tidyround/internal/scheduler"
	instancedomain "github.com/tidyroundlabs/tidyround/internal/serviceinstance/domain"
)

type Server struct {
	db  *gorm.DB
	log *zap.Logger
	cfg config.Config

	instanceSvc instancedomain.Service
	retrySvc    paymentretrydomain.Service
	payoutSvc   payoutdomain.Service

	dispatcher *notification.Dispatcher
	metrics    *metrics.Metrics
	jobs       *scheduler.Scheduler
}

type Param struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
	Cfg config.Config

	InstanceSvc instancedomain.Service
	RetrySvc    paymentretrydomain.Service
	PayoutSvc   payoutdomain.Service

	Dispatcher *notification.Dispatcher
	Metrics    *metrics.Metrics
	Jobs       *scheduler.Scheduler
}

func NewServer(p Param) *Server {
	return &Server{
		db:          p.DB,
		log:         p.Log.Named("server"),
		cfg:         p.Cfg,
		instanceSvc: p.InstanceSvc,
		retrySvc:    p.RetrySvc,
		payoutSvc:   p.PayoutSvc,
		dispatcher:  p.Dispatcher,
		metrics:     p.Metrics,
		jobs:        p.Jobs,
	}
}

func (s *Server) Router() *gin.Engine {
	if !s.cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1", s.ActorRequired())
	{
		v1.GET("/instances/available", s.ListAvailableInstances)
		v1.GET("/instances/:id", s.GetInstance)
		v1.POST("/instances/:id/claim", s.ClaimInstance)
		v1.POST("/instances/:id/start", s.StartInstance)
		v1.POST("/instances/:id/complete", s.CompleteInstance)
		v1.POST("/instances/:id/cancel", s.CancelInstance)
		v1.POST("/instances/:id/notes", s.AddInstanceNote)

		v1.GET("/employees/:id/earnings", s.GetEarningsSummary)
		v1.POST("/payouts", s.RequestPayout)
		v1.POST("/payouts/:id/paid", s.MarkPayoutPaid)
		v1.POST("/referrals/commissions", s.AccrueCommission)

		v1.GET("/payment-retries/report", s.GetRetryReport)
		v1.GET("/payment-retries/:id", s.GetPaymentRetry)
		v1.POST("/payment-retries", s.SchedulePaymentRetry)
	}

	internal := r.Group("/internal", s.JobSecretRequired())
	{
		internal.POST("/jobs/generate", s.TriggerGenerate)
		internal.POST("/jobs/reconcile", s.TriggerReconcile)
		internal.POST("/jobs/process-retries", s.TriggerRetries)
	}

	return r
}

func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		AbortWithError(c, ErrNotReady)
		return
	}
	respondData(c, gin.H{"status": "ok"})
}
