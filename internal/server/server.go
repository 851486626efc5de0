package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/menuvia/menuvia/internal/audit"
	"github.com/menuvia/menuvia/internal/auth"
	authdomain "github.com/menuvia/menuvia/internal/auth/domain"
	"github.com/menuvia/menuvia/internal/auth/session"
	"github.com/menuvia/menuvia/internal/config"
	"github.com/menuvia/menuvia/internal/gateway"
	obsmetrics "github.com/menuvia/menuvia/internal/observability/metrics"
	"github.com/menuvia/menuvia/internal/payment"
	paymentdomain "github.com/menuvia/menuvia/internal/payment/domain"
	paymentservice "github.com/menuvia/menuvia/internal/payment/service"
	"github.com/menuvia/menuvia/internal/plan"
	plandomain "github.com/menuvia/menuvia/internal/plan/domain"
	"github.com/menuvia/menuvia/internal/restaurant"
	"github.com/menuvia/menuvia/internal/scheduler"
	"github.com/menuvia/menuvia/internal/subscription"
	subscriptiondomain "github.com/menuvia/menuvia/internal/subscription/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	auth.Module,
	session.Module,
	gateway.Module,
	plan.Module,
	restaurant.Module,
	subscription.Module,
	payment.Module,
	scheduler.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, obsMetrics *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(obsmetrics.GinMiddleware(obsMetrics))
	r.Use(AuditContextMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, obsMetrics *obsmetrics.Metrics) *gin.Engine {
	return NewEngine(log, obsMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	authsvc         authdomain.Service
	sessions        *session.Manager
	planSvc         plandomain.Service
	subscriptionSvc subscriptiondomain.Service
	webhookSvc      paymentdomain.Service
	paymentSvc      *paymentservice.Service
	scheduler       *scheduler.Scheduler
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Authsvc         authdomain.Service
	Sessions        *session.Manager
	PlanSvc         plandomain.Service
	SubscriptionSvc subscriptiondomain.Service
	WebhookSvc      paymentdomain.Service
	PaymentSvc      *paymentservice.Service
	Scheduler       *scheduler.Scheduler
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		authsvc:         p.Authsvc,
		sessions:        p.Sessions,
		planSvc:         p.PlanSvc,
		subscriptionSvc: p.SubscriptionSvc,
		webhookSvc:      p.WebhookSvc,
		paymentSvc:      p.PaymentSvc,
		scheduler:       p.Scheduler,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()
	svc.registerInternalRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/billing/plans", s.ListPlans)
	api.POST("/auth/logout", s.Logout)

	billing := api.Group("/billing", s.AuthRequired())
	{
		billing.POST("/subscriptions", s.CreateSubscription)
		billing.POST("/subscriptions/verify", s.VerifyPayment)
		billing.POST("/subscriptions/cancel", s.CancelSubscription)
		billing.GET("/subscriptions/status", s.GetSubscriptionStatus)
		billing.GET("/transactions", s.ListTransactions)
	}
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/gateway", s.HandleGatewayWebhook)
}

func (s *Server) registerInternalRoutes() {
	internal := s.engine.Group("/internal", s.CronOrAdminRequired())
	{
		internal.POST("/expiry-sweep", s.RunExpirySweep)
	}
}
