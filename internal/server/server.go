package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/cliprail/internal/accrual"
	"github.com/smallbiznis/cliprail/internal/clip"
	clipdomain "github.com/smallbiznis/cliprail/internal/clip/domain"
	"github.com/smallbiznis/cliprail/internal/config"
	"github.com/smallbiznis/cliprail/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/cliprail/internal/dashboard/domain"
	"github.com/smallbiznis/cliprail/internal/ledger"
	ledgerdomain "github.com/smallbiznis/cliprail/internal/ledger/domain"
	"github.com/smallbiznis/cliprail/internal/moderation"
	moderationdomain "github.com/smallbiznis/cliprail/internal/moderation/domain"
	"github.com/smallbiznis/cliprail/internal/notify"
	"github.com/smallbiznis/cliprail/internal/observability"
	obsmiddleware "github.com/smallbiznis/cliprail/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/cliprail/internal/observability/metrics"
	obstracing "github.com/smallbiznis/cliprail/internal/observability/tracing"
	"github.com/smallbiznis/cliprail/internal/offer"
	offerdomain "github.com/smallbiznis/cliprail/internal/offer/domain"
	"github.com/smallbiznis/cliprail/internal/payout"
	"github.com/smallbiznis/cliprail/internal/ratelimit"
	"github.com/smallbiznis/cliprail/internal/scheduler"
	"github.com/smallbiznis/cliprail/internal/stats"
	"github.com/smallbiznis/cliprail/internal/user"
	userdomain "github.com/smallbiznis/cliprail/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Domains is everything the HTTP surface and the accrual cycle need beside
// the core infrastructure.
var Domains = fx.Options(
	ratelimit.Module,
	notify.Module,
	stats.Module,
	user.Module,
	offer.Module,
	clip.Module,
	ledger.Module,
	payout.Module,
	moderation.Module,
	dashboard.Module,
	accrual.Module,
)

var Module = fx.Module("http.server",
	Domains,
	scheduler.Providers,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RunHTTP),
)

// cycleTrigger runs one accrual cycle on demand.
type cycleTrigger interface {
	RunAccrualCycle(ctx context.Context) (accrual.CycleResult, error)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	registerValidatorTagNames()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log = log.Named("http.server")

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
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
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	userSvc       userdomain.Service
	offerSvc      offerdomain.Service
	clipSvc       clipdomain.Service
	moderationSvc moderationdomain.Service
	ledgerSvc     ledgerdomain.Service
	dashboardSvc  dashboarddomain.Service
	accrual       cycleTrigger
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	UserSvc       userdomain.Service
	OfferSvc      offerdomain.Service
	ClipSvc       clipdomain.Service
	ModerationSvc moderationdomain.Service
	LedgerSvc     ledgerdomain.Service
	DashboardSvc  dashboarddomain.Service

	Scheduler *scheduler.Scheduler `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		userSvc:       p.UserSvc,
		offerSvc:      p.OfferSvc,
		clipSvc:       p.ClipSvc,
		moderationSvc: p.ModerationSvc,
		ledgerSvc:     p.LedgerSvc,
		dashboardSvc:  p.DashboardSvc,
	}
	if p.Scheduler != nil {
		svc.accrual = p.Scheduler
	}
	return svc
}

func RegisterRoutes(s *Server) {
	s.RegisterAPIRoutes()
	s.RegisterAdminRoutes()
	s.registerFallback()
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api")

	// The front door registers users before it can act as them.
	api.POST("/users", s.RegisterUser)

	authed := api.Group("", s.UserRequired())
	{
		authed.GET("/me", s.Me)
		authed.GET("/me/dashboard", s.MyDashboard)
		authed.GET("/me/transactions", s.MyTransactions)
		authed.POST("/me/withdrawals", s.RequestWithdrawal)

		// -------- Offers --------
		authed.GET("/offers", s.ListOffers)
		authed.GET("/offers/:id", s.GetOffer)
		authed.POST("/offers/:id/join", s.JoinOffer)

		// -------- Clips --------
		authed.POST("/clips", s.SubmitClip)
		authed.GET("/clips", s.ListMyClips)
		authed.GET("/clips/:id", s.GetClip)
	}
}

func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/admin", s.AdminRequired())

	admin.GET("/overview", s.GetOverview)

	// -------- Offers --------
	admin.POST("/offers", s.CreateOffer)
	admin.POST("/offers/:id/pause", s.PauseOffer)
	admin.POST("/offers/:id/resume", s.ResumeOffer)
	admin.GET("/offers/:id/summary", s.GetOfferSummary)

	// -------- Moderation --------
	admin.GET("/clips", s.ListClips)
	admin.POST("/clips/:id/approve", s.ApproveClip)
	admin.POST("/clips/:id/reject", s.RejectClip)

	// -------- Accrual --------
	admin.POST("/accrual/run", s.RunAccrual)

	// -------- Ledger --------
	admin.POST("/withdrawals/:id/complete", s.CompleteWithdrawal)
	admin.POST("/withdrawals/:id/reject", s.RejectWithdrawal)
	admin.GET("/users/:id/reconcile", s.ReconcileUser)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
