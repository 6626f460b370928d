package server

import (
	"context"
	"net/http"

	auditdomain "github.com/creditrail/creditgate/internal/audit/domain"
	"github.com/creditrail/creditgate/internal/cache"
	"github.com/creditrail/creditgate/internal/config"
	creditdomain "github.com/creditrail/creditgate/internal/credit/domain"
	"github.com/creditrail/creditgate/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	CreditSvc  creditdomain.Service
	AuditSvc   auditdomain.Service
	Identities cache.IdentityCache
	Limiter    *ratelimit.CheckLimiter `optional:"true"`
	Registry   *prometheus.Registry
}

type Server struct {
	cfg        config.Config
	log        *zap.Logger
	creditSvc  creditdomain.Service
	auditSvc   auditdomain.Service
	identities cache.IdentityCache
	limiter    *ratelimit.CheckLimiter
	registry   *prometheus.Registry
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:        p.Config,
		log:        p.Log.Named("server"),
		creditSvc:  p.CreditSvc,
		auditSvc:   p.AuditSvc,
		identities: p.Identities,
		limiter:    p.Limiter,
		registry:   p.Registry,
	}
}

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(RequestIDMiddleware())
	engine.Use(ErrorHandlingMiddleware())
	return engine
}

func (s *Server) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/healthz", s.Health)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	v1 := engine.Group("/v1")
	{
		v1.POST("/credit/check", s.CheckCredit)
		v1.POST("/charges", s.CreateCharge)
		v1.POST("/credits", s.AddCredits)

		v1.POST("/accounts", s.GetOrCreateAccount)
		v1.GET("/accounts", s.GetAccount)
		v1.GET("/accounts/history", s.History)
		v1.POST("/accounts/status", s.SetStatus)

		v1.GET("/audit/checks", s.ListCreditChecks)
	}
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": s.cfg.AppName,
		"version": s.cfg.AppVersion,
	})
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, engine *gin.Engine, s *Server) {
	s.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(
		NewEngine,
		NewServer,
	),
	fx.Invoke(RunHTTP),
)
