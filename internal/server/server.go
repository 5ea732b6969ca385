package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/nodeboard/nodeboard/internal/billing/domain"
	"github.com/nodeboard/nodeboard/internal/config"
	"github.com/nodeboard/nodeboard/internal/identity"
	membershipdomain "github.com/nodeboard/nodeboard/internal/membership/domain"
	projectdomain "github.com/nodeboard/nodeboard/internal/project/domain"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log.Named("http")))
	r.Use(CORS())
	r.Use(ErrorHandlingMiddleware(log.Named("http")))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger, _ *Server) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	verifier      *identity.Verifier
	projectSvc    projectdomain.Service
	membershipSvc membershipdomain.Service
	billingSvc    billingdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Verifier      *identity.Verifier
	ProjectSvc    projectdomain.Service
	MembershipSvc membershipdomain.Service
	BillingSvc    billingdomain.Service
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("server"),
		verifier:      p.Verifier,
		projectSvc:    p.ProjectSvc,
		membershipSvc: p.MembershipSvc,
		billingSvc:    p.BillingSvc,
	}

	s.registerAPIRoutes()
	s.registerWebhookRoutes()

	return s
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", s.AuthRequired())

	v1.POST("/projects", s.CreateProject)
	v1.GET("/projects/:id", s.GetProject)

	// -------- Members --------
	v1.GET("/projects/:id/members", s.ListMembers)
	v1.POST("/projects/:id/members", s.InviteMember)
	v1.PATCH("/projects/:id/members/:user_id", s.UpdateMemberRole)
	v1.DELETE("/projects/:id/members/:user_id", s.RemoveMember)

	// -------- Invitations --------
	v1.POST("/projects/:id/invitation", s.RespondToInvitation)
	v1.GET("/invitations", s.ListPendingInvitations)

	// -------- Billing --------
	v1.GET("/subscription", s.GetSubscription)
}

func (s *Server) registerWebhookRoutes() {
	hooks := s.engine.Group("/webhooks")

	hooks.POST("/:provider", s.HandleBillingWebhook)
}
