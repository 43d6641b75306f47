package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/homeaccess/internal/accesscode"
	accesscodedomain "github.com/smallbiznis/homeaccess/internal/accesscode/domain"
	"github.com/smallbiznis/homeaccess/internal/authorization"
	"github.com/smallbiznis/homeaccess/internal/claim"
	claimdomain "github.com/smallbiznis/homeaccess/internal/claim/domain"
	"github.com/smallbiznis/homeaccess/internal/config"
	"github.com/smallbiznis/homeaccess/internal/directory"
	directorydomain "github.com/smallbiznis/homeaccess/internal/directory/domain"
	"github.com/smallbiznis/homeaccess/internal/identity"
	"github.com/smallbiznis/homeaccess/internal/membership"
	membershipdomain "github.com/smallbiznis/homeaccess/internal/membership/domain"
	"github.com/smallbiznis/homeaccess/internal/notification"
	"github.com/smallbiznis/homeaccess/internal/observability"
	obsmiddleware "github.com/smallbiznis/homeaccess/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/homeaccess/internal/observability/metrics"
	obstracing "github.com/smallbiznis/homeaccess/internal/observability/tracing"
	"github.com/smallbiznis/homeaccess/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	identity.Module,
	authorization.Module,
	directory.Module,
	membership.Module,
	accesscode.Module,
	notification.Module,
	ratelimit.Module,
	claim.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
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
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	verifier    *identity.Verifier
	authzSvc    authorization.Service
	directory   directorydomain.Service
	memberships membershipdomain.Service
	codes       accesscodedomain.Service
	claims      claimdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Verifier    *identity.Verifier
	AuthzSvc    authorization.Service
	Directory   directorydomain.Service
	Memberships membershipdomain.Service
	Codes       accesscodedomain.Service
	Claims      claimdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		verifier:    p.Verifier,
		authzSvc:    p.AuthzSvc,
		directory:   p.Directory,
		memberships: p.Memberships,
		codes:       p.Codes,
		claims:      p.Claims,
	}

	svc.registerPublicRoutes()
	svc.registerClaimRoutes()
	svc.registerManagerRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	v1 := s.engine.Group("/v1")

	v1.GET("/residences/:ref", s.GetResidence)
	v1.GET("/residences/:ref/units", s.ListUnits)
	v1.POST("/claims/continuations", s.IssueContinuation)
}

func (s *Server) registerClaimRoutes() {
	v1 := s.engine.Group("/v1", s.AuthRequired())

	v1.POST("/claims/unit", s.ClaimUnit)
	v1.POST("/claims/invitation", s.RedeemInvitation)
	v1.POST("/claims/continuations/resume", s.ResumeContinuation)
	v1.GET("/me/memberships", s.ListMyMemberships)
}

func (s *Server) registerManagerRoutes() {
	v1 := s.engine.Group("/v1", s.AuthRequired())

	v1.POST("/units/:id/join-code/rotate",
		s.authorizeUnitAction(authorization.ObjectUnit, authorization.ActionUnitRotateJoinCode),
		s.RotateJoinCode,
	)

	v1.GET("/residences/:ref/invitations",
		s.authorizeResidenceAction(authorization.ObjectInvitation, authorization.ActionInvitationView),
		s.ListInvitations,
	)
	v1.POST("/residences/:ref/invitations",
		s.authorizeResidenceAction(authorization.ObjectInvitation, authorization.ActionInvitationCreate),
		s.CreateInvitation,
	)
	v1.POST("/invitations/:id/deactivate",
		s.authorizeInvitationAction(authorization.ObjectInvitation, authorization.ActionInvitationDeactivate),
		s.DeactivateInvitation,
	)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1/admin", s.AuthRequired())

	admin.POST("/residences",
		s.authorizePlatformAction(authorization.ObjectResidence, authorization.ActionResidenceCreate),
		s.CreateResidence,
	)
	admin.POST("/residences/:ref/buildings",
		s.authorizeResidenceAction(authorization.ObjectBuilding, authorization.ActionBuildingCreate),
		s.CreateBuilding,
	)
	admin.POST("/residences/:ref/units",
		s.authorizeResidenceAction(authorization.ObjectUnit, authorization.ActionUnitCreate),
		s.CreateUnit,
	)
}
