package server

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/orgkeys/internal/audit"
	auditdomain "github.com/smallbiznis/orgkeys/internal/audit/domain"
	"github.com/smallbiznis/orgkeys/internal/authorization"
	"github.com/smallbiznis/orgkeys/internal/config"
	"github.com/smallbiznis/orgkeys/internal/credential"
	credentialdomain "github.com/smallbiznis/orgkeys/internal/credential/domain"
	"github.com/smallbiznis/orgkeys/internal/invitation"
	invitationdomain "github.com/smallbiznis/orgkeys/internal/invitation/domain"
	"github.com/smallbiznis/orgkeys/internal/observability"
	obslogger "github.com/smallbiznis/orgkeys/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/orgkeys/internal/observability/metrics"
	obstracing "github.com/smallbiznis/orgkeys/internal/observability/tracing"
	"github.com/smallbiznis/orgkeys/internal/organization"
	organizationdomain "github.com/smallbiznis/orgkeys/internal/organization/domain"
	"github.com/smallbiznis/orgkeys/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	organization.Module,
	invitation.Module,
	credential.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

var registerValidatorOnce sync.Once

func NewEngine(obsCfg observability.Config, metrics *obsmetrics.Metrics) *gin.Engine {
	registerValidatorOnce.Do(useJSONFieldNames)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(metrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// useJSONFieldNames makes validation errors report the json field name.
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
}

type ginParams struct {
	fx.In

	ObsCfg  observability.Config
	Metrics *obsmetrics.Metrics `optional:"true"`
}

func registerGin(p ginParams) *gin.Engine {
	return NewEngine(p.ObsCfg, p.Metrics)
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
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	orgSvc        organizationdomain.Service
	invitationSvc invitationdomain.Service
	credentialSvc credentialdomain.Service
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	verifyLimiter *ratelimit.VerifyLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	OrgSvc        organizationdomain.Service
	InvitationSvc invitationdomain.Service
	CredentialSvc credentialdomain.Service
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	VerifyLimiter *ratelimit.VerifyLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		orgSvc:        p.OrgSvc,
		invitationSvc: p.InvitationSvc,
		credentialSvc: p.CredentialSvc,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		verifyLimiter: p.VerifyLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerServiceRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerServiceRoutes serves verifying services. They authenticate with a
// bearer credential, never with principal headers.
func (s *Server) registerServiceRoutes() {
	services := s.engine.Group("/v1/services")
	services.POST("/:scope/authorize", s.VerifyRateLimit(), s.AuthorizeService)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/v1", s.IdentityRequired())

	// -------- Organizations --------
	api.POST("/organizations", s.CreateOrganization)
	api.GET("/organizations", s.ListOrganizations)

	// -------- Invitations (caller) --------
	api.GET("/invitations", s.ListMyInvitations)
	api.POST("/invitations/:code/accept", s.AcceptInvitation)
	api.POST("/invitations/:code/decline", s.DeclineInvitation)

	api.GET("/api-tokens/scopes", s.ListAPITokenScopes)

	org := api.Group("/organizations/:orgId", s.OrgContext())
	{
		org.GET("", s.GetOrganization)
		org.DELETE("", s.DeleteOrganization)

		// -------- Members --------
		org.GET("/members", s.ListMembers)
		org.PATCH("/members/:userId", s.UpdateMember)
		org.DELETE("/members/:userId", s.RemoveMember)

		// -------- Invitations --------
		org.GET("/invitations", s.ListInvitations)
		org.POST("/invitations", s.CreateInvitation)
		org.PATCH("/invitations/:id", s.UpdateInvitation)
		org.DELETE("/invitations/:id", s.RevokeInvitation)

		// -------- API tokens --------
		org.GET("/api-tokens", s.ListAPITokens)
		org.POST("/api-tokens", s.CreateAPIToken)
		org.DELETE("/api-tokens/:id", s.DeleteAPIToken)

		org.GET("/audit-logs", s.authorizeOrgAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
