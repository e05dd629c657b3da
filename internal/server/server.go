package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/keygate/internal/adminauth"
	"github.com/smallbiznis/keygate/internal/authorization"
	"github.com/smallbiznis/keygate/internal/config"
	"github.com/smallbiznis/keygate/internal/license"
	licensedomain "github.com/smallbiznis/keygate/internal/license/domain"
	"github.com/smallbiznis/keygate/internal/observability"
	obsmiddleware "github.com/smallbiznis/keygate/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/keygate/internal/observability/metrics"
	obstracing "github.com/smallbiznis/keygate/internal/observability/tracing"
	"github.com/smallbiznis/keygate/internal/payment"
	paymentdomain "github.com/smallbiznis/keygate/internal/payment/domain"
	"github.com/smallbiznis/keygate/internal/product"
	productdomain "github.com/smallbiznis/keygate/internal/product/domain"
	"github.com/smallbiznis/keygate/internal/ratelimit"
	"github.com/smallbiznis/keygate/internal/subscription"
	"github.com/smallbiznis/keygate/internal/upload"
	uploaddomain "github.com/smallbiznis/keygate/internal/upload/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	adminauth.Module,
	license.Module,
	product.Module,
	subscription.Module,
	payment.Module,
	upload.Module,
	ratelimit.Module,
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
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
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
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	licenseSvc licensedomain.Service
	productSvc productdomain.Service
	uploadSvc  uploaddomain.Service
	paymentSvc paymentdomain.Service
	adminAuth  adminauth.Service
	authzSvc   authorization.Service
	limiter    *ratelimit.Limiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	LicenseSvc licensedomain.Service
	ProductSvc productdomain.Service
	UploadSvc  uploaddomain.Service
	PaymentSvc paymentdomain.Service
	AdminAuth  adminauth.Service
	AuthzSvc   authorization.Service
	Limiter    *ratelimit.Limiter
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		licenseSvc: p.LicenseSvc,
		productSvc: p.ProductSvc,
		uploadSvc:  p.UploadSvc,
		paymentSvc: p.PaymentSvc,
		adminAuth:  p.AdminAuth,
		authzSvc:   p.AuthzSvc,
		limiter:    p.Limiter,
	}

	svc.registerPublicRoutes()
	svc.registerAdminRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	licenses := s.engine.Group("/licenses")
	licenses.POST("/activate", s.RateLimited(ratelimit.ClassActivation), s.ActivateLicense)
	licenses.POST("/status", s.RateLimited(ratelimit.ClassGeneral), s.LicenseStatus)
	licenses.POST("/deactivate", s.RateLimited(ratelimit.ClassGeneral), s.DeactivateLicense)

	uploads := s.engine.Group("/csv-upload")
	uploads.POST("/issue", s.RateLimited(ratelimit.ClassActivation), s.IssueUploadCredential)
	uploads.GET("/list", s.RateLimited(ratelimit.ClassGeneral), s.ListUploads)
	uploads.POST("/complete", s.RateLimited(ratelimit.ClassGeneral), s.CompleteUpload)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.GET("/licenses", s.AdminRequired(authorization.ObjectLicense, authorization.ActionView), s.AdminListLicenses)
	admin.POST("/licenses", s.AdminRequired(authorization.ObjectLicense, authorization.ActionCreate), s.AdminCreateLicense)
	admin.GET("/licenses/:id", s.AdminRequired(authorization.ObjectLicense, authorization.ActionView), s.AdminGetLicense)
	admin.PATCH("/licenses/:id", s.AdminRequired(authorization.ObjectLicense, authorization.ActionUpdate), s.AdminUpdateLicense)
	admin.POST("/licenses/:id/revoke", s.AdminRequired(authorization.ObjectLicense, authorization.ActionRevoke), s.AdminRevokeLicense)

	admin.GET("/products", s.AdminRequired(authorization.ObjectProduct, authorization.ActionView), s.AdminListProducts)
	admin.POST("/products", s.AdminRequired(authorization.ObjectProduct, authorization.ActionCreate), s.AdminCreateProduct)
	admin.PATCH("/products/:id", s.AdminRequired(authorization.ObjectProduct, authorization.ActionUpdate), s.AdminUpdateProduct)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/payments/:provider", s.PaymentWebhook)
}
