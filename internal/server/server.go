package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/quotaapp/searchd/internal/apikey"
	apikeydomain "github.com/quotaapp/searchd/internal/apikey/domain"
	"github.com/quotaapp/searchd/internal/config"
	"github.com/quotaapp/searchd/internal/observability"
	obslogger "github.com/quotaapp/searchd/internal/observability/logger"
	obsmetrics "github.com/quotaapp/searchd/internal/observability/metrics"
	obstracing "github.com/quotaapp/searchd/internal/observability/tracing"
	"github.com/quotaapp/searchd/internal/querylog"
	"github.com/quotaapp/searchd/internal/quota"
	quotadomain "github.com/quotaapp/searchd/internal/quota/domain"
	"github.com/quotaapp/searchd/internal/ratelimit"
	"github.com/quotaapp/searchd/internal/search"
	searchdomain "github.com/quotaapp/searchd/internal/search/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	apikey.Module,
	querylog.Module,
	quota.Module,
	search.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
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

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
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
	engine    *gin.Engine
	cfg       config.Config
	db        *gorm.DB
	apiKeySvc apikeydomain.Service
	quotaSvc  quotadomain.Service
	searchSvc searchdomain.Service
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	DB        *gorm.DB
	APIKeySvc apikeydomain.Service
	QuotaSvc  quotadomain.Service
	SearchSvc searchdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:    p.Gin,
		cfg:       p.Cfg,
		db:        p.DB,
		apiKeySvc: p.APIKeySvc,
		quotaSvc:  p.QuotaSvc,
		searchSvc: p.SearchSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/usage", s.APIKeyRequired(), s.GetUsage)
	api.POST("/search", s.APIKeyRequired(), s.Search)

	// Key management is not exposed to API-key callers; it is an
	// operator surface.
	if !s.cfg.IsProduction() {
		api.POST("/keys", s.CreateAPIKey)
		api.DELETE("/keys/:keyId", s.RevokeAPIKey)
	}
}
