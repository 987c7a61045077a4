package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/repuestos/internal/clock"
	"github.com/smallbiznis/repuestos/internal/config"
	"github.com/smallbiznis/repuestos/internal/observability"
	obsmiddleware "github.com/smallbiznis/repuestos/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/repuestos/internal/observability/metrics"
	obstracing "github.com/smallbiznis/repuestos/internal/observability/tracing"
	productdomain "github.com/smallbiznis/repuestos/internal/product/domain"
	"github.com/smallbiznis/repuestos/internal/providers/pdf"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(obstracing.GinConfig{
		SkipPaths:       []string{"/health", "/api/health", "/metrics"},
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func run(lc fx.Lifecycle, cfg config.Config, srv *Server, log *zap.Logger) {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", httpServer.Addr))
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	clock      clock.Clock
	productSvc productdomain.Service
	pdf        pdf.Provider
	syncCfg    *config.SyncConfigHolder
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Clock      clock.Clock
	ProductSvc productdomain.Service
	PDF        pdf.Provider
	SyncCfg    *config.SyncConfigHolder `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		clock:      p.Clock,
		productSvc: p.ProductSvc,
		pdf:        p.PDF,
		syncCfg:    p.SyncCfg,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/health", health)

	// Product routes are served both bare and under /api.
	s.registerProductRoutes(s.engine.Group(""))
	s.registerProductRoutes(api)

	api.POST("/sync", s.SyncProducts)
	api.GET("/pricelist.pdf", s.DownloadPriceList)
}

func (s *Server) registerProductRoutes(r *gin.RouterGroup) {
	r.GET("/products", s.ListProducts)
	r.POST("/products", s.CreateProduct)
	r.GET("/products/:code", s.GetProduct)
	r.PATCH("/products/:code", s.UpdateProduct)
	r.DELETE("/products/:code", s.DeleteProduct)
}

func (s *Server) syncBatchSize() int {
	if s.syncCfg == nil {
		return config.DefaultSyncConfig().BatchSize
	}
	return s.syncCfg.Get().BatchSize
}
