package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"plantshop/internal/api/handlers"
	"plantshop/internal/api/middleware"
	"plantshop/internal/config"
	"plantshop/internal/logger"
	"plantshop/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Deps are the services the HTTP layer is wired to.
type Deps struct {
	Syncer     handlers.SyncRunner
	SyncLogs   handlers.SyncLogReader
	Products   handlers.ProductReader
	Dispatcher handlers.EventDispatcher
	// Publisher, when set, queues webhook events instead of applying them.
	Publisher handlers.EventPublisher
	DB        handlers.Pinger
}

type Server struct {
	config *config.Config
	logger *logger.Logger
	router *gin.Engine
	server *http.Server
}

func New(cfg *config.Config, log *logger.Logger, deps Deps) *Server {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())

	syncHandler := handlers.NewSyncHandler(deps.Syncer, deps.SyncLogs, log)
	webhookHandler := handlers.NewWebhookHandler(cfg.WebhookSecret, deps.Dispatcher, deps.Publisher, log)
	productHandler := handlers.NewProductHandler(deps.Products, log)
	healthHandler := handlers.NewHealthHandler(deps.DB)

	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	{
		cron := api.Group("/cron", middleware.BearerSecret(cfg.CronSecret, log))
		{
			cron.GET("/sync-inventory", syncHandler.Trigger)
			cron.POST("/sync-inventory", syncHandler.Trigger)
		}

		sync := api.Group("/sync", middleware.BearerSecret(cfg.CronSecret, log))
		{
			sync.GET("/logs", syncHandler.Logs)
		}

		webhook := api.Group("/webhook")
		{
			webhook.POST("/lightspeed", webhookHandler.Receive)
			webhook.GET("/lightspeed", webhookHandler.Status)
		}

		products := api.Group("/products")
		{
			products.GET("", productHandler.List)
			products.GET("/:slug", productHandler.Get)
		}
	}

	return &Server{
		config: cfg,
		logger: log,
		router: router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	// a full sync can outlast the usual write timeout
	writeTimeout := s.config.SyncTimeout + 30*time.Second

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the gin engine, used by the serverless entry point.
func (s *Server) Router() *gin.Engine {
	return s.router
}
