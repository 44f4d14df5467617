package api

import (
	"context"
	"net/http"
	"time"

	"github.com/adresconsulta/eps-api/internal/api/handlers"
	"github.com/adresconsulta/eps-api/internal/api/middleware"
	"github.com/adresconsulta/eps-api/internal/config"
	"github.com/adresconsulta/eps-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Dependencies are the services the routes are served from
type Dependencies struct {
	Queries   services.QueryServiceInterface
	Artifacts services.ArtifactStore
	Sessions  handlers.Sessions
	Captcha   handlers.StatsSource
	// Prompts is nil when CAPTCHAs are answered on the terminal
	Prompts handlers.Prompts
	Health  handlers.HealthChecker
}

// FromContainer picks the route dependencies out of the service container
func FromContainer(c *services.Container) Dependencies {
	deps := Dependencies{
		Queries:   c.Queries,
		Artifacts: c.Artifacts,
		Sessions:  c.Sessions,
		Captcha:   c.Captcha,
		Health:    c,
	}
	if c.Prompts != nil {
		deps.Prompts = c.Prompts
	}
	return deps
}

// Server represents the HTTP server
type Server struct {
	Router  *gin.Engine
	config  *config.Config
	logger  *logrus.Logger
	deps    Dependencies
	limiter *middleware.RateLimiter
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, logger *logrus.Logger, container *services.Container) *Server {
	return newServer(cfg, logger, FromContainer(container))
}

func newServer(cfg *config.Config, logger *logrus.Logger, deps Dependencies) *Server {
	server := &Server{
		config:  cfg,
		logger:  logger,
		deps:    deps,
		limiter: middleware.NewRateLimiter(cfg.Security.RateLimit),
	}

	server.setupRouter()
	return server
}

// Cleanup evicts idle rate limiter clients until ctx ends
func (s *Server) Cleanup(ctx context.Context) {
	s.limiter.Cleanup(ctx)
}

// setupRouter configures the router with all routes and middleware
func (s *Server) setupRouter() {
	s.Router = gin.New()
	s.Router.HandleMethodNotAllowed = true
	s.Router.MaxMultipartMemory = s.config.Batch.MaxUploadSize

	// RequestID first so every later middleware can log it
	s.Router.Use(middleware.RequestID())
	s.Router.Use(middleware.Logger(s.logger))
	s.Router.Use(middleware.Recovery(s.logger))
	s.Router.Use(middleware.CORS(s.config.Security.CORS))
	s.Router.Use(middleware.Security())

	healthHandler := handlers.NewHealthHandler(s.deps.Health, s.logger)
	s.Router.GET("/health", healthHandler.GetHealth)
	s.Router.GET("/health/ready", healthHandler.GetReadiness)
	s.Router.GET("/health/live", healthHandler.GetLiveness)

	metricsHandler := handlers.NewMetricsHandler(s.deps.Queries, s.deps.Sessions, s.deps.Captcha, s.deps.Prompts, s.logger)
	s.Router.GET("/metrics", metricsHandler.GetMetrics)

	if s.config.Server.Environment != "production" {
		s.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
		s.Router.GET("/", func(c *gin.Context) {
			c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
		})
	}

	v1 := s.Router.Group("/api/v1")
	v1.Use(s.limiter.Middleware())
	{
		queryHandler := handlers.NewQueryHandler(s.deps.Queries, s.logger)
		queries := v1.Group("/queries")
		{
			queries.POST("", queryHandler.Create)
			queries.GET("/:id", queryHandler.Get)
			queries.DELETE("/:id", queryHandler.Delete)
		}

		batchHandler := handlers.NewBatchHandler(s.deps.Queries, s.deps.Artifacts, s.config.Batch.MaxUploadSize, s.logger)
		batches := v1.Group("/batches")
		{
			batches.POST("", batchHandler.Create)
			batches.GET("/:id", batchHandler.Get)
			batches.GET("/:id/download", batchHandler.Download)
		}

		artifactHandler := handlers.NewArtifactHandler(s.deps.Artifacts, s.logger)
		v1.GET("/artifacts/:name/:kind", artifactHandler.Get)

		// Operators answer CAPTCHAs here unless the terminal prompter is in use
		if s.deps.Prompts != nil {
			captchaHandler := handlers.NewCaptchaHandler(s.deps.Prompts, s.logger)
			captchas := v1.Group("/captchas")
			{
				captchas.GET("", captchaHandler.List)
				captchas.GET("/:id/image", captchaHandler.Image)
				captchas.POST("/:id/answer", captchaHandler.Answer)
				captchas.DELETE("/:id", captchaHandler.Cancel)
			}
		}

		browserHandler := handlers.NewBrowserHandler(s.deps.Sessions, s.logger)
		v1.GET("/browser/health", browserHandler.GetHealth)
		browser := v1.Group("/browser")
		browser.Use(middleware.AdminAuth(s.config.Security.AdminKey))
		{
			browser.GET("/stats", browserHandler.GetStats)
			browser.POST("/restart", browserHandler.Restart)
		}
	}

	s.Router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Not Found",
			"message":   "The requested resource was not found",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
		})
	})

	s.Router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error":     "Method Not Allowed",
			"message":   "The requested method is not allowed for this resource",
			"timestamp": time.Now(),
			"path":      c.Request.URL.Path,
			"method":    c.Request.Method,
		})
	})
}
