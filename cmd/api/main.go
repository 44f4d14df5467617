package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/adresconsulta/eps-api/internal/api"
	"github.com/adresconsulta/eps-api/internal/config"
	"github.com/adresconsulta/eps-api/internal/logger"
	"github.com/adresconsulta/eps-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	// Import docs for Swagger
	_ "github.com/adresconsulta/eps-api/docs"
)

// @title ADRES EPS Consultation API
// @version 1.0.0
// @description Automated affiliation queries against the ADRES BDUA portal with operator-assisted CAPTCHA resolution

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

// @securityDefinitions.apikey AdminKeyAuth
// @in header
// @name X-Admin-Key

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.New(cfg.Log.Level, cfg.Log.Format)
	logger.Info("Starting ADRES EPS API Server...")

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := services.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize services: %v", err)
	}

	serveErr := api.Serve(ctx, cfg, logger, container)

	if err := container.Close(); err != nil {
		logger.WithError(err).Warn("Service shutdown incomplete")
	}
	if serveErr != nil {
		logger.WithError(serveErr).Error("Server stopped with error")
		os.Exit(1)
	}
}
