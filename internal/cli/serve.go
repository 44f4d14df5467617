package cli

import (
	"fmt"

	"github.com/adresconsulta/eps-api/internal/api"
	"github.com/adresconsulta/eps-api/internal/config"
	"github.com/adresconsulta/eps-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	servePort   int
	servePrompt string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	Long: `Starts the pollable HTTP API. With the web prompt mode, CAPTCHAs the
solving service cannot read are listed under /api/v1/captchas for an
operator to answer.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "override PORT")
	serveCmd.Flags().StringVar(&servePrompt, "prompt", "", "override CAPTCHA_PROMPT (web or terminal)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if servePrompt != "" {
		cfg.Captcha.PromptMode = servePrompt
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Captcha.PromptMode == config.PromptTerminal {
		log.Warn("Terminal CAPTCHA prompts block this console while the server runs")
	}

	ctx := cmd.Context()
	container, err := services.NewContainer(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	serveErr := api.Serve(ctx, cfg, log, container)
	if err := container.Close(); err != nil {
		log.WithError(err).Warn("Service shutdown incomplete")
	}
	return serveErr
}
