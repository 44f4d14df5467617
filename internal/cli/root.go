// Package cli implements the consulta command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/adresconsulta/eps-api/internal/config"
	"github.com/adresconsulta/eps-api/internal/logger"
	"github.com/adresconsulta/eps-api/internal/services"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	envFile  string
	logLevel string
)

// openQueries builds the query service for the one-shot commands. Tests
// replace it with a fake.
var openQueries = func(ctx context.Context) (services.QueryServiceInterface, func() error, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	// one-shot runs always ask the operator in this terminal
	cfg.Captcha.PromptMode = config.PromptTerminal

	container, err := services.NewContainer(ctx, cfg, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	return container.Queries, container.Close, nil
}

var rootCmd = &cobra.Command{
	Use:   "consulta",
	Short: "Query EPS affiliation on the ADRES portal",
	Long: `Drives the ADRES BDUA portal to look up a person's health insurer
affiliation. CAPTCHAs go to the configured solving service first and to
the operator when the service fails.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL")
}

// Execute runs the root command; cancelling ctx stops running queries
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads configuration and builds a logger writing to stderr so
// command output on stdout stays clean.
func loadConfig() (*config.Config, *logrus.Logger, error) {
	if envFile != "" {
		// a missing file just means the environment is used as is
		_ = godotenv.Load(envFile)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, logger.NewWithOutput(cfg.Log.Level, cfg.Log.Format, os.Stderr), nil
}
