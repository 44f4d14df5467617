package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/adresconsulta/eps-api/internal/artifacts"
	"github.com/adresconsulta/eps-api/internal/browser"
	"github.com/adresconsulta/eps-api/internal/captcha"
	"github.com/adresconsulta/eps-api/internal/config"
	"github.com/adresconsulta/eps-api/internal/navigator"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Container holds all service dependencies
type Container struct {
	config *config.Config
	logger *logrus.Logger

	Sessions  *browser.SessionFactory
	Captcha   *captcha.Resolver
	Prompts   *captcha.WebPrompter
	Artifacts *artifacts.Store
	Store     JobStore
	Events    Publisher
	Queries   *QueryService

	closeArtifacts func() error
}

// NewContainer creates a new service container
func NewContainer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	c := &Container{
		config: cfg,
		logger: logger,
	}

	c.Store = c.initStore(ctx)

	files, closeFiles, err := artifacts.New(ctx, cfg.Artifacts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize artifacts: %w", err)
	}
	c.Artifacts, c.closeArtifacts = files, closeFiles

	c.Events = c.initEvents()
	c.Sessions = browser.NewSessionFactory(cfg.Browser, logger)
	c.Captcha = captcha.NewResolver(c.initSolver(), c.initPrompter(), c.locateOptions(), logger)

	injector := browser.NewInjector(logger)
	injector.CharDelay = cfg.Portal.CharDelay
	portal := navigator.NewWebNavigator(navigator.OptionsFromConfig(cfg.Portal), injector, logger)

	runner := NewRunner(c.Sessions, portal, c.Captcha, c.Artifacts, c.Store, c.Events, logger)
	batches := NewBatchProcessor(runner, c.Store, c.Events, c.Artifacts, cfg.Batch.RowPause, logger)
	c.Queries = NewQueryService(runner, batches, c.Store, logger)

	return c, nil
}

func (c *Container) locateOptions() browser.LocateOptions {
	return navigator.OptionsFromConfig(c.config.Portal).Locate
}

// initStore connects to Redis when configured and falls back to memory
// when it is unreachable.
func (c *Container) initStore(ctx context.Context) JobStore {
	if c.config.Storage.Backend != config.BackendRedis {
		c.logger.Info("Job records kept in memory")
		return NewMemoryStore(c.logger)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", c.config.Redis.Host, c.config.Redis.Port),
		Password:     c.config.Redis.Password,
		DB:           c.config.Redis.DB,
		PoolSize:     c.config.Redis.PoolSize,
		DialTimeout:  c.config.Redis.DialTimeout,
		ReadTimeout:  c.config.Redis.ReadTimeout,
		WriteTimeout: c.config.Redis.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		c.logger.WithError(err).Warn("Redis connection failed, keeping job records in memory")
		_ = client.Close()
		return NewMemoryStore(c.logger)
	}

	c.logger.Info("Redis connection established")
	return NewRedisStore(client, c.config.Redis.KeyPrefix, c.config.Storage.Retention, c.logger)
}

func (c *Container) initEvents() Publisher {
	publishers := MultiPublisher{NewLogPublisher(c.logger)}
	if c.config.Events.NATSURL == "" {
		return publishers
	}

	nc, err := NewNATSPublisher(c.config.Events.NATSURL, c.config.Events.Subject, c.logger)
	if err != nil {
		c.logger.WithError(err).Warn("NATS unavailable, job events only logged")
		return publishers
	}
	c.logger.WithField("subject", c.config.Events.Subject).Info("Publishing job events to NATS")
	return append(publishers, nc)
}

func (c *Container) initSolver() captcha.Solver {
	if !c.config.SolverEnabled() {
		c.logger.Info("No CAPTCHA solver configured, every challenge goes to the operator")
		return nil
	}

	cc := c.config.Captcha
	switch cc.Provider {
	case config.ProviderSolveCaptcha:
		return captcha.NewSolveCaptcha(captcha.SolveCaptchaConfig{
			APIKey:       cc.APIKey,
			BaseURL:      cc.BaseURL,
			MaxPolls:     cc.MaxPolls,
			PollInterval: cc.PollInterval,
			HTTPTimeout:  cc.HTTPTimeout,
		}, c.logger)
	default:
		return captcha.NewAntiCaptcha(captcha.AntiCaptchaConfig{
			APIKey:       cc.APIKey,
			BaseURL:      cc.BaseURL,
			MaxPolls:     cc.MaxPolls,
			PollInterval: cc.PollInterval,
			HTTPTimeout:  cc.HTTPTimeout,
		}, c.logger)
	}
}

func (c *Container) initPrompter() captcha.Prompter {
	if c.config.Captcha.PromptMode == config.PromptTerminal {
		return captcha.NewTerminalPrompter(c.config.Artifacts.OutputDir, os.Stdin, os.Stdout, c.logger)
	}
	c.Prompts = captcha.NewWebPrompter(c.config.Captcha.PromptTimeout, c.logger)
	return c.Prompts
}

// Close stops running jobs first, then releases every backend
func (c *Container) Close() error {
	var errs []error

	if c.Queries != nil {
		if err := c.Queries.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop queries: %w", err))
		}
	}
	if c.Sessions != nil {
		if err := c.Sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser sessions: %w", err))
		}
	}
	if c.Events != nil {
		if err := c.Events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close job store: %w", err))
		}
	}
	if c.closeArtifacts != nil {
		if err := c.closeArtifacts(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close artifact storage: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Health checks the health of all services
func (c *Container) Health() map[string]interface{} {
	health := map[string]interface{}{
		"store":   c.Store.Health(),
		"browser": c.Sessions.Health(),
		"queries": c.Queries.Health(),
		"captcha": map[string]interface{}{"status": "healthy", "stats": c.Captcha.Stats()},
	}
	return health
}

// GetConfig returns the configuration
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetLogger returns the logger
func (c *Container) GetLogger() *logrus.Logger {
	return c.logger
}
