package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `json:"server"`
	Redis     RedisConfig     `json:"redis"`
	Log       LogConfig       `json:"log"`
	Security  SecurityConfig  `json:"security"`
	Browser   BrowserConfig   `json:"browser"`
	Portal    PortalConfig    `json:"portal"`
	Captcha   CaptchaConfig   `json:"captcha"`
	Storage   StorageConfig   `json:"storage"`
	Artifacts ArtifactsConfig `json:"artifacts"`
	Events    EventsConfig    `json:"events"`
	Batch     BatchConfig     `json:"batch"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         int    `json:"port"`
	Environment  string `json:"environment"`
	ReadTimeout  int    `json:"read_timeout"`
	WriteTimeout int    `json:"write_timeout"`
	IdleTimeout  int    `json:"idle_timeout"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	Password     string        `json:"password"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	KeyPrefix    string        `json:"key_prefix"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// SecurityConfig holds security configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
	AdminKey  string          `json:"-"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int           `json:"requests_per_minute"`
	BurstSize         int           `json:"burst_size"`
	CleanupInterval   time.Duration `json:"cleanup_interval"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
}

// BrowserConfig holds browser automation configuration
type BrowserConfig struct {
	Headless       bool          `json:"headless"`
	ExecPath       string        `json:"exec_path"`
	UserAgent      string        `json:"user_agent"`
	WindowWidth    int           `json:"window_width"`
	WindowHeight   int           `json:"window_height"`
	StartupTimeout time.Duration `json:"startup_timeout"`
	CloseDelay     time.Duration `json:"close_delay"`
	MaxSessions    int           `json:"max_sessions"`
}

// PortalConfig holds the ADRES portal locations and wait budgets
type PortalConfig struct {
	URL            string        `json:"url"`
	LocateTimeout  time.Duration `json:"locate_timeout"`
	CaptchaTimeout time.Duration `json:"captcha_timeout"`
	ResultsTimeout time.Duration `json:"results_timeout"`
	WindowTimeout  time.Duration `json:"window_timeout"`
	PollInterval   time.Duration `json:"poll_interval"`
	MaxFrameDepth  int           `json:"max_frame_depth"`
	CharDelay      time.Duration `json:"char_delay"`
}

// CaptchaConfig holds CAPTCHA solving configuration
type CaptchaConfig struct {
	Provider      string        `json:"provider"`
	APIKey        string        `json:"-"`
	BaseURL       string        `json:"base_url"`
	MaxPolls      int           `json:"max_polls"`
	PollInterval  time.Duration `json:"poll_interval"`
	HTTPTimeout   time.Duration `json:"http_timeout"`
	PromptMode    string        `json:"prompt_mode"`
	PromptTimeout time.Duration `json:"prompt_timeout"`
}

// StorageConfig holds job store configuration
type StorageConfig struct {
	Backend       string        `json:"backend"`
	Retention     time.Duration `json:"retention"`
	SweepInterval time.Duration `json:"sweep_interval"`
}

// ArtifactsConfig holds result artifact storage configuration
type ArtifactsConfig struct {
	Backend   string `json:"backend"`
	OutputDir string `json:"output_dir"`
	DebugDir  string `json:"debug_dir"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
}

// EventsConfig holds job event publishing configuration
type EventsConfig struct {
	NATSURL string `json:"nats_url"`
	Subject string `json:"subject"`
}

// BatchConfig holds batch processing configuration
type BatchConfig struct {
	RowPause      time.Duration `json:"row_pause"`
	MaxUploadSize int64         `json:"max_upload_size"`
}

// Supported backends and modes
const (
	ProviderAntiCaptcha  = "anticaptcha"
	ProviderSolveCaptcha = "solvecaptcha"
	ProviderNone         = "none"

	PromptTerminal = "terminal"
	PromptWeb      = "web"

	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendFS     = "fs"
	BackendGCS    = "gcs"
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvAsInt("PORT", 8080),
			Environment:  getEnv("ENVIRONMENT", "development"),
			ReadTimeout:  getEnvAsInt("READ_TIMEOUT", 30),
			WriteTimeout: getEnvAsInt("WRITE_TIMEOUT", 60),
			IdleTimeout:  getEnvAsInt("IDLE_TIMEOUT", 60),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout:  time.Duration(getEnvAsInt("REDIS_DIAL_TIMEOUT", 5)) * time.Second,
			ReadTimeout:  time.Duration(getEnvAsInt("REDIS_READ_TIMEOUT", 3)) * time.Second,
			WriteTimeout: time.Duration(getEnvAsInt("REDIS_WRITE_TIMEOUT", 3)) * time.Second,
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "adres:"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 120),
				BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 20),
				CleanupInterval:   time.Duration(getEnvAsInt("RATE_LIMIT_CLEANUP", 60)) * time.Second,
			},
			CORS: CORSConfig{
				AllowedOrigins:   getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
				AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
				AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "X-Request-ID", "X-Admin-Key"},
				AllowCredentials: false,
			},
			AdminKey: getEnv("ADMIN_API_KEY", ""),
		},
		Browser: BrowserConfig{
			Headless:       getEnvAsBool("BROWSER_HEADLESS", true),
			ExecPath:       getEnv("BROWSER_EXEC_PATH", ""),
			UserAgent:      getEnv("BROWSER_USER_AGENT", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/139.0.0.0 Safari/537.36"),
			WindowWidth:    getEnvAsInt("BROWSER_WINDOW_WIDTH", 1920),
			WindowHeight:   getEnvAsInt("BROWSER_WINDOW_HEIGHT", 1080),
			StartupTimeout: time.Duration(getEnvAsInt("BROWSER_STARTUP_TIMEOUT", 30)) * time.Second,
			CloseDelay:     time.Duration(getEnvAsInt("BROWSER_CLOSE_DELAY_MS", 0)) * time.Millisecond,
			MaxSessions:    getEnvAsInt("BROWSER_MAX_SESSIONS", 2),
		},
		Portal: PortalConfig{
			URL:            getEnv("PORTAL_URL", "https://www.adres.gov.co/consulte-su-eps"),
			LocateTimeout:  time.Duration(getEnvAsInt("PORTAL_LOCATE_TIMEOUT", 20)) * time.Second,
			CaptchaTimeout: time.Duration(getEnvAsInt("PORTAL_CAPTCHA_TIMEOUT", 15)) * time.Second,
			ResultsTimeout: time.Duration(getEnvAsInt("PORTAL_RESULTS_TIMEOUT", 10)) * time.Second,
			WindowTimeout:  time.Duration(getEnvAsInt("PORTAL_WINDOW_TIMEOUT", 20)) * time.Second,
			PollInterval:   time.Duration(getEnvAsInt("PORTAL_POLL_INTERVAL_MS", 500)) * time.Millisecond,
			MaxFrameDepth:  getEnvAsInt("PORTAL_MAX_FRAME_DEPTH", 5),
			CharDelay:      time.Duration(getEnvAsInt("PORTAL_CHAR_DELAY_MS", 100)) * time.Millisecond,
		},
		Captcha: CaptchaConfig{
			Provider:      strings.ToLower(getEnv("CAPTCHA_PROVIDER", ProviderAntiCaptcha)),
			APIKey:        getEnv("CAPTCHA_API_KEY", getEnv("ANTICAPTCHA_API_KEY", "")),
			BaseURL:       getEnv("CAPTCHA_BASE_URL", ""),
			MaxPolls:      getEnvAsInt("CAPTCHA_MAX_POLLS", 30),
			PollInterval:  time.Duration(getEnvAsInt("CAPTCHA_POLL_INTERVAL", 2)) * time.Second,
			HTTPTimeout:   time.Duration(getEnvAsInt("CAPTCHA_HTTP_TIMEOUT", 30)) * time.Second,
			PromptMode:    strings.ToLower(getEnv("CAPTCHA_PROMPT", PromptWeb)),
			PromptTimeout: time.Duration(getEnvAsInt("CAPTCHA_PROMPT_TIMEOUT", 0)) * time.Second,
		},
		Storage: StorageConfig{
			Backend:       strings.ToLower(getEnv("JOB_STORE", BackendMemory)),
			Retention:     time.Duration(getEnvAsInt("JOB_RETENTION_HOURS", 24)) * time.Hour,
			SweepInterval: time.Duration(getEnvAsInt("JOB_SWEEP_INTERVAL", 600)) * time.Second,
		},
		Artifacts: ArtifactsConfig{
			Backend:   strings.ToLower(getEnv("ARTIFACTS_BACKEND", BackendFS)),
			OutputDir: getEnv("OUTPUT_DIR", "resultados"),
			DebugDir:  getEnv("DEBUG_DIR", "debug"),
			Bucket:    getEnv("ARTIFACTS_BUCKET", ""),
			Prefix:    getEnv("ARTIFACTS_PREFIX", ""),
		},
		Events: EventsConfig{
			NATSURL: getEnv("NATS_URL", ""),
			Subject: getEnv("NATS_SUBJECT", "adres.consultas"),
		},
		Batch: BatchConfig{
			RowPause:      time.Duration(getEnvAsInt("BATCH_ROW_PAUSE_MS", 1000)) * time.Millisecond,
			MaxUploadSize: int64(getEnvAsInt("BATCH_MAX_UPLOAD_MB", 16)) << 20,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the selected backends and modes are coherent
func (c *Config) Validate() error {
	switch c.Captcha.Provider {
	case ProviderAntiCaptcha, ProviderSolveCaptcha, ProviderNone:
	default:
		return fmt.Errorf("unsupported CAPTCHA_PROVIDER %q", c.Captcha.Provider)
	}

	switch c.Captcha.PromptMode {
	case PromptTerminal, PromptWeb:
	default:
		return fmt.Errorf("unsupported CAPTCHA_PROMPT %q", c.Captcha.PromptMode)
	}

	switch c.Storage.Backend {
	case BackendMemory, BackendRedis:
	default:
		return fmt.Errorf("unsupported JOB_STORE %q", c.Storage.Backend)
	}

	switch c.Artifacts.Backend {
	case BackendFS:
	case BackendGCS:
		if c.Artifacts.Bucket == "" {
			return fmt.Errorf("ARTIFACTS_BUCKET is required when ARTIFACTS_BACKEND=gcs")
		}
	default:
		return fmt.Errorf("unsupported ARTIFACTS_BACKEND %q", c.Artifacts.Backend)
	}

	if c.Portal.URL == "" {
		return fmt.Errorf("PORTAL_URL is required")
	}
	if c.Portal.MaxFrameDepth < 0 {
		return fmt.Errorf("PORTAL_MAX_FRAME_DEPTH must not be negative")
	}

	return nil
}

// SolverEnabled reports whether an automated CAPTCHA solver should be wired
func (c *Config) SolverEnabled() bool {
	return c.Captcha.Provider != ProviderNone && c.Captcha.APIKey != ""
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
