package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adresconsulta/eps-api/internal/config"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

// Opener hands out browser sessions; each job gets its own and gives it back
type Opener interface {
	Open(ctx context.Context) (Driver, error)
	Release(d Driver)
}

// SessionFactory starts a fresh Chrome process per job. Sessions are never
// reused across jobs; MaxSessions bounds how many run at once.
type SessionFactory struct {
	config config.BrowserConfig
	logger *logrus.Logger
	slots  chan struct{}

	mu     sync.Mutex
	active map[string]*ChromeDriver
	closed bool

	opened   atomic.Int64
	failures atomic.Int64
}

// NewSessionFactory creates a session factory
func NewSessionFactory(cfg config.BrowserConfig, logger *logrus.Logger) *SessionFactory {
	max := cfg.MaxSessions
	if max <= 0 {
		max = 1
	}
	return &SessionFactory{
		config: cfg,
		logger: logger,
		slots:  make(chan struct{}, max),
		active: make(map[string]*ChromeDriver),
	}
}

// Open waits for a free slot and starts a browser
func (f *SessionFactory) Open(ctx context.Context) (Driver, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, fmt.Errorf("browser factory is closed")
	}
	f.mu.Unlock()

	select {
	case f.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	d, err := f.start(ctx)
	if err != nil {
		<-f.slots
		f.failures.Add(1)
		return nil, err
	}

	f.mu.Lock()
	f.active[d.id] = d
	f.mu.Unlock()
	f.opened.Add(1)

	f.logger.WithField("browser_id", d.id).Debug("Browser session opened")
	return d, nil
}

func (f *SessionFactory) allocatorOptions() []chromedp.ExecAllocatorOption {
	width, height := f.config.WindowWidth, f.config.WindowHeight
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.WindowSize(width, height),
	}
	if f.config.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(f.config.UserAgent))
	}
	if f.config.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.config.ExecPath))
	}
	if f.config.Headless {
		opts = append(opts, chromedp.Headless)
	}
	return opts
}

func (f *SessionFactory) start(ctx context.Context) (*ChromeDriver, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), f.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	cancel := func() { browserCancel(); allocCancel() }

	timeout := f.config.StartupTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	// The first Run launches Chrome and attaches the tab for as long as the
	// context it is given lives, so it runs on browserCtx itself and the
	// startup bound cancels the whole session instead.
	timer := time.AfterFunc(timeout, cancel)
	abort := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(browserCtx)
	inTime := timer.Stop()
	aborted := !abort()
	switch {
	case aborted:
		cancel()
		return nil, fmt.Errorf("browser startup aborted: %w", context.Cause(ctx))
	case !inTime:
		cancel()
		return nil, fmt.Errorf("browser startup timed out after %s", timeout)
	case err != nil:
		cancel()
		return nil, fmt.Errorf("browser startup failed: %w", err)
	}

	startCtx, startCancel := context.WithTimeout(browserCtx, timeout)
	defer startCancel()
	stop := context.AfterFunc(ctx, startCancel)
	defer stop()

	if err := chromedp.Run(startCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, fmt.Errorf("browser startup failed: %w", err)
	}

	id := fmt.Sprintf("browser-%d", time.Now().UnixNano())
	return newChromeDriver(id, browserCtx, cancel), nil
}

// Release closes the session after the configured delay and frees its slot
func (f *SessionFactory) Release(d Driver) {
	if d == nil {
		return
	}
	if f.config.CloseDelay > 0 {
		time.Sleep(f.config.CloseDelay)
	}
	if err := d.Close(); err != nil {
		f.logger.WithError(err).Warn("Failed to close browser session")
	}

	if cd, ok := d.(*ChromeDriver); ok {
		f.mu.Lock()
		_, tracked := f.active[cd.id]
		delete(f.active, cd.id)
		f.mu.Unlock()
		if !tracked {
			return
		}
		f.logger.WithField("browser_id", cd.id).Debug("Browser session released")
	}

	select {
	case <-f.slots:
	default:
	}
}

// GetStats returns session statistics
func (f *SessionFactory) GetStats() map[string]interface{} {
	f.mu.Lock()
	active := len(f.active)
	f.mu.Unlock()

	return map[string]interface{}{
		"active_sessions": active,
		"max_sessions":    cap(f.slots),
		"total_opened":    f.opened.Load(),
		"open_failures":   f.failures.Load(),
		"headless":        f.config.Headless,
	}
}

// Health returns browser factory health status
func (f *SessionFactory) Health() map[string]interface{} {
	stats := f.GetStats()

	status := "healthy"
	opened, failures := f.opened.Load(), f.failures.Load()
	switch {
	case failures > 0 && opened == 0:
		status = "unhealthy"
	case failures > 0:
		status = "degraded"
	}

	f.mu.Lock()
	if f.closed {
		status = "unhealthy"
	}
	f.mu.Unlock()

	return map[string]interface{}{
		"status": status,
		"stats":  stats,
	}
}

// CloseAll terminates every running session; in-flight jobs fail
func (f *SessionFactory) CloseAll() int {
	f.mu.Lock()
	sessions := make([]*ChromeDriver, 0, len(f.active))
	for _, d := range f.active {
		sessions = append(sessions, d)
	}
	f.mu.Unlock()

	for _, d := range sessions {
		_ = d.Close()
	}
	f.logger.WithField("sessions", len(sessions)).Info("Browser sessions terminated")
	return len(sessions)
}

// Close terminates all sessions and rejects new ones
func (f *SessionFactory) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()

	f.CloseAll()
	f.logger.Info("Browser factory closed")
	return nil
}
