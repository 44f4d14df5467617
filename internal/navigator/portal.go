// Package navigator drives the ADRES query form: document type, document
// number, CAPTCHA field, submission and the result page that follows.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/adresconsulta/eps-api/internal/browser"
	"github.com/adresconsulta/eps-api/internal/config"
	"github.com/adresconsulta/eps-api/internal/utils"
	"github.com/sirupsen/logrus"
)

var (
	// ErrOptionUnavailable is returned when the document type select lacks the code
	ErrOptionUnavailable = errors.New("document type option not available")
	// ErrNoResults is returned when neither the page source nor its text could be read
	ErrNoResults = errors.New("result page has no content")
)

// Form locators, most specific first
var (
	DocumentTypeLocator = browser.ElementLocator{
		browser.ID("tipoDoc"),
		browser.Name("tipoDoc"),
		browser.CSS("select#tipoDoc"),
		browser.CSS("select.txtBox"),
	}
	DocumentNumberLocator = browser.ElementLocator{
		browser.ID("txtNumDoc"),
		browser.Name("numeroDocumento"),
		browser.CSS("input[placeholder*='Número de documento']"),
		browser.CSS("input[id*='NumDoc']"),
	}
	CaptchaInputLocator = browser.ElementLocator{browser.ID("Capcha_CaptchaTextBox")}
	SubmitLocator       = browser.ElementLocator{
		browser.ID("btnConsultar"),
		browser.CSS("input[type='submit'][value*='Consultar']"),
		browser.CSS("input[type='submit']"),
	}

	documentNumberPrimary = browser.ElementLocator{browser.ID("txtNumDoc")}
	textInputLocator      = browser.ElementLocator{
		browser.CSS("input[type='text'],input[type='tel'],input[type='number']"),
	}
	tableLocator = browser.CSS("table")
)

const minFrameText = 20

// Options configures the navigator's wait budgets
type Options struct {
	URL    string
	Locate browser.LocateOptions
	// CaptchaTimeout bounds the CAPTCHA input lookup
	CaptchaTimeout time.Duration
	// WindowTimeout bounds the wait for a popup after submission
	WindowTimeout time.Duration
	// ResultsTimeout bounds the wait for a results table
	ResultsTimeout time.Duration
	PollInterval   time.Duration
	// Settle is the pause after selections and submission
	Settle time.Duration
}

// OptionsFromConfig derives navigator options from the portal configuration
func OptionsFromConfig(cfg config.PortalConfig) Options {
	return Options{
		URL: cfg.URL,
		Locate: browser.LocateOptions{
			Timeout:      cfg.LocateTimeout,
			PollInterval: cfg.PollInterval,
			MaxDepth:     cfg.MaxFrameDepth,
			SearchFrames: cfg.MaxFrameDepth > 0,
		},
		CaptchaTimeout: cfg.CaptchaTimeout,
		WindowTimeout:  cfg.WindowTimeout,
		ResultsTimeout: cfg.ResultsTimeout,
		PollInterval:   cfg.PollInterval,
		Settle:         500 * time.Millisecond,
	}
}

// Page is the captured result of a submission
type Page struct {
	HTML       string
	Text       string
	Screenshot []byte
	Window     string
	Scope      browser.FrameContext
}

// WebNavigator fills and submits the portal form on a driver
type WebNavigator struct {
	opts     Options
	injector *browser.Injector
	logger   *logrus.Logger
}

// NewWebNavigator creates a navigator
func NewWebNavigator(opts Options, injector *browser.Injector, logger *logrus.Logger) *WebNavigator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = browser.DefaultPollInterval
	}
	if opts.CaptchaTimeout <= 0 {
		opts.CaptchaTimeout = opts.Locate.Timeout
	}
	return &WebNavigator{opts: opts, injector: injector, logger: logger}
}

// Open loads the query form
func (w *WebNavigator) Open(ctx context.Context, d browser.Driver) error {
	w.logger.WithField("url", w.opts.URL).Debug("Navigating to portal")
	if err := d.Navigate(ctx, w.opts.URL); err != nil {
		return fmt.Errorf("navigate to portal: %w", err)
	}
	return nil
}

// SelectDocumentType picks code in the document type select and reads it back
func (w *WebNavigator) SelectDocumentType(ctx context.Context, d browser.Driver, code string) error {
	match, err := browser.Locate(ctx, d, DocumentTypeLocator, w.opts.Locate)
	if err != nil {
		return fmt.Errorf("locate document type select: %w", err)
	}

	options, err := match.Element.Options(ctx)
	if err != nil {
		return fmt.Errorf("read document type options: %w", err)
	}
	if !slices.Contains(options, code) {
		return fmt.Errorf("%w: %q not in %v", ErrOptionUnavailable, code, options)
	}

	if err := match.Element.SelectValue(ctx, code); err != nil {
		return fmt.Errorf("select document type %s: %w", code, err)
	}
	if err := utils.Sleep(ctx, w.opts.Settle); err != nil {
		return err
	}

	selected, err := match.Element.Value(ctx)
	if err != nil {
		return fmt.Errorf("read selected document type: %w", err)
	}
	if selected != code {
		return fmt.Errorf("document type reads %q after selecting %q", selected, code)
	}

	w.logger.WithFields(logrus.Fields{"document_type": code, "scope": match.Scope.String()}).Debug("Document type selected")
	return nil
}

// EnterDocumentNumber writes number into the document number field
func (w *WebNavigator) EnterDocumentNumber(ctx context.Context, d browser.Driver, number string) error {
	match, err := browser.Locate(ctx, d, DocumentNumberLocator, w.opts.Locate)
	if err != nil {
		return fmt.Errorf("locate document number field: %w", err)
	}
	if err := w.injector.Inject(ctx, d, match.Element, documentNumberPrimary, number); err != nil {
		return fmt.Errorf("write document number: %w", err)
	}
	return nil
}

// EnterCaptcha writes the CAPTCHA text. Without the dedicated field the
// first visible text input other than the document number is used.
func (w *WebNavigator) EnterCaptcha(ctx context.Context, d browser.Driver, text string) error {
	el, err := w.captchaInput(ctx, d)
	if err != nil {
		return err
	}
	if err := w.injector.Inject(ctx, d, el, CaptchaInputLocator, text); err != nil {
		return fmt.Errorf("write captcha: %w", err)
	}
	return nil
}

func (w *WebNavigator) captchaInput(ctx context.Context, d browser.Driver) (browser.Element, error) {
	opts := w.opts.Locate
	opts.Timeout = w.opts.CaptchaTimeout

	match, err := browser.Locate(ctx, d, CaptchaInputLocator, opts)
	if err == nil {
		return match.Element, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	fallback := opts
	fallback.Timeout = 0
	fallback.Accept = func(ctx context.Context, el browser.Element) (bool, error) {
		id, err := el.Attribute(ctx, "id")
		return id != "txtNumDoc", err
	}
	match, ferr := browser.Locate(ctx, d, textInputLocator, fallback)
	if ferr != nil {
		return nil, fmt.Errorf("locate captcha input: %w", err)
	}
	w.logger.WithField("locator", match.Locator.String()).Debug("Using fallback CAPTCHA input")
	return match.Element, nil
}

// Submit clicks the query button and returns the window handles that
// existed before the click.
func (w *WebNavigator) Submit(ctx context.Context, d browser.Driver) ([]string, error) {
	match, err := browser.Locate(ctx, d, SubmitLocator, w.opts.Locate)
	if err != nil {
		return nil, fmt.Errorf("locate submit button: %w", err)
	}

	before, err := d.WindowHandles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}

	if err := match.Element.Click(ctx); err != nil {
		return nil, fmt.Errorf("click %s: %w", match.Locator, err)
	}
	w.logger.WithField("locator", match.Locator.String()).Debug("Form submitted")

	if err := utils.Sleep(ctx, w.opts.Settle); err != nil {
		return nil, err
	}
	return before, nil
}

// CaptureResults finds the result page, preferring a new window over a
// populated frame over the current page, and reads it.
func (w *WebNavigator) CaptureResults(ctx context.Context, d browser.Driver, before []string) (Page, error) {
	var page Page

	handle, err := w.waitNewWindow(ctx, d, before)
	if err != nil {
		return page, err
	}
	page.Window = handle

	scope, err := d.TopScope(ctx)
	if err != nil {
		return page, fmt.Errorf("reset scope: %w", err)
	}
	if handle == "" {
		if frame, ok := w.contentFrame(ctx, d, scope); ok {
			scope = frame
		}
	}
	page.Scope = scope

	if !w.waitTable(ctx, d, scope) {
		if ctx.Err() != nil {
			return page, ctx.Err()
		}
		w.logger.WithField("scope", scope.String()).Warn("No results table appeared")
	}

	html, srcErr := d.PageSource(ctx, scope)
	text, textErr := d.BodyText(ctx, scope)
	switch {
	case srcErr == nil && html != "":
		page.HTML = html
	case textErr == nil && text != "":
		page.HTML = text
	default:
		return page, fmt.Errorf("%w: %w", ErrNoResults, errors.Join(srcErr, textErr))
	}
	page.Text = text

	if shot, err := d.Screenshot(ctx); err == nil {
		page.Screenshot = shot
	} else {
		w.logger.WithError(err).Warn("Result screenshot failed")
	}
	return page, nil
}

// waitNewWindow returns "" when no window appeared within WindowTimeout
func (w *WebNavigator) waitNewWindow(ctx context.Context, d browser.Driver, before []string) (string, error) {
	deadline := time.Now().Add(w.opts.WindowTimeout)
	for {
		handles, err := d.WindowHandles(ctx)
		if err == nil {
			for _, h := range handles {
				if slices.Contains(before, h) {
					continue
				}
				if err := d.SwitchToWindow(ctx, h); err != nil {
					w.logger.WithError(err).WithField("window", h).Warn("Could not switch to result window")
					continue
				}
				w.logger.WithField("window", h).Debug("Switched to result window")
				return h, nil
			}
		} else if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if !time.Now().Before(deadline) {
			return "", nil
		}
		if err := utils.Sleep(ctx, w.opts.PollInterval); err != nil {
			return "", err
		}
	}
}

// contentFrame returns the first child frame with meaningful body text
func (w *WebNavigator) contentFrame(ctx context.Context, d browser.Driver, top browser.FrameContext) (browser.FrameContext, bool) {
	keys, err := d.ChildFrames(ctx, top)
	if err != nil {
		return browser.FrameContext{}, false
	}
	for _, k := range keys {
		frame, err := d.EnterFrame(ctx, top, k)
		if err != nil {
			continue
		}
		text, err := d.BodyText(ctx, frame)
		if err == nil && len(strings.TrimSpace(text)) > minFrameText {
			w.logger.WithField("scope", frame.String()).Debug("Results found in frame")
			return frame, true
		}
	}
	return browser.FrameContext{}, false
}

func (w *WebNavigator) waitTable(ctx context.Context, d browser.Driver, scope browser.FrameContext) bool {
	deadline := time.Now().Add(w.opts.ResultsTimeout)
	for {
		if tables, err := d.FindElements(ctx, scope, tableLocator); err == nil && len(tables) > 0 {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		if utils.Sleep(ctx, w.opts.PollInterval) != nil {
			return false
		}
	}
}

