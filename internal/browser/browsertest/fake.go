// Package browsertest provides an in-memory browser.Driver for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/adresconsulta/eps-api/internal/browser"
)

// Document is a page or frame body
type Document struct {
	Elements []*Element
	Frames   []*Frame
	Source   string
	Text     string
}

// Frame is a child frame of a Document
type Frame struct {
	ID      string
	Name    string
	Blocked bool
	Doc     *Document
}

// Element is a scriptable form element
type Element struct {
	ID       string
	Name     string
	CSS      []string
	Hidden   bool
	Disabled bool
	Val      string
	Opts     []string
	Image    []byte

	// Stale makes every call fail as if the node left the DOM
	Stale bool
	// StaleAfter goes stale once this many calls have been made (0 = never)
	StaleAfter int
	// IgnoreKeys drops typed input entirely
	IgnoreKeys bool
	// IgnoreBulkKeys drops multi-character key sequences
	IgnoreBulkKeys bool
	// IgnorePointer drops input typed after MoveAndClick
	IgnorePointer bool
	// IgnoreScript drops values assigned by script
	IgnoreScript bool
	// ClickErr is returned from Click
	ClickErr error
	// ScreenshotErr is returned from Screenshot
	ScreenshotErr error
	// OnClick runs after a successful click
	OnClick func()

	mu      sync.Mutex
	calls   []string
	pointer bool
}

var _ browser.Element = (*Element)(nil)

func (e *Element) record(call string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, call)
	if e.Stale || (e.StaleAfter > 0 && len(e.calls) > e.StaleAfter) {
		return fmt.Errorf("%w: %s", browser.ErrStaleElement, e.ID)
	}
	return nil
}

// Calls returns the recorded method names
func (e *Element) Calls() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// CallCount counts recorded calls of method name
func (e *Element) CallCount(name string) int {
	n := 0
	for _, c := range e.Calls() {
		if c == name {
			n++
		}
	}
	return n
}

// CurrentValue reads the value without recording a call
func (e *Element) CurrentValue() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Val
}

func (e *Element) Displayed(context.Context) (bool, error) {
	if err := e.record("Displayed"); err != nil {
		return false, err
	}
	return !e.Hidden, nil
}

func (e *Element) Enabled(context.Context) (bool, error) {
	if err := e.record("Enabled"); err != nil {
		return false, err
	}
	return !e.Disabled, nil
}

func (e *Element) Value(context.Context) (string, error) {
	if err := e.record("Value"); err != nil {
		return "", err
	}
	return e.CurrentValue(), nil
}

func (e *Element) Attribute(_ context.Context, name string) (string, error) {
	if err := e.record("Attribute"); err != nil {
		return "", err
	}
	switch name {
	case "id":
		return e.ID, nil
	case "name":
		return e.Name, nil
	case "value":
		return e.CurrentValue(), nil
	}
	return "", nil
}

func (e *Element) Focus(context.Context) error {
	return e.record("Focus")
}

func (e *Element) Click(context.Context) error {
	if err := e.record("Click"); err != nil {
		return err
	}
	if e.ClickErr != nil {
		return e.ClickErr
	}
	e.mu.Lock()
	e.pointer = false
	onClick := e.OnClick
	e.mu.Unlock()
	if onClick != nil {
		onClick()
	}
	return nil
}

func (e *Element) MoveAndClick(context.Context) error {
	if err := e.record("MoveAndClick"); err != nil {
		return err
	}
	e.mu.Lock()
	e.pointer = true
	e.mu.Unlock()
	return nil
}

func (e *Element) ScrollIntoView(context.Context) error {
	return e.record("ScrollIntoView")
}

func (e *Element) Clear(context.Context) error {
	if err := e.record("Clear"); err != nil {
		return err
	}
	e.mu.Lock()
	e.Val = ""
	e.mu.Unlock()
	return nil
}

func (e *Element) SendKeys(_ context.Context, text string) error {
	if err := e.record("SendKeys"); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.IgnoreKeys:
	case e.IgnoreBulkKeys && len([]rune(text)) > 1:
	case e.IgnorePointer && e.pointer:
	default:
		e.Val += text
	}
	return nil
}

func (e *Element) SetValue(_ context.Context, text string) error {
	if err := e.record("SetValue"); err != nil {
		return err
	}
	e.mu.Lock()
	if !e.IgnoreScript {
		e.Val = text
	}
	e.mu.Unlock()
	return nil
}

func (e *Element) SelectValue(_ context.Context, value string) error {
	if err := e.record("SelectValue"); err != nil {
		return err
	}
	for _, o := range e.Opts {
		if o == value {
			e.mu.Lock()
			e.Val = value
			e.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("option %q not available", value)
}

func (e *Element) Options(context.Context) ([]string, error) {
	if err := e.record("Options"); err != nil {
		return nil, err
	}
	return append([]string(nil), e.Opts...), nil
}

func (e *Element) Screenshot(context.Context) ([]byte, error) {
	if err := e.record("Screenshot"); err != nil {
		return nil, err
	}
	if e.ScreenshotErr != nil {
		return nil, e.ScreenshotErr
	}
	return e.Image, nil
}

func (e *Element) matches(loc browser.Locator) bool {
	switch loc.Kind {
	case browser.ByID:
		return e.ID != "" && e.ID == loc.Value
	case browser.ByName:
		return e.Name != "" && e.Name == loc.Value
	default:
		for _, s := range e.CSS {
			if s == loc.Value {
				return true
			}
		}
		return false
	}
}

// Driver is an in-memory browser.Driver. Windows are keyed by handle; the
// first handle is active initially.
type Driver struct {
	mu      sync.Mutex
	handles []string
	windows map[string]*Document
	active  string
	urls    []string
	tops    int
	entered int
	closed  bool
	shot    []byte

	ShotErr   error
	FindErr   error
	NavErr    error
	SourceErr error
}

var _ browser.Driver = (*Driver)(nil)

// NewDriver creates a driver with a single window showing doc
func NewDriver(doc *Document) *Driver {
	return &Driver{
		handles: []string{"main"},
		windows: map[string]*Document{"main": doc},
		active:  "main",
		shot:    []byte("\x89PNG viewport"),
	}
}

// OpenWindow adds a window, as a popup opened by the page would
func (d *Driver) OpenWindow(handle string, doc *Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handles = append(d.handles, handle)
	d.windows[handle] = doc
}

// SetDocument replaces the active window's document
func (d *Driver) SetDocument(doc *Document) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.windows[d.active] = doc
}

// URLs returns the navigated URLs
func (d *Driver) URLs() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

// TopScopeCalls counts how often the search restarted from the top document
func (d *Driver) TopScopeCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tops
}

// EnterFrameCalls counts frame entries attempted by searches
func (d *Driver) EnterFrameCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entered
}

// Active returns the active window handle
func (d *Driver) Active() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Closed reports whether Close was called
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

func (d *Driver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	return d.NavErr
}

func (d *Driver) TopScope(ctx context.Context) (browser.FrameContext, error) {
	if err := ctx.Err(); err != nil {
		return browser.FrameContext{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tops++
	return browser.FrameContext{Handle: d.windows[d.active]}, nil
}

func docOf(scope browser.FrameContext) (*Document, error) {
	doc, ok := scope.Handle.(*Document)
	if !ok || doc == nil {
		return nil, fmt.Errorf("%w: no document", browser.ErrFrameUnavailable)
	}
	return doc, nil
}

func (d *Driver) ChildFrames(_ context.Context, scope browser.FrameContext) ([]browser.FrameKey, error) {
	doc, err := docOf(scope)
	if err != nil {
		return nil, err
	}
	keys := make([]browser.FrameKey, len(doc.Frames))
	for i, f := range doc.Frames {
		keys[i] = browser.FrameKey{Index: i, ID: f.ID, Name: f.Name, Ref: fmt.Sprintf("%p", f)}
	}
	return keys, nil
}

func (d *Driver) EnterFrame(_ context.Context, scope browser.FrameContext, key browser.FrameKey) (browser.FrameContext, error) {
	d.mu.Lock()
	d.entered++
	d.mu.Unlock()

	doc, err := docOf(scope)
	if err != nil {
		return browser.FrameContext{}, err
	}
	if key.Index < 0 || key.Index >= len(doc.Frames) {
		return browser.FrameContext{}, fmt.Errorf("%w: index %d", browser.ErrFrameUnavailable, key.Index)
	}
	f := doc.Frames[key.Index]
	if f.Blocked || f.Doc == nil {
		return browser.FrameContext{}, fmt.Errorf("%w: %s", browser.ErrFrameUnavailable, f.ID)
	}
	path := append(append([]browser.FrameKey(nil), scope.Path...), key)
	return browser.FrameContext{Path: path, Handle: f.Doc}, nil
}

func (d *Driver) FindElements(_ context.Context, scope browser.FrameContext, loc browser.Locator) ([]browser.Element, error) {
	if d.FindErr != nil {
		return nil, d.FindErr
	}
	doc, err := docOf(scope)
	if err != nil {
		return nil, err
	}
	var out []browser.Element
	for _, e := range doc.Elements {
		if e.matches(loc) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *Driver) PageSource(_ context.Context, scope browser.FrameContext) (string, error) {
	if d.SourceErr != nil {
		return "", d.SourceErr
	}
	doc, err := docOf(scope)
	if err != nil {
		return "", err
	}
	return doc.Source, nil
}

func (d *Driver) BodyText(_ context.Context, scope browser.FrameContext) (string, error) {
	doc, err := docOf(scope)
	if err != nil {
		return "", err
	}
	if doc.Text != "" {
		return doc.Text, nil
	}
	return stripTags(doc.Source), nil
}

func (d *Driver) Screenshot(context.Context) ([]byte, error) {
	if d.ShotErr != nil {
		return nil, d.ShotErr
	}
	return d.shot, nil
}

func (d *Driver) WindowHandles(context.Context) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.handles...), nil
}

func (d *Driver) SwitchToWindow(_ context.Context, handle string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.windows[handle]; !ok {
		return fmt.Errorf("%w: %s", browser.ErrNoWindow, handle)
	}
	d.active = handle
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("already closed")
	}
	d.closed = true
	return nil
}

func stripTags(s string) string {
	var b strings.Builder
	in := false
	for _, r := range s {
		switch {
		case r == '<':
			in = true
		case r == '>':
			in = false
		case !in:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

// Opener hands out a fixed driver, as browser.Opener does for real sessions
type Opener struct {
	mu       sync.Mutex
	Driver   *Driver
	Err      error
	opened   int
	released int
}

var _ browser.Opener = (*Opener)(nil)

func (o *Opener) Open(ctx context.Context) (browser.Driver, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return nil, o.Err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	o.opened++
	return o.Driver, nil
}

func (o *Opener) Release(d browser.Driver) {
	o.mu.Lock()
	o.released++
	o.mu.Unlock()
	if d != nil {
		_ = d.Close()
	}
}

// Counts returns how many sessions were opened and released
func (o *Opener) Counts() (opened, released int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opened, o.released
}
