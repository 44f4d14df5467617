package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adresconsulta/eps-api/internal/utils"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
)

// ChromeDriver implements Driver over a single Chrome process
type ChromeDriver struct {
	id         string
	browserCtx context.Context
	cancel     context.CancelFunc

	mu       sync.Mutex
	active   context.Context
	activeID target.ID
	cancels  []context.CancelFunc
	frames   map[cdp.BackendNodeID]*cdp.Node
	closed   bool
}

type chromeScope struct {
	root cdp.NodeID
}

func newChromeDriver(id string, browserCtx context.Context, cancel context.CancelFunc) *ChromeDriver {
	d := &ChromeDriver{
		id:         id,
		browserCtx: browserCtx,
		cancel:     cancel,
		active:     browserCtx,
		frames:     make(map[cdp.BackendNodeID]*cdp.Node),
	}
	if c := chromedp.FromContext(browserCtx); c != nil && c.Target != nil {
		d.activeID = c.Target.TargetID
	}
	return d
}

// ID identifies the session in logs and stats
func (d *ChromeDriver) ID() string {
	return d.id
}

// run executes fn on the active tab while honoring ctx cancellation
func (d *ChromeDriver) run(ctx context.Context, fn func(ctx context.Context) error) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return errors.New("browser session closed")
	}
	active := d.active
	d.mu.Unlock()

	runCtx, cancel := context.WithCancel(active)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, chromedp.ActionFunc(fn))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate loads url in the active tab and waits for the load event
func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	return d.run(ctx, func(ctx context.Context) error {
		return chromedp.Navigate(url).Do(ctx)
	})
}

// TopScope refreshes the document snapshot and returns the top scope
func (d *ChromeDriver) TopScope(ctx context.Context) (FrameContext, error) {
	var doc *cdp.Node
	err := d.run(ctx, func(ctx context.Context) error {
		var err error
		doc, err = dom.GetDocument().WithDepth(-1).WithPierce(true).Do(ctx)
		return err
	})
	if err != nil {
		return FrameContext{}, fmt.Errorf("get document: %w", err)
	}

	frames := make(map[cdp.BackendNodeID]*cdp.Node)
	indexFrames(doc, frames)

	d.mu.Lock()
	d.frames = frames
	d.mu.Unlock()

	return FrameContext{Handle: chromeScope{root: doc.NodeID}}, nil
}

func indexFrames(n *cdp.Node, out map[cdp.BackendNodeID]*cdp.Node) {
	if n == nil {
		return
	}
	if n.NodeName == "IFRAME" || n.NodeName == "FRAME" {
		out[n.BackendNodeID] = n
	}
	for _, c := range n.Children {
		indexFrames(c, out)
	}
	for _, s := range n.ShadowRoots {
		indexFrames(s, out)
	}
	indexFrames(n.ContentDocument, out)
}

func scopeRoot(scope FrameContext) (cdp.NodeID, error) {
	s, ok := scope.Handle.(chromeScope)
	if !ok || s.root == 0 {
		return 0, fmt.Errorf("%w: scope %s has no document", ErrFrameUnavailable, scope)
	}
	return s.root, nil
}

// ChildFrames lists the frame elements directly inside scope's document
func (d *ChromeDriver) ChildFrames(ctx context.Context, scope FrameContext) ([]FrameKey, error) {
	root, err := scopeRoot(scope)
	if err != nil {
		return nil, err
	}

	var keys []FrameKey
	err = d.run(ctx, func(ctx context.Context) error {
		ids, err := dom.QuerySelectorAll(root, "iframe, frame").Do(ctx)
		if err != nil {
			return staleOr(err)
		}
		for i, id := range ids {
			n, err := dom.DescribeNode().WithNodeID(id).Do(ctx)
			if err != nil {
				continue
			}
			frameID, _ := n.Attribute("id")
			name, _ := n.Attribute("name")
			keys = append(keys, FrameKey{
				Index: i,
				ID:    frameID,
				Name:  name,
				Ref:   strconv.FormatInt(int64(n.BackendNodeID), 10),
			})
		}
		return nil
	})
	return keys, err
}

// EnterFrame scopes into the content document of a same-process frame.
// Cross-origin frames have no reachable document and are reported as
// unavailable.
func (d *ChromeDriver) EnterFrame(_ context.Context, scope FrameContext, key FrameKey) (FrameContext, error) {
	backend, err := strconv.ParseInt(key.Ref, 10, 64)
	if err != nil {
		return FrameContext{}, fmt.Errorf("%w: bad frame ref %q", ErrFrameUnavailable, key.Ref)
	}

	d.mu.Lock()
	n, ok := d.frames[cdp.BackendNodeID(backend)]
	d.mu.Unlock()
	if !ok || n.ContentDocument == nil || n.ContentDocument.NodeID == 0 {
		return FrameContext{}, fmt.Errorf("%w: %s", ErrFrameUnavailable, key.Ref)
	}

	path := make([]FrameKey, 0, len(scope.Path)+1)
	path = append(path, scope.Path...)
	path = append(path, key)
	return FrameContext{Path: path, Handle: chromeScope{root: n.ContentDocument.NodeID}}, nil
}

// FindElements returns every element in scope's document matching loc
func (d *ChromeDriver) FindElements(ctx context.Context, scope FrameContext, loc Locator) ([]Element, error) {
	root, err := scopeRoot(scope)
	if err != nil {
		return nil, err
	}

	var elements []Element
	err = d.run(ctx, func(ctx context.Context) error {
		ids, err := dom.QuerySelectorAll(root, loc.Selector()).Do(ctx)
		if err != nil {
			return staleOr(err)
		}
		for _, id := range ids {
			n, err := dom.DescribeNode().WithNodeID(id).Do(ctx)
			if err != nil {
				continue
			}
			elements = append(elements, &chromeElement{d: d, backend: n.BackendNodeID})
		}
		return nil
	})
	return elements, err
}

func (d *ChromeDriver) child(ctx context.Context, scope FrameContext, selector string) (*chromeElement, error) {
	root, err := scopeRoot(scope)
	if err != nil {
		return nil, err
	}
	var el *chromeElement
	err = d.run(ctx, func(ctx context.Context) error {
		id, err := dom.QuerySelector(root, selector).Do(ctx)
		if err != nil {
			return staleOr(err)
		}
		if id == 0 {
			return nil
		}
		n, err := dom.DescribeNode().WithNodeID(id).Do(ctx)
		if err != nil {
			return staleOr(err)
		}
		el = &chromeElement{d: d, backend: n.BackendNodeID}
		return nil
	})
	return el, err
}

// PageSource serializes scope's document
func (d *ChromeDriver) PageSource(ctx context.Context, scope FrameContext) (string, error) {
	html, err := d.child(ctx, scope, "html")
	if err != nil {
		return "", err
	}
	if html == nil {
		return "", nil
	}
	var out string
	err = d.run(ctx, func(ctx context.Context) error {
		var err error
		out, err = dom.GetOuterHTML().WithBackendNodeID(html.backend).Do(ctx)
		return staleOr(err)
	})
	return out, err
}

// BodyText returns the rendered text of scope's body
func (d *ChromeDriver) BodyText(ctx context.Context, scope FrameContext) (string, error) {
	body, err := d.child(ctx, scope, "body")
	if err != nil || body == nil {
		return "", err
	}
	var text string
	err = body.call(ctx, `function(){ return this.innerText || ''; }`, &text)
	return text, err
}

// Screenshot captures the visible viewport as PNG
func (d *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	})
	return buf, err
}

// WindowHandles lists the page targets of the browser
func (d *ChromeDriver) WindowHandles(ctx context.Context) ([]string, error) {
	infos, err := chromedp.Targets(d.browserCtx)
	if err != nil {
		return nil, err
	}
	var handles []string
	for _, info := range infos {
		if info.Type == "page" {
			handles = append(handles, string(info.TargetID))
		}
	}
	return handles, ctx.Err()
}

// SwitchToWindow attaches to another page target and makes it active
func (d *ChromeDriver) SwitchToWindow(ctx context.Context, handle string) error {
	d.mu.Lock()
	if string(d.activeID) == handle {
		d.mu.Unlock()
		return nil
	}
	d.mu.Unlock()

	tabCtx, cancel := chromedp.NewContext(d.browserCtx, chromedp.WithTargetID(target.ID(handle)))
	// the tab's event loop is bound to the context of its first Run, which
	// must therefore be tabCtx; ctx can only abort it by cancelling the tab
	abort := context.AfterFunc(ctx, cancel)
	err := chromedp.Run(tabCtx)
	if !abort() {
		cancel()
		return fmt.Errorf("%w: %s: %w", ErrNoWindow, handle, context.Cause(ctx))
	}
	if err != nil {
		cancel()
		return fmt.Errorf("%w: %s: %w", ErrNoWindow, handle, err)
	}

	d.mu.Lock()
	d.active = tabCtx
	d.activeID = target.ID(handle)
	d.cancels = append(d.cancels, cancel)
	d.frames = make(map[cdp.BackendNodeID]*cdp.Node)
	d.mu.Unlock()
	return nil
}

// Close shuts the browser process down
func (d *ChromeDriver) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	cancels := d.cancels
	d.cancels = nil
	d.mu.Unlock()

	for i := len(cancels) - 1; i >= 0; i-- {
		cancels[i]()
	}
	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

type chromeElement struct {
	d       *ChromeDriver
	backend cdp.BackendNodeID
}

// call invokes fn with this bound to the element. A detached element
// raises inside the page and is reported as stale.
func (e *chromeElement) call(ctx context.Context, fn string, out interface{}, args ...interface{}) error {
	if args == nil {
		args = []interface{}{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return err
	}
	decl := fmt.Sprintf(`function(){ if (!this.isConnected) { throw new Error('stale element'); } return (%s).apply(this, %s); }`, fn, encoded)

	return e.d.run(ctx, func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithBackendNodeID(e.backend).Do(ctx)
		if err != nil {
			return staleOr(err)
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		res, exc, err := runtime.CallFunctionOn(decl).
			WithObjectID(obj.ObjectID).
			WithReturnByValue(true).
			Do(ctx)
		if err != nil {
			return staleOr(err)
		}
		if exc != nil {
			desc := exc.Text
			if exc.Exception != nil && exc.Exception.Description != "" {
				desc = exc.Exception.Description
			}
			if strings.Contains(desc, "stale element") {
				return ErrStaleElement
			}
			return fmt.Errorf("script error: %s", desc)
		}
		if out != nil && res != nil && len(res.Value) > 0 {
			return json.Unmarshal(res.Value, out)
		}
		return nil
	})
}

func (e *chromeElement) Displayed(ctx context.Context) (bool, error) {
	var ok bool
	err := e.call(ctx, `function(){
		var s = this.ownerDocument.defaultView.getComputedStyle(this);
		if (s.display === 'none' || s.visibility === 'hidden') { return false; }
		var r = this.getBoundingClientRect();
		return r.width > 0 && r.height > 0;
	}`, &ok)
	return ok, err
}

func (e *chromeElement) Enabled(ctx context.Context) (bool, error) {
	var ok bool
	err := e.call(ctx, `function(){ return !this.disabled; }`, &ok)
	return ok, err
}

func (e *chromeElement) Value(ctx context.Context) (string, error) {
	var v string
	err := e.call(ctx, `function(){ return this.value === undefined || this.value === null ? '' : String(this.value); }`, &v)
	return v, err
}

func (e *chromeElement) Attribute(ctx context.Context, name string) (string, error) {
	var v string
	err := e.call(ctx, `function(n){ var v = this.getAttribute(n); return v === null ? '' : v; }`, &v, name)
	return v, err
}

func (e *chromeElement) Focus(ctx context.Context) error {
	return e.d.run(ctx, func(ctx context.Context) error {
		return staleOr(dom.Focus().WithBackendNodeID(e.backend).Do(ctx))
	})
}

func (e *chromeElement) ScrollIntoView(ctx context.Context) error {
	return e.d.run(ctx, func(ctx context.Context) error {
		return staleOr(dom.ScrollIntoViewIfNeeded().WithBackendNodeID(e.backend).Do(ctx))
	})
}

func (e *chromeElement) center(ctx context.Context) (float64, float64, error) {
	quads, err := dom.GetContentQuads().WithBackendNodeID(e.backend).Do(ctx)
	if err != nil {
		return 0, 0, staleOr(err)
	}
	if len(quads) == 0 || len(quads[0]) < 8 {
		return 0, 0, errors.New("element has no layout box")
	}
	q := quads[0]
	return (q[0] + q[2] + q[4] + q[6]) / 4, (q[1] + q[3] + q[5] + q[7]) / 4, nil
}

func (e *chromeElement) Click(ctx context.Context) error {
	return e.d.run(ctx, func(ctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithBackendNodeID(e.backend).Do(ctx); err != nil {
			return staleOr(err)
		}
		x, y, err := e.center(ctx)
		if err != nil {
			return err
		}
		return chromedp.MouseClickXY(x, y).Do(ctx)
	})
}

func (e *chromeElement) MoveAndClick(ctx context.Context) error {
	return e.d.run(ctx, func(ctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithBackendNodeID(e.backend).Do(ctx); err != nil {
			return staleOr(err)
		}
		x, y, err := e.center(ctx)
		if err != nil {
			return err
		}
		if err := input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx); err != nil {
			return err
		}
		if err := utils.Sleep(ctx, 100*time.Millisecond); err != nil {
			return err
		}
		return chromedp.MouseClickXY(x, y).Do(ctx)
	})
}

func (e *chromeElement) Clear(ctx context.Context) error {
	return e.call(ctx, `function(){
		this.value = '';
		this.dispatchEvent(new Event('input', {bubbles: true}));
	}`, nil)
}

func (e *chromeElement) SendKeys(ctx context.Context, text string) error {
	return e.d.run(ctx, func(ctx context.Context) error {
		if err := dom.Focus().WithBackendNodeID(e.backend).Do(ctx); err != nil {
			return staleOr(err)
		}
		return chromedp.KeyEvent(text).Do(ctx)
	})
}

func (e *chromeElement) SetValue(ctx context.Context, text string) error {
	return e.call(ctx, `function(v){
		this.focus();
		this.value = v;
		this.dispatchEvent(new Event('input', {bubbles: true}));
		this.dispatchEvent(new Event('change', {bubbles: true}));
	}`, nil, text)
}

func (e *chromeElement) SelectValue(ctx context.Context, value string) error {
	var found bool
	err := e.call(ctx, `function(v){
		var opts = this.options || [];
		for (var i = 0; i < opts.length; i++) {
			if (opts[i].value === v) {
				this.selectedIndex = i;
				this.dispatchEvent(new Event('input', {bubbles: true}));
				this.dispatchEvent(new Event('change', {bubbles: true}));
				return true;
			}
		}
		return false;
	}`, &found, value)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("option %q not available", value)
	}
	return nil
}

func (e *chromeElement) Options(ctx context.Context) ([]string, error) {
	var values []string
	err := e.call(ctx, `function(){ return Array.prototype.map.call(this.options || [], function(o){ return o.value; }); }`, &values)
	return values, err
}

// Screenshot captures the element's border box as PNG
func (e *chromeElement) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := e.d.run(ctx, func(ctx context.Context) error {
		if err := dom.ScrollIntoViewIfNeeded().WithBackendNodeID(e.backend).Do(ctx); err != nil {
			return staleOr(err)
		}
		box, err := dom.GetBoxModel().WithBackendNodeID(e.backend).Do(ctx)
		if err != nil {
			return staleOr(err)
		}
		if box == nil || len(box.Border) < 8 {
			return errors.New("element has no layout box")
		}

		scroll, exc, err := runtime.Evaluate(`[window.scrollX, window.scrollY]`).WithReturnByValue(true).Do(ctx)
		if err != nil {
			return err
		}
		var offset [2]float64
		if exc == nil && scroll != nil {
			_ = json.Unmarshal(scroll.Value, &offset)
		}

		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for i := 0; i+1 < len(box.Border); i += 2 {
			minX = math.Min(minX, box.Border[i])
			maxX = math.Max(maxX, box.Border[i])
			minY = math.Min(minY, box.Border[i+1])
			maxY = math.Max(maxY, box.Border[i+1])
		}

		buf, err = page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormatPng).
			WithCaptureBeyondViewport(true).
			WithClip(&page.Viewport{
				X:      minX + offset[0],
				Y:      minY + offset[1],
				Width:  maxX - minX,
				Height: maxY - minY,
				Scale:  1,
			}).Do(ctx)
		return err
	})
	return buf, err
}

// staleOr maps protocol errors about vanished nodes onto ErrStaleElement
func staleOr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "node with given id") ||
		strings.Contains(msg, "does not belong to the document") ||
		strings.Contains(msg, "node is detached") {
		return fmt.Errorf("%w: %w", ErrStaleElement, err)
	}
	return err
}
