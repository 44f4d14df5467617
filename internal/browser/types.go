// Package browser drives the portal page: element lookup across nested
// frames, text injection with verification, and the Chrome implementation
// of the driver.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrElementNotFound is returned when no usable element matched before the deadline
	ErrElementNotFound = errors.New("element not found")
	// ErrStaleElement is returned when an element left the DOM after it was found
	ErrStaleElement = errors.New("stale element")
	// ErrFrameUnavailable is returned when a frame cannot be entered
	ErrFrameUnavailable = errors.New("frame unavailable")
	// ErrInjectionFailed is returned when no injection strategy produced the expected value
	ErrInjectionFailed = errors.New("text injection failed")
	// ErrNoWindow is returned when a window handle no longer exists
	ErrNoWindow = errors.New("window not found")
)

// LocatorKind selects how a Locator matches elements
type LocatorKind int

const (
	ByID LocatorKind = iota
	ByName
	// ByCSS matches a CSS selector, including attribute patterns such as
	// input[placeholder*='Número'].
	ByCSS
)

func (k LocatorKind) String() string {
	switch k {
	case ByID:
		return "id"
	case ByName:
		return "name"
	case ByCSS:
		return "css"
	default:
		return "unknown"
	}
}

// Locator is a single element lookup
type Locator struct {
	Kind  LocatorKind
	Value string
}

// ID matches the id attribute
func ID(v string) Locator { return Locator{Kind: ByID, Value: v} }

// Name matches the name attribute
func Name(v string) Locator { return Locator{Kind: ByName, Value: v} }

// CSS matches a CSS selector
func CSS(v string) Locator { return Locator{Kind: ByCSS, Value: v} }

// Selector renders the locator as a CSS selector
func (l Locator) Selector() string {
	switch l.Kind {
	case ByID:
		return fmt.Sprintf(`[id="%s"]`, escapeAttr(l.Value))
	case ByName:
		return fmt.Sprintf(`[name="%s"]`, escapeAttr(l.Value))
	default:
		return l.Value
	}
}

func (l Locator) String() string {
	return l.Kind.String() + "=" + l.Value
}

func escapeAttr(v string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(v)
}

// ElementLocator is an ordered list of lookups; earlier entries win
type ElementLocator []Locator

func (e ElementLocator) String() string {
	parts := make([]string, len(e))
	for i, l := range e {
		parts[i] = l.String()
	}
	return strings.Join(parts, " | ")
}

// FrameKey identifies a child frame inside its parent scope
type FrameKey struct {
	Index int
	ID    string
	Name  string
	// Ref is a driver-assigned reference stable for the frame element
	Ref string
}

// FrameContext is a browsing scope: the top document (empty path) or a
// chain of frames entered from it. Handle is owned by the driver; two
// scopes with equal handles show the same document.
type FrameContext struct {
	Path   []FrameKey
	Handle interface{}
}

// Depth is the number of frames entered from the top document
func (f FrameContext) Depth() int {
	return len(f.Path)
}

// IsTop reports whether the scope is the top document
func (f FrameContext) IsTop() bool {
	return len(f.Path) == 0
}

func (f FrameContext) String() string {
	if f.IsTop() {
		return "top"
	}
	parts := make([]string, len(f.Path))
	for i, k := range f.Path {
		switch {
		case k.ID != "":
			parts[i] = "#" + k.ID
		case k.Name != "":
			parts[i] = k.Name
		default:
			parts[i] = fmt.Sprintf("[%d]", k.Index)
		}
	}
	return "top/" + strings.Join(parts, "/")
}

// Element is a located DOM element. Any method returns an error wrapping
// ErrStaleElement once the element left the document.
type Element interface {
	Displayed(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)
	Value(ctx context.Context) (string, error)
	Attribute(ctx context.Context, name string) (string, error)
	Focus(ctx context.Context) error
	Click(ctx context.Context) error
	// MoveAndClick moves the pointer onto the element before pressing
	MoveAndClick(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error
	Clear(ctx context.Context) error
	// SendKeys types text into the element as key events
	SendKeys(ctx context.Context, text string) error
	// SetValue assigns the value via script and dispatches input and change
	SetValue(ctx context.Context, text string) error
	// SelectValue picks the option with the given value of a select element
	SelectValue(ctx context.Context, value string) error
	Options(ctx context.Context) ([]string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Driver is a single browser session
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// TopScope resets to the top document of the active window
	TopScope(ctx context.Context) (FrameContext, error)
	ChildFrames(ctx context.Context, scope FrameContext) ([]FrameKey, error)
	// EnterFrame returns an error wrapping ErrFrameUnavailable when the
	// frame cannot be scoped into
	EnterFrame(ctx context.Context, scope FrameContext, key FrameKey) (FrameContext, error)
	FindElements(ctx context.Context, scope FrameContext, loc Locator) ([]Element, error)
	PageSource(ctx context.Context, scope FrameContext) (string, error)
	BodyText(ctx context.Context, scope FrameContext) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
	WindowHandles(ctx context.Context) ([]string, error)
	SwitchToWindow(ctx context.Context, handle string) error
	Close() error
}
