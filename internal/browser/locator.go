package browser

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/adresconsulta/eps-api/internal/strategy"
)

// Default wait budgets for Locate
const (
	DefaultLocateTimeout = 20 * time.Second
	DefaultPollInterval  = 500 * time.Millisecond
	DefaultMaxFrameDepth = 5
)

// LocateOptions bounds a Locate call
type LocateOptions struct {
	Timeout      time.Duration
	PollInterval time.Duration
	// MaxDepth is how many nested frames below the top document are searched
	MaxDepth     int
	SearchFrames bool
	// Accept optionally narrows usable elements further
	Accept func(ctx context.Context, el Element) (bool, error)
}

// DefaultLocateOptions searches nested frames with the default budgets
func DefaultLocateOptions() LocateOptions {
	return LocateOptions{
		Timeout:      DefaultLocateTimeout,
		PollInterval: DefaultPollInterval,
		MaxDepth:     DefaultMaxFrameDepth,
		SearchFrames: true,
	}
}

// Match is a usable element together with the scope it was found in
type Match struct {
	Element Element
	Scope   FrameContext
	Locator Locator
}

type visitKey struct {
	depth int
	ref   string
	id    string
	name  string
	index int
}

type pendingFrame struct {
	parent FrameContext
	key    FrameKey
}

// Locate polls until an element matched by one of the locators is displayed
// and enabled in the top document or any frame nested up to MaxDepth. Every
// attempt restarts from the top document. Matches in the current scope win
// over child frames and earlier locators win over later ones. On timeout the
// returned error wraps ErrElementNotFound and the last observed error.
func Locate(ctx context.Context, d Driver, locators ElementLocator, opts LocateOptions) (Match, error) {
	if len(locators) == 0 {
		return Match{}, fmt.Errorf("%w: no locators", ErrElementNotFound)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	maxDepth := opts.MaxDepth
	if !opts.SearchFrames || maxDepth < 0 {
		maxDepth = 0
	}

	deadline := time.Now().Add(opts.Timeout)
	var lastErr error

	for {
		match, found, err := searchOnce(ctx, d, locators, maxDepth, opts.Accept)
		if found {
			return match, nil
		}
		lastErr = err
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Match{}, ctxErr
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		wait := opts.PollInterval
		if remaining < wait {
			wait = remaining
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Match{}, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr != nil {
		return Match{}, fmt.Errorf("%w after %s (%s): %w", ErrElementNotFound, opts.Timeout, locators, lastErr)
	}
	return Match{}, fmt.Errorf("%w after %s (%s)", ErrElementNotFound, opts.Timeout, locators)
}

// searchOnce walks the frame tree depth-first with an explicit stack and
// its own visited sets: one for frame keys and one for the documents
// already searched, so a frame that embeds an ancestor is never re-entered.
func searchOnce(ctx context.Context, d Driver, locators ElementLocator, maxDepth int, accept acceptFunc) (Match, bool, error) {
	top, err := d.TopScope(ctx)
	if err != nil {
		return Match{}, false, err
	}

	visited := make(map[visitKey]struct{})
	searched := make(map[interface{}]struct{})
	markSearched(searched, top)
	var lastErr error

	scope := top
	var stack []pendingFrame

	for {
		match, found, err := matchInScope(ctx, d, scope, locators, accept)
		if found {
			return match, true, nil
		}
		if err != nil {
			lastErr = err
		}

		if scope.Depth() < maxDepth {
			keys, err := d.ChildFrames(ctx, scope)
			if err != nil {
				lastErr = err
			}
			// reversed so the first child is explored first
			for i := len(keys) - 1; i >= 0; i-- {
				k := keys[i]
				vk := visitKey{depth: scope.Depth() + 1, ref: k.Ref, id: k.ID, name: k.Name, index: k.Index}
				if _, seen := visited[vk]; seen {
					continue
				}
				visited[vk] = struct{}{}
				stack = append(stack, pendingFrame{parent: scope, key: k})
			}
		}

		next, ok := popEnterable(ctx, d, &stack, searched)
		if !ok {
			return Match{}, false, lastErr
		}
		scope = next
	}
}

// popEnterable pops frames until one can be entered. Frames that refuse
// entry or lead back to a document already searched are skipped.
func popEnterable(ctx context.Context, d Driver, stack *[]pendingFrame, searched map[interface{}]struct{}) (FrameContext, bool) {
	for len(*stack) > 0 {
		if ctx.Err() != nil {
			return FrameContext{}, false
		}
		n := len(*stack) - 1
		p := (*stack)[n]
		*stack = (*stack)[:n]

		child, err := d.EnterFrame(ctx, p.parent, p.key)
		if err != nil {
			continue
		}
		if !markSearched(searched, child) {
			continue
		}
		return child, true
	}
	return FrameContext{}, false
}

// markSearched records scope's document and reports whether it was new.
// Handles that cannot be map keys are always treated as new.
func markSearched(searched map[interface{}]struct{}, scope FrameContext) bool {
	h := scope.Handle
	if h == nil || !reflect.TypeOf(h).Comparable() {
		return true
	}
	if _, seen := searched[h]; seen {
		return false
	}
	searched[h] = struct{}{}
	return true
}

func matchInScope(ctx context.Context, d Driver, scope FrameContext, locators ElementLocator, accept acceptFunc) (Match, bool, error) {
	attempts := make([]strategy.Attempt[Match], 0, len(locators))
	for _, loc := range locators {
		loc := loc
		attempts = append(attempts, strategy.Attempt[Match]{
			Name: loc.String(),
			Run: func(ctx context.Context) (Match, bool, error) {
				return firstUsable(ctx, d, scope, loc, accept)
			},
		})
	}

	match, _, err := strategy.FirstSuccess(ctx, attempts, nil)
	if err != nil {
		var failure *strategy.Failure
		if errors.As(err, &failure) {
			return Match{}, false, failure.Last
		}
		return Match{}, false, err
	}
	return match, true, nil
}

type acceptFunc func(ctx context.Context, el Element) (bool, error)

func firstUsable(ctx context.Context, d Driver, scope FrameContext, loc Locator, accept acceptFunc) (Match, bool, error) {
	elements, err := d.FindElements(ctx, scope, loc)
	if err != nil {
		return Match{}, false, err
	}

	var lastErr error
	for _, el := range elements {
		usable, err := Usable(ctx, el)
		if err != nil {
			lastErr = err
			continue
		}
		if usable && accept != nil {
			if usable, err = accept(ctx, el); err != nil {
				lastErr = err
				continue
			}
		}
		if usable {
			return Match{Element: el, Scope: scope, Locator: loc}, true, nil
		}
	}
	return Match{}, false, lastErr
}

// Usable reports whether the element is displayed and enabled
func Usable(ctx context.Context, el Element) (bool, error) {
	displayed, err := el.Displayed(ctx)
	if err != nil || !displayed {
		return false, err
	}
	return el.Enabled(ctx)
}
