package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/adresconsulta/eps-api/internal/strategy"
	"github.com/adresconsulta/eps-api/internal/utils"
	"github.com/sirupsen/logrus"
)

// Injector writes text into form fields, falling back through
// progressively lower-level techniques until a read-back matches.
type Injector struct {
	logger    *logrus.Logger
	CharDelay time.Duration
	Pause     time.Duration
	// Relocate bounds the lookup used to re-resolve a stale element
	Relocate LocateOptions
}

// NewInjector creates an injector with the default pacing
func NewInjector(logger *logrus.Logger) *Injector {
	return &Injector{
		logger:    logger,
		CharDelay: 100 * time.Millisecond,
		Pause:     200 * time.Millisecond,
		Relocate: LocateOptions{
			Timeout:      5 * time.Second,
			PollInterval: DefaultPollInterval,
			MaxDepth:     DefaultMaxFrameDepth,
			SearchFrames: true,
		},
	}
}

// Inject types text into el and verifies the field holds it. When el goes
// stale it is re-resolved through primary before the next technique runs.
func (i *Injector) Inject(ctx context.Context, d Driver, el Element, primary ElementLocator, text string) error {
	want := strings.TrimSpace(text)
	current := el

	technique := func(name string, apply func(ctx context.Context, el Element) error) strategy.Attempt[struct{}] {
		return strategy.Attempt[struct{}]{
			Name: name,
			Run: func(ctx context.Context) (struct{}, bool, error) {
				if err := apply(ctx, current); err != nil {
					return struct{}{}, false, err
				}
				got, err := current.Value(ctx)
				if err != nil {
					return struct{}{}, false, err
				}
				if strings.TrimSpace(got) != want {
					return struct{}{}, false, fmt.Errorf("read back %q", got)
				}
				return struct{}{}, true, nil
			},
		}
	}

	attempts := []strategy.Attempt[struct{}]{
		technique("focus_clear_send", func(ctx context.Context, el Element) error {
			if err := el.Click(ctx); err != nil {
				if errors.Is(err, ErrStaleElement) {
					return err
				}
				if err := el.ScrollIntoView(ctx); err != nil {
					return err
				}
				if err := utils.Sleep(ctx, i.Pause); err != nil {
					return err
				}
				if err := el.Click(ctx); err != nil {
					return err
				}
			}
			if err := el.Focus(ctx); err != nil {
				return err
			}
			if err := el.Clear(ctx); err != nil {
				return err
			}
			return el.SendKeys(ctx, text)
		}),
		technique("pointer_send", func(ctx context.Context, el Element) error {
			if err := el.MoveAndClick(ctx); err != nil {
				return err
			}
			if err := el.Clear(ctx); err != nil {
				return err
			}
			return el.SendKeys(ctx, text)
		}),
		technique("char_by_char", func(ctx context.Context, el Element) error {
			if err := el.Click(ctx); err != nil {
				return err
			}
			if err := el.Clear(ctx); err != nil {
				return err
			}
			for _, r := range text {
				if err := el.SendKeys(ctx, string(r)); err != nil {
					return err
				}
				if err := utils.Sleep(ctx, i.CharDelay); err != nil {
					return err
				}
			}
			return nil
		}),
		technique("script_value", func(ctx context.Context, el Element) error {
			return el.SetValue(ctx, text)
		}),
	}

	failed := 0
	_, used, err := strategy.FirstSuccess(ctx, attempts, func(name string, err error) {
		i.logger.WithFields(logrus.Fields{
			"technique": name,
			"error":     errString(err),
		}).Debug("Text injection technique failed")

		failed++
		if failed == len(attempts) {
			// nothing left to retry with
			return
		}
		if errors.Is(err, ErrStaleElement) && len(primary) > 0 {
			if match, lerr := Locate(ctx, d, primary, i.Relocate); lerr == nil {
				current = match.Element
			} else {
				i.logger.WithError(lerr).Warn("Could not re-resolve stale element")
			}
		}
		_ = utils.Sleep(ctx, i.Pause)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrInjectionFailed, err)
	}

	i.logger.WithField("technique", used).Debug("Text injected")
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
