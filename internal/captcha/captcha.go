// Package captcha resolves the portal's image CAPTCHA: an automated solver
// first, then a human operator.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/adresconsulta/eps-api/internal/browser"
	"github.com/sirupsen/logrus"
)

var (
	// ErrSolverUnavailable wraps every automated solving failure
	ErrSolverUnavailable = errors.New("captcha solver unavailable")
	// ErrCaptchaCancelled is returned when the operator declined to answer
	ErrCaptchaCancelled = errors.New("captcha cancelled by operator")
	// ErrPromptTimedOut is returned when an opt-in prompt limit passed unanswered
	ErrPromptTimedOut = errors.New("captcha prompt timed out")
	// ErrChallengeNotFound is returned for unknown or already answered challenges
	ErrChallengeNotFound = errors.New("captcha challenge not found")
	// ErrEmptyAnswer is returned when an operator submits blank text
	ErrEmptyAnswer = errors.New("captcha answer is empty")
)

// ImageLocator finds the CAPTCHA image on the query form
var ImageLocator = browser.ElementLocator{browser.ID("Capcha_CaptchaImageUP")}

// Solver transcribes a numeric CAPTCHA image
type Solver interface {
	Solve(ctx context.Context, image []byte) (string, error)
	Name() string
}

// Challenge is a CAPTCHA waiting for a human
type Challenge struct {
	ID        string
	Image     []byte
	CreatedAt time.Time
}

// Prompter asks a human to transcribe a challenge. It returns an error
// wrapping ErrCaptchaCancelled when the operator declines and
// ErrPromptTimedOut when a configured limit passes first.
type Prompter interface {
	Prompt(ctx context.Context, ch Challenge) (string, error)
}

// Resolver captures the CAPTCHA image and turns it into text
type Resolver struct {
	solver   Solver
	prompter Prompter
	locate   browser.LocateOptions
	logger   *logrus.Logger

	solved    atomic.Int64
	manual    atomic.Int64
	cancelled atomic.Int64
	timedOut  atomic.Int64
}

// NewResolver creates a resolver. solver may be nil, in which case every
// challenge goes to the prompter.
func NewResolver(solver Solver, prompter Prompter, locate browser.LocateOptions, logger *logrus.Logger) *Resolver {
	return &Resolver{
		solver:   solver,
		prompter: prompter,
		locate:   locate,
		logger:   logger,
	}
}

// Capture locates the CAPTCHA image and returns its pixels
func (r *Resolver) Capture(ctx context.Context, d browser.Driver) ([]byte, error) {
	match, err := browser.Locate(ctx, d, ImageLocator, r.locate)
	if err != nil {
		return nil, fmt.Errorf("locate captcha image: %w", err)
	}
	image, err := match.Element.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture captcha image: %w", err)
	}
	if len(image) == 0 {
		return nil, errors.New("capture captcha image: empty screenshot")
	}
	return image, nil
}

// Resolve captures the CAPTCHA and returns its text. Any solver failure
// falls back to the prompter, which is asked exactly once. Capture errors
// are returned as-is; an operator cancellation wraps ErrCaptchaCancelled.
func (r *Resolver) Resolve(ctx context.Context, d browser.Driver, challengeID string) (string, error) {
	image, err := r.Capture(ctx, d)
	if err != nil {
		return "", err
	}

	log := r.logger.WithField("challenge_id", challengeID)

	if r.solver != nil {
		text, err := r.solver.Solve(ctx, image)
		text = strings.TrimSpace(text)
		switch {
		case err == nil && text != "":
			r.solved.Add(1)
			log.WithField("solver", r.solver.Name()).Info("CAPTCHA solved automatically")
			return text, nil
		case ctx.Err() != nil:
			return "", ctx.Err()
		default:
			log.WithFields(logrus.Fields{
				"solver": r.solver.Name(),
				"error":  errString(err),
			}).Warn("Automatic CAPTCHA solving failed, asking operator")
		}
	}

	if r.prompter == nil {
		return "", fmt.Errorf("%w: no operator prompt configured", ErrSolverUnavailable)
	}

	text, err := r.prompter.Prompt(ctx, Challenge{ID: challengeID, Image: image, CreatedAt: time.Now()})
	if err != nil {
		switch {
		case errors.Is(err, ErrCaptchaCancelled):
			r.cancelled.Add(1)
			log.Warn("CAPTCHA cancelled by operator")
		case errors.Is(err, ErrPromptTimedOut):
			r.timedOut.Add(1)
			log.Warn("CAPTCHA prompt timed out")
		}
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		r.cancelled.Add(1)
		return "", fmt.Errorf("%w: empty answer", ErrCaptchaCancelled)
	}

	r.manual.Add(1)
	log.Info("CAPTCHA answered by operator")
	return text, nil
}

// Stats returns resolution counters
func (r *Resolver) Stats() map[string]interface{} {
	solver := "none"
	if r.solver != nil {
		solver = r.solver.Name()
	}
	return map[string]interface{}{
		"solver":    solver,
		"solved":    r.solved.Load(),
		"manual":    r.manual.Load(),
		"cancelled": r.cancelled.Load(),
		"timed_out": r.timedOut.Load(),
	}
}

func errString(err error) string {
	if err == nil {
		return "empty solution"
	}
	return err.Error()
}

