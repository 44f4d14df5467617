package captcha

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type answer struct {
	text      string
	cancelled bool
}

type pendingChallenge struct {
	challenge Challenge
	reply     chan answer
}

// WebPrompter parks challenges until an operator answers them over HTTP
type WebPrompter struct {
	timeout time.Duration
	logger  *logrus.Logger

	mu      sync.Mutex
	pending map[string]*pendingChallenge
}

// NewWebPrompter creates a prompter. A challenge waits until it is answered
// or cancelled; a positive timeout bounds the wait.
func NewWebPrompter(timeout time.Duration, logger *logrus.Logger) *WebPrompter {
	return &WebPrompter{
		timeout: timeout,
		logger:  logger,
		pending: make(map[string]*pendingChallenge),
	}
}

// Prompt publishes the challenge and blocks until it is answered,
// cancelled, timed out, or ctx ends.
func (w *WebPrompter) Prompt(ctx context.Context, ch Challenge) (string, error) {
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now()
	}
	p := &pendingChallenge{challenge: ch, reply: make(chan answer, 1)}

	w.mu.Lock()
	if prev, ok := w.pending[ch.ID]; ok {
		select {
		case prev.reply <- answer{cancelled: true}:
		default:
		}
	}
	w.pending[ch.ID] = p
	w.mu.Unlock()

	defer w.remove(ch.ID, p)

	w.logger.WithField("challenge_id", ch.ID).Info("CAPTCHA waiting for operator")

	var timeout <-chan time.Time
	if w.timeout > 0 {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case a := <-p.reply:
		if a.cancelled {
			return "", ErrCaptchaCancelled
		}
		return a.text, nil
	case <-timeout:
		return "", fmt.Errorf("%w: no answer within %s", ErrPromptTimedOut, w.timeout)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (w *WebPrompter) remove(id string, p *pendingChallenge) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending[id] == p {
		delete(w.pending, id)
	}
}

func (w *WebPrompter) take(id string) (*pendingChallenge, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pending[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}
	delete(w.pending, id)
	return p, nil
}

// Answer delivers the operator's transcription
func (w *WebPrompter) Answer(id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyAnswer
	}
	p, err := w.take(id)
	if err != nil {
		return err
	}
	p.reply <- answer{text: text}
	return nil
}

// Cancel declines the challenge
func (w *WebPrompter) Cancel(id string) error {
	p, err := w.take(id)
	if err != nil {
		return err
	}
	p.reply <- answer{cancelled: true}
	return nil
}

// Pending lists waiting challenges, oldest first
func (w *WebPrompter) Pending() []Challenge {
	w.mu.Lock()
	out := make([]Challenge, 0, len(w.pending))
	for _, p := range w.pending {
		out = append(out, p.challenge)
	}
	w.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Image returns the PNG of a waiting challenge
func (w *WebPrompter) Image(id string) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	p, ok := w.pending[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrChallengeNotFound, id)
	}
	return p.challenge.Image, nil
}
