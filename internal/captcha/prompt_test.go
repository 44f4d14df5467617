package captcha

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adresconsulta/eps-api/internal/logger"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitPending(t *testing.T, w *WebPrompter, n int) []Challenge {
	t.Helper()
	var pending []Challenge
	require.Eventually(t, func() bool {
		pending = w.Pending()
		return len(pending) == n
	}, time.Second, 5*time.Millisecond)
	return pending
}

func TestWebPrompterAnswer(t *testing.T) {
	w := NewWebPrompter(0, logger.Discard())

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		text, err := w.Prompt(context.Background(), Challenge{ID: "job-1", Image: []byte("png")})
		done <- result{text, err}
	}()

	pending := waitPending(t, w, 1)
	assert.Equal(t, "job-1", pending[0].ID)

	img, err := w.Image("job-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), img)

	assert.ErrorIs(t, w.Answer("job-1", "  "), ErrEmptyAnswer)
	require.NoError(t, w.Answer("job-1", " 4821 "))

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, "4821", r.text)
	assert.Empty(t, w.Pending())
	assert.ErrorIs(t, w.Answer("job-1", "1"), ErrChallengeNotFound)
}

func TestWebPrompterCancel(t *testing.T) {
	w := NewWebPrompter(0, logger.Discard())
	done := make(chan error, 1)
	go func() {
		_, err := w.Prompt(context.Background(), Challenge{ID: "job-2"})
		done <- err
	}()

	waitPending(t, w, 1)
	require.NoError(t, w.Cancel("job-2"))
	assert.ErrorIs(t, <-done, ErrCaptchaCancelled)
	assert.ErrorIs(t, w.Cancel("job-2"), ErrChallengeNotFound)
}

func TestWebPrompterTimeoutAndContext(t *testing.T) {
	w := NewWebPrompter(20*time.Millisecond, logger.Discard())
	_, err := w.Prompt(context.Background(), Challenge{ID: "slow"})
	assert.ErrorIs(t, err, ErrPromptTimedOut)
	assert.NotErrorIs(t, err, ErrCaptchaCancelled)

	w = NewWebPrompter(0, logger.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = w.Prompt(ctx, Challenge{ID: "gone"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, w.Pending())
}

func TestPromptModel(t *testing.T) {
	m := newPromptModel("/tmp/captcha_temp.png")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(promptModel)
	assert.NotEmpty(t, m.warning, "empty input is rejected")
	assert.Empty(t, m.value)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("48213")})
	m = next.(promptModel)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(promptModel)
	assert.Equal(t, "48213", m.value)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())

	m = newPromptModel("x")
	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, next.(promptModel).cancelled)
}

func TestTerminalPrompterImagePerChallenge(t *testing.T) {
	dir := t.TempDir()
	p := NewTerminalPrompter(dir, strings.NewReader(""), io.Discard, logger.Discard())

	a := p.imagePath("CC_1_1760884862_3f2a9c1d")
	b := p.imagePath("CC_2_1760884862_77b0e2aa")

	assert.Equal(t, filepath.Join(dir, "captcha_CC_1_1760884862_3f2a9c1d.png"), a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, filepath.Join(dir, "captcha__etc_passwd.png"), p.imagePath("../etc/passwd"))
	assert.Equal(t, dir, filepath.Dir(p.imagePath("../etc/passwd")))
	assert.Equal(t, filepath.Join(dir, "captcha_temp.png"), p.imagePath(""))
}

func TestTerminalPrompterWaitsForTerminal(t *testing.T) {
	dir := t.TempDir()
	p := NewTerminalPrompter(dir, strings.NewReader(""), io.Discard, logger.Discard())

	// another challenge holds the terminal
	p.turn <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := p.Prompt(ctx, Challenge{ID: "job-2", Image: []byte("png")})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoFileExists(t, p.imagePath("job-2"))

	<-p.turn
}
