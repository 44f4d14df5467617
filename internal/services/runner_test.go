package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adresconsulta/eps-api/internal/browser"
	"github.com/adresconsulta/eps-api/internal/browser/browsertest"
	"github.com/adresconsulta/eps-api/internal/captcha"
	"github.com/adresconsulta/eps-api/internal/logger"
	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCompletes(t *testing.T) {
	f := newFixture(t)
	job := models.NewQueryJob("CC", "1006881471", time.Now())

	final := f.runner.Run(context.Background(), job)

	require.Equal(t, models.StateCompleted, final.State, final.Message)
	assert.Equal(t, 100, final.Progress)
	require.NotNil(t, final.Result)
	assert.True(t, final.Result.Success)
	assert.Equal(t, "JUAN CARLOS", final.Result.BasicInfo.Names)
	assert.Len(t, final.Result.Affiliations, 2)
	assert.Empty(t, final.CaptchaID)
	assert.Equal(t, []string{"1006881471", "48213"}, f.portal.typed)

	assert.Equal(t, "CC_1006881471", final.ArtifactName)
	for _, kind := range []string{"html", "json", "txt", "screenshot"} {
		require.Contains(t, final.Artifacts, kind)
		_, err := os.Stat(final.Artifacts[kind])
		assert.NoError(t, err, kind)
		assert.Equal(t, "/api/v1/artifacts/CC_1006881471/"+kind, final.DownloadLinks[kind])
	}

	stored, err := f.store.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateCompleted, stored.State)

	opened, released := f.opener.Counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, released)
	assert.True(t, f.driver.Closed())
}

func TestRunPublishesMonotonicProgress(t *testing.T) {
	f := newFixture(t)
	f.runner.Run(context.Background(), models.NewQueryJob("TI", "99", time.Now()))

	assert.Equal(t, []models.JobState{
		models.StateInitializing,
		models.StateInitializing,
		models.StateSelectingDocumentType,
		models.StateEnteringDocumentNumber,
		models.StateResolvingCaptcha,
		models.StateEnteringCaptcha,
		models.StateSubmitting,
		models.StateCapturingResults,
		models.StateCompleted,
	}, f.events.States())

	last := 0
	for _, j := range f.events.Jobs() {
		assert.GreaterOrEqual(t, j.Progress, last)
		last = j.Progress
		if j.State != models.StateCompleted {
			assert.Nil(t, j.Result, "result only on the terminal snapshot")
		}
	}
}

func TestRunExposesCaptchaIDWhileResolving(t *testing.T) {
	f := newFixture(t)
	job := models.NewQueryJob("CC", "1", time.Now())
	f.runner.Run(context.Background(), job)

	assert.Equal(t, []string{job.ID}, f.resolver.challenge)
	assert.Equal(t, []string{job.ID}, f.resolver.sawID)

	for _, j := range f.events.Jobs() {
		if j.State == models.StateResolvingCaptcha {
			assert.Equal(t, job.ID, j.CaptchaID)
		} else {
			assert.Empty(t, j.CaptchaID, j.State)
		}
	}
}

func TestRunWithoutRecognisableRecord(t *testing.T) {
	f := newFixture(t)
	f.portal.page.HTML = "<html><body>No se encontraron resultados</body></html>"

	final := f.runner.Run(context.Background(), models.NewQueryJob("CC", "1", time.Now()))

	assert.Equal(t, models.StateCompleted, final.State)
	require.NotNil(t, final.Result)
	assert.False(t, final.Result.Success)
	assert.Contains(t, final.Message, "sin datos")
}

func TestRunStepFailureCapturesDiagnostics(t *testing.T) {
	cases := []struct {
		step   string
		err    error
		prefix string
	}{
		{"select", fmt.Errorf("locate document type select: %w", browser.ErrElementNotFound), "no_element_present"},
		{"number", fmt.Errorf("write document number: %w", browser.ErrInjectionFailed), "write_failed"},
		{"submit", errors.New("click refused"), "error"},
	}

	for _, tc := range cases {
		t.Run(tc.step, func(t *testing.T) {
			f := newFixture(t)
			f.portal.errs[tc.step] = tc.err

			final := f.runner.Run(context.Background(), models.NewQueryJob("CC", "1", time.Now()))

			assert.Equal(t, models.StateFailed, final.State)
			assert.Equal(t, 100, final.Progress)
			assert.Equal(t, tc.err.Error(), final.Error)
			assert.True(t, strings.HasPrefix(final.Message, "Error: "))
			assert.Nil(t, final.Result)

			require.Len(t, final.Diagnostics, 2)
			for _, path := range final.Diagnostics {
				assert.True(t, strings.HasPrefix(filepath.Base(path), tc.prefix+"_"), path)
				_, err := os.Stat(path)
				assert.NoError(t, err)
			}

			_, released := f.opener.Counts()
			assert.Equal(t, 1, released)
		})
	}
}

func TestRunCaptchaPromptTimedOut(t *testing.T) {
	f := newFixture(t)
	f.driver.SetDocument(&browsertest.Document{Elements: []*browsertest.Element{
		{ID: "Capcha_CaptchaImageUP", Image: []byte("\x89PNG captcha")},
	}})
	log := logger.Discard()
	locate := browser.LocateOptions{Timeout: time.Second, PollInterval: 10 * time.Millisecond, MaxDepth: 1, SearchFrames: true}
	resolver := captcha.NewResolver(nil, captcha.NewWebPrompter(50*time.Millisecond, log), locate, log)
	runner := NewRunner(f.opener, f.portal, resolver, f.files, f.store, f.events, log)

	final := runner.Run(context.Background(), models.NewQueryJob("CC", "1", time.Now()))

	assert.Equal(t, models.StateFailed, final.State)
	assert.Equal(t, MessageCaptchaTimedOut, final.Message)
	assert.Contains(t, final.Error, "timed out")
	assert.NotContains(t, final.Error, "cancelled")
	assert.Empty(t, final.Diagnostics)
	assert.Equal(t, int64(1), resolver.Stats()["timed_out"])
	assert.Equal(t, int64(0), resolver.Stats()["cancelled"])
}

func TestRunCaptchaCancelled(t *testing.T) {
	f := newFixture(t)
	f.resolver.err = fmt.Errorf("prompt: %w", captcha.ErrCaptchaCancelled)

	final := f.runner.Run(context.Background(), models.NewQueryJob("CC", "1", time.Now()))

	assert.Equal(t, models.StateFailed, final.State)
	assert.Equal(t, MessageCaptchaCancelled, final.Message)
	assert.Empty(t, final.Diagnostics)
	assert.Empty(t, final.CaptchaID)
	assert.NotContains(t, f.portal.Calls(), "captcha")

	_, released := f.opener.Counts()
	assert.Equal(t, 1, released)
}

func TestRunBrowserUnavailable(t *testing.T) {
	f := newFixture(t)
	f.opener.Err = errors.New("chrome not found")

	final := f.runner.Run(context.Background(), models.NewQueryJob("CC", "1", time.Now()))

	assert.Equal(t, models.StateFailed, final.State)
	assert.Contains(t, final.Error, "chrome not found")
	assert.Empty(t, f.portal.Calls())

	opened, released := f.opener.Counts()
	assert.Zero(t, opened)
	assert.Zero(t, released)
}

func TestRunInterrupted(t *testing.T) {
	f := newFixture(t)
	f.portal.block = true
	f.portal.entered = make(chan struct{})
	job := models.NewQueryJob("CC", "1", time.Now())

	ctx, cancel := context.WithCancel(context.Background())
	done := f.runner.Start(ctx, job)
	<-f.portal.entered
	cancel()

	select {
	case final := <-done:
		assert.Equal(t, models.StateFailed, final.State)
		assert.Equal(t, MessageInterrupted, final.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}

	stored, err := f.store.Job(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StateFailed, stored.State)

	_, released := f.opener.Counts()
	assert.Equal(t, 1, released)
}

func TestRunRecoversFromPanic(t *testing.T) {
	f := newFixture(t)
	f.portal.panic = true

	final := f.runner.Run(context.Background(), models.NewQueryJob("CC", "1", time.Now()))

	assert.Equal(t, models.StateFailed, final.State)
	assert.Contains(t, final.Error, "portal exploded")
	_, released := f.opener.Counts()
	assert.Equal(t, 1, released)
}

func TestStartDeliversOnce(t *testing.T) {
	f := newFixture(t)
	done := f.runner.Start(context.Background(), models.NewQueryJob("CC", "1", time.Now()))

	final, ok := <-done
	require.True(t, ok)
	assert.True(t, final.State.Terminal())

	_, ok = <-done
	assert.False(t, ok)
}
