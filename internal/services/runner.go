package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adresconsulta/eps-api/internal/artifacts"
	"github.com/adresconsulta/eps-api/internal/browser"
	"github.com/adresconsulta/eps-api/internal/captcha"
	"github.com/adresconsulta/eps-api/internal/extractor"
	"github.com/adresconsulta/eps-api/internal/logger"
	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/adresconsulta/eps-api/internal/navigator"
	"github.com/sirupsen/logrus"
)

// Operator-facing failure messages
const (
	MessageCaptchaCancelled = "CAPTCHA cancelado por el operador"
	MessageCaptchaTimedOut  = "CAPTCHA sin respuesta del operador"
	MessageInterrupted      = "Consulta interrumpida"
)

const diagnosticsTimeout = 10 * time.Second

// Runner executes one query job on its own browser session. It is the
// only writer of the job record while the job runs.
type Runner struct {
	opener    browser.Opener
	portal    Portal
	captcha   CaptchaResolver
	artifacts ArtifactStore
	store     JobStore
	events    Publisher
	logger    *logrus.Logger

	// LinkBase prefixes artifact download links
	LinkBase string
	now      func() time.Time
}

// NewRunner wires a runner
func NewRunner(opener browser.Opener, portal Portal, resolver CaptchaResolver, store ArtifactStore, jobs JobStore, events Publisher, logger *logrus.Logger) *Runner {
	return &Runner{
		opener:    opener,
		portal:    portal,
		captcha:   resolver,
		artifacts: store,
		store:     jobs,
		events:    events,
		logger:    logger,
		LinkBase:  "/api/v1/artifacts",
		now:       time.Now,
	}
}

// Start runs the job in the background. The channel yields the terminal
// snapshot once and is then closed.
func (r *Runner) Start(ctx context.Context, job models.QueryJob) <-chan models.QueryJob {
	done := make(chan models.QueryJob, 1)
	go func() {
		defer close(done)
		done <- r.Run(ctx, job)
	}()
	return done
}

type step struct {
	state   models.JobState
	message string
	run     func(ctx context.Context) error
}

// Run drives the job to a terminal state and returns that snapshot. The
// browser session is released on every path.
func (r *Runner) Run(ctx context.Context, job models.QueryJob) (final models.QueryJob) {
	log := logger.WithJob(r.logger, job.ID, job.DocumentType, job.DocumentNumber)
	started := r.now()
	r.commit(ctx, job)

	var d browser.Driver
	defer func() {
		if p := recover(); p != nil {
			log.WithField("panic", p).Error("Query worker panicked")
			r.fail(ctx, &job, d, fmt.Errorf("internal error: %v", p))
			final = job
		}
		if d != nil {
			r.opener.Release(d)
		}
	}()

	var err error
	d, err = r.opener.Open(ctx)
	if err != nil {
		d = nil
		r.fail(ctx, &job, nil, fmt.Errorf("open browser: %w", err))
		return job
	}

	var (
		before []string
		answer string
		page   navigator.Page
	)

	steps := []step{
		{models.StateInitializing, "Abriendo portal ADRES", func(ctx context.Context) error {
			return r.portal.Open(ctx, d)
		}},
		{models.StateSelectingDocumentType, "Seleccionando tipo de documento " + job.DocumentType, func(ctx context.Context) error {
			return r.portal.SelectDocumentType(ctx, d, job.DocumentType)
		}},
		{models.StateEnteringDocumentNumber, "Ingresando número de documento", func(ctx context.Context) error {
			return r.portal.EnterDocumentNumber(ctx, d, job.DocumentNumber)
		}},
		{models.StateResolvingCaptcha, "Resolviendo CAPTCHA", func(ctx context.Context) error {
			var err error
			answer, err = r.captcha.Resolve(ctx, d, job.ID)
			return err
		}},
		{models.StateEnteringCaptcha, "Ingresando CAPTCHA", func(ctx context.Context) error {
			return r.portal.EnterCaptcha(ctx, d, answer)
		}},
		{models.StateSubmitting, "Enviando formulario", func(ctx context.Context) error {
			var err error
			before, err = r.portal.Submit(ctx, d)
			return err
		}},
		{models.StateCapturingResults, "Capturando resultados", func(ctx context.Context) error {
			var err error
			page, err = r.portal.CaptureResults(ctx, d, before)
			return err
		}},
	}

	for _, s := range steps {
		job.CaptchaID = ""
		if s.state == models.StateResolvingCaptcha {
			job.CaptchaID = job.ID
		}
		if err := r.advance(ctx, &job, s.state, s.message); err != nil {
			r.fail(ctx, &job, d, err)
			return job
		}
		if err := s.run(ctx); err != nil {
			log.WithError(err).WithField("state", s.state).Warn("Query step failed")
			r.fail(ctx, &job, d, err)
			return job
		}
	}
	job.CaptchaID = ""

	if err := r.complete(ctx, &job, page); err != nil {
		r.fail(ctx, &job, d, err)
		return job
	}

	log.WithFields(logrus.Fields{
		"duration": r.now().Sub(started).String(),
		"success":  job.Result.Success,
	}).Info("Query completed")
	return job
}

func (r *Runner) complete(ctx context.Context, job *models.QueryJob, page navigator.Page) error {
	record := extractor.Extract(page.HTML)
	text := page.Text
	if text == "" {
		text = extractor.Text(page.HTML)
	}

	name := artifacts.SafeName(job.DocumentType + "_" + job.DocumentNumber)
	files, err := r.artifacts.SaveResult(context.WithoutCancel(ctx), artifacts.Result{
		Name:       name,
		HTML:       page.HTML,
		Record:     record,
		Text:       text,
		Screenshot: page.Screenshot,
	})
	if err != nil {
		return fmt.Errorf("save results: %w", err)
	}

	links := make(map[string]string, len(files))
	for kind := range files {
		links[kind] = fmt.Sprintf("%s/%s/%s", r.LinkBase, name, kind)
	}

	job.Result = &record
	job.ArtifactName = name
	job.Artifacts = files
	job.DownloadLinks = links

	message := "Consulta completada"
	if !record.Success {
		message = "Consulta completada sin datos de afiliación reconocibles"
	}
	return r.advance(ctx, job, models.StateCompleted, message)
}

func (r *Runner) advance(ctx context.Context, job *models.QueryJob, state models.JobState, message string) error {
	if err := job.Advance(state, message, r.now()); err != nil {
		return err
	}
	r.commit(ctx, *job)
	return nil
}

// commit stores and publishes a snapshot; the write survives cancellation
// so the terminal state is never lost.
func (r *Runner) commit(ctx context.Context, job models.QueryJob) {
	ctx = context.WithoutCancel(ctx)
	if err := r.store.SaveJob(ctx, job); err != nil {
		r.logger.WithError(err).WithField("job_id", job.ID).Error("Failed to save job")
	}
	r.events.PublishJob(ctx, job)
}

func (r *Runner) fail(ctx context.Context, job *models.QueryJob, d browser.Driver, err error) {
	if job.State.Terminal() {
		return
	}
	job.CaptchaID = ""

	var message string
	switch {
	case errors.Is(err, captcha.ErrCaptchaCancelled):
		message = MessageCaptchaCancelled
	case errors.Is(err, captcha.ErrPromptTimedOut):
		message = MessageCaptchaTimedOut
	case ctx.Err() != nil:
		message = MessageInterrupted
	default:
		message = "Error: " + err.Error()
	}

	if d != nil && !operatorOutcome(err) {
		job.Diagnostics = r.diagnose(ctx, d, diagnosticPrefix(err))
	}

	job.Fail(err, message, r.now())
	r.commit(ctx, *job)
}

// operatorOutcome reports failures decided by the operator rather than the page
func operatorOutcome(err error) bool {
	return errors.Is(err, captcha.ErrCaptchaCancelled) || errors.Is(err, captcha.ErrPromptTimedOut)
}

func diagnosticPrefix(err error) string {
	switch {
	case errors.Is(err, browser.ErrElementNotFound):
		return "no_element_present"
	case errors.Is(err, browser.ErrInjectionFailed):
		return "write_failed"
	default:
		return "error"
	}
}

// diagnose captures the viewport and page source; failures are logged only
func (r *Runner) diagnose(ctx context.Context, d browser.Driver, prefix string) []string {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), diagnosticsTimeout)
	defer cancel()

	shot, err := d.Screenshot(ctx)
	if err != nil {
		r.logger.WithError(err).Debug("Diagnostic screenshot failed")
	}

	var html string
	if scope, err := d.TopScope(ctx); err == nil {
		html, err = d.PageSource(ctx, scope)
		if err != nil {
			r.logger.WithError(err).Debug("Diagnostic page source failed")
		}
	}

	saved, err := r.artifacts.SaveDiagnostics(ctx, prefix, shot, html)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to save diagnostics")
	}
	return saved
}
