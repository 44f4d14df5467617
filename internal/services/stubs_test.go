package services

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/adresconsulta/eps-api/internal/artifacts"
	"github.com/adresconsulta/eps-api/internal/browser"
	"github.com/adresconsulta/eps-api/internal/browser/browsertest"
	"github.com/adresconsulta/eps-api/internal/logger"
	"github.com/adresconsulta/eps-api/internal/models"
	"github.com/adresconsulta/eps-api/internal/navigator"
	"github.com/stretchr/testify/require"
)

func resultPage(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("..", "extractor", "testdata", "resultado.html"))
	require.NoError(t, err)
	return string(b)
}

// stubPortal fails the step named in errs; block makes Open wait for ctx
type stubPortal struct {
	mu    sync.Mutex
	calls []string
	typed []string
	errs  map[string]error
	page  navigator.Page
	panic bool

	block bool
	// entered is closed once a blocking Open is waiting
	entered chan struct{}
}

func (p *stubPortal) step(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, name)
	return p.errs[name]
}

func (p *stubPortal) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *stubPortal) Open(ctx context.Context, _ browser.Driver) error {
	if p.panic {
		panic("portal exploded")
	}
	if p.block {
		if p.entered != nil {
			close(p.entered)
		}
		<-ctx.Done()
		return ctx.Err()
	}
	return p.step("open")
}

func (p *stubPortal) SelectDocumentType(_ context.Context, _ browser.Driver, code string) error {
	return p.step("select")
}

func (p *stubPortal) EnterDocumentNumber(_ context.Context, _ browser.Driver, number string) error {
	p.mu.Lock()
	p.typed = append(p.typed, number)
	p.mu.Unlock()
	return p.step("number")
}

func (p *stubPortal) EnterCaptcha(_ context.Context, _ browser.Driver, text string) error {
	p.mu.Lock()
	p.typed = append(p.typed, text)
	p.mu.Unlock()
	return p.step("captcha")
}

func (p *stubPortal) Submit(context.Context, browser.Driver) ([]string, error) {
	return []string{"main"}, p.step("submit")
}

func (p *stubPortal) CaptureResults(context.Context, browser.Driver, []string) (navigator.Page, error) {
	return p.page, p.step("capture")
}

// stubResolver answers with text or err and records what pollers saw
type stubResolver struct {
	text  string
	err   error
	store JobStore

	mu        sync.Mutex
	sawID     []string
	challenge []string
}

func (r *stubResolver) Resolve(ctx context.Context, _ browser.Driver, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.challenge = append(r.challenge, id)
	if r.store != nil {
		if job, err := r.store.Job(ctx, id); err == nil {
			r.sawID = append(r.sawID, job.CaptchaID)
		}
	}
	return r.text, r.err
}

func (r *stubResolver) Stats() map[string]interface{} { return map[string]interface{}{} }

// recorder keeps every published snapshot
type recorder struct {
	mu      sync.Mutex
	jobs    []models.QueryJob
	batches []models.BatchJob
}

func (r *recorder) PublishJob(_ context.Context, job models.QueryJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs = append(r.jobs, job.Clone())
}

func (r *recorder) PublishBatch(_ context.Context, batch models.BatchJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch.Clone())
}

func (r *recorder) Close() error { return nil }

func (r *recorder) States() []models.JobState {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.JobState, len(r.jobs))
	for i, j := range r.jobs {
		out[i] = j.State
	}
	return out
}

func (r *recorder) Jobs() []models.QueryJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.QueryJob(nil), r.jobs...)
}

func (r *recorder) Batches() []models.BatchJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.BatchJob(nil), r.batches...)
}

type fixture struct {
	runner   *Runner
	portal   *stubPortal
	resolver *stubResolver
	opener   *browsertest.Opener
	driver   *browsertest.Driver
	store    *MemoryStore
	files    *artifacts.Store
	events   *recorder
	dir      string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	log := logger.Discard()

	f := &fixture{
		portal: &stubPortal{
			errs: map[string]error{},
			page: navigator.Page{HTML: resultPage(t), Screenshot: []byte("\x89PNG result")},
		},
		driver: browsertest.NewDriver(&browsertest.Document{Source: "<html><body>formulario</body></html>"}),
		store:  NewMemoryStore(log),
		files:  artifacts.NewStore(artifacts.NewFSBlobs(""), filepath.Join(dir, "resultados"), filepath.Join(dir, "debug"), log),
		events: &recorder{},
		dir:    dir,
	}
	f.resolver = &stubResolver{text: "48213", store: f.store}
	f.opener = &browsertest.Opener{Driver: f.driver}
	f.runner = NewRunner(f.opener, f.portal, f.resolver, f.files, f.store, f.events, log)
	return f
}
