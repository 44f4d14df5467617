package navigator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adresconsulta/eps-api/internal/browser"
	"github.com/adresconsulta/eps-api/internal/browser/browsertest"
	"github.com/adresconsulta/eps-api/internal/config"
	"github.com/adresconsulta/eps-api/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		URL: "https://portal.test/consulta",
		Locate: browser.LocateOptions{
			Timeout:      30 * time.Millisecond,
			PollInterval: 5 * time.Millisecond,
			MaxDepth:     3,
			SearchFrames: true,
		},
		CaptchaTimeout: 20 * time.Millisecond,
		WindowTimeout:  20 * time.Millisecond,
		ResultsTimeout: 20 * time.Millisecond,
		PollInterval:   5 * time.Millisecond,
	}
}

func newNavigator() *WebNavigator {
	inj := browser.NewInjector(logger.Discard())
	inj.CharDelay = 0
	inj.Pause = 0
	inj.Relocate.Timeout = 20 * time.Millisecond
	inj.Relocate.PollInterval = 5 * time.Millisecond
	return NewWebNavigator(testOptions(), inj, logger.Discard())
}

// formDocument mirrors the portal: the form lives inside an iframe
func formDocument() (*browsertest.Document, map[string]*browsertest.Element) {
	els := map[string]*browsertest.Element{
		"tipoDoc":  {ID: "tipoDoc", Name: "tipoDoc", Opts: []string{"CC", "TI", "CE"}, Val: "CC"},
		"numero":   {ID: "txtNumDoc", CSS: []string{"input[type='text'],input[type='tel'],input[type='number']"}},
		"captcha":  {ID: "Capcha_CaptchaTextBox"},
		"image":    {ID: "Capcha_CaptchaImageUP", Image: []byte("png")},
		"consulta": {ID: "btnConsultar"},
	}
	form := &browsertest.Document{}
	for _, e := range els {
		form.Elements = append(form.Elements, e)
	}
	return &browsertest.Document{
		Frames: []*browsertest.Frame{
			{ID: "recaptcha", Blocked: true},
			{ID: "formulario", Doc: form},
		},
	}, els
}

func TestOpenNavigates(t *testing.T) {
	doc, _ := formDocument()
	d := browsertest.NewDriver(doc)

	require.NoError(t, newNavigator().Open(context.Background(), d))
	assert.Equal(t, []string{"https://portal.test/consulta"}, d.URLs())

	d.NavErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	assert.Error(t, newNavigator().Open(context.Background(), d))
}

func TestSelectDocumentType(t *testing.T) {
	doc, els := formDocument()
	d := browsertest.NewDriver(doc)
	nav := newNavigator()

	require.NoError(t, nav.SelectDocumentType(context.Background(), d, "TI"))
	assert.Equal(t, "TI", els["tipoDoc"].CurrentValue())

	err := nav.SelectDocumentType(context.Background(), d, "PT")
	assert.ErrorIs(t, err, ErrOptionUnavailable)
	assert.Equal(t, "TI", els["tipoDoc"].CurrentValue())
}

func TestSelectDocumentTypeMissingSelect(t *testing.T) {
	d := browsertest.NewDriver(&browsertest.Document{})
	err := newNavigator().SelectDocumentType(context.Background(), d, "CC")
	assert.ErrorIs(t, err, browser.ErrElementNotFound)
}

func TestEnterDocumentNumberInsideFrame(t *testing.T) {
	doc, els := formDocument()
	els["numero"].IgnoreBulkKeys = true
	d := browsertest.NewDriver(doc)

	require.NoError(t, newNavigator().EnterDocumentNumber(context.Background(), d, "1006881471"))
	assert.Equal(t, "1006881471", els["numero"].CurrentValue())
}

func TestEnterDocumentNumberByPlaceholder(t *testing.T) {
	field := &browsertest.Element{CSS: []string{"input[placeholder*='Número de documento']"}}
	d := browsertest.NewDriver(&browsertest.Document{Elements: []*browsertest.Element{field}})

	require.NoError(t, newNavigator().EnterDocumentNumber(context.Background(), d, "52"))
	assert.Equal(t, "52", field.CurrentValue())
}

func TestEnterCaptcha(t *testing.T) {
	t.Run("dedicated field", func(t *testing.T) {
		doc, els := formDocument()
		d := browsertest.NewDriver(doc)
		require.NoError(t, newNavigator().EnterCaptcha(context.Background(), d, "48213"))
		assert.Equal(t, "48213", els["captcha"].CurrentValue())
	})

	t.Run("fallback skips document number", func(t *testing.T) {
		sel := "input[type='text'],input[type='tel'],input[type='number']"
		numero := &browsertest.Element{ID: "txtNumDoc", CSS: []string{sel}, Val: "1006881471"}
		hidden := &browsertest.Element{ID: "oculto", CSS: []string{sel}, Hidden: true}
		other := &browsertest.Element{ID: "codigo", CSS: []string{sel}}
		d := browsertest.NewDriver(&browsertest.Document{
			Elements: []*browsertest.Element{numero, hidden, other},
		})

		require.NoError(t, newNavigator().EnterCaptcha(context.Background(), d, "777"))
		assert.Equal(t, "777", other.CurrentValue())
		assert.Equal(t, "1006881471", numero.CurrentValue())
		assert.Empty(t, hidden.CurrentValue())
	})

	t.Run("no input at all", func(t *testing.T) {
		d := browsertest.NewDriver(&browsertest.Document{})
		err := newNavigator().EnterCaptcha(context.Background(), d, "1")
		assert.ErrorIs(t, err, browser.ErrElementNotFound)
	})
}

func TestSubmitReturnsHandlesBeforeClick(t *testing.T) {
	doc, els := formDocument()
	d := browsertest.NewDriver(doc)
	els["consulta"].OnClick = func() {
		d.OpenWindow("popup", &browsertest.Document{Source: "<table></table>"})
	}

	before, err := newNavigator().Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, before)
	assert.Equal(t, 1, els["consulta"].CallCount("Click"))

	handles, _ := d.WindowHandles(context.Background())
	assert.Equal(t, []string{"main", "popup"}, handles)
}

func TestSubmitFallsBackToAnySubmit(t *testing.T) {
	btn := &browsertest.Element{CSS: []string{"input[type='submit']"}}
	d := browsertest.NewDriver(&browsertest.Document{Elements: []*browsertest.Element{btn}})

	_, err := newNavigator().Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, 1, btn.CallCount("Click"))
}

func resultDocument(source string) *browsertest.Document {
	return &browsertest.Document{
		Source:   source,
		Elements: []*browsertest.Element{{CSS: []string{"table"}}},
	}
}

func TestCaptureResultsPrefersNewWindow(t *testing.T) {
	doc, _ := formDocument()
	d := browsertest.NewDriver(doc)
	d.OpenWindow("popup", resultDocument("<html><table><tr><td>AFILIADO</td></tr></table></html>"))

	page, err := newNavigator().CaptureResults(context.Background(), d, []string{"main"})
	require.NoError(t, err)
	assert.Equal(t, "popup", page.Window)
	assert.Equal(t, "popup", d.Active())
	assert.Contains(t, page.HTML, "AFILIADO")
	assert.Equal(t, "AFILIADO", page.Text)
	assert.NotEmpty(t, page.Screenshot)
}

func TestCaptureResultsUsesPopulatedFrame(t *testing.T) {
	d := browsertest.NewDriver(&browsertest.Document{
		Source: "<html>shell</html>",
		Frames: []*browsertest.Frame{
			{ID: "vacio", Doc: &browsertest.Document{Text: "cargando"}},
			{ID: "resultado", Doc: resultDocument("<table><tr><td>INFORMACIÓN DEL AFILIADO EN LA BDUA</td></tr></table>")},
		},
	})

	page, err := newNavigator().CaptureResults(context.Background(), d, []string{"main"})
	require.NoError(t, err)
	assert.Empty(t, page.Window)
	assert.Equal(t, "top/#resultado", page.Scope.String())
	assert.Contains(t, page.HTML, "BDUA")
}

func TestCaptureResultsFallsBackToBodyText(t *testing.T) {
	d := browsertest.NewDriver(&browsertest.Document{Text: "Sin resultados para el documento"})
	d.SourceErr = errors.New("target closed")

	page, err := newNavigator().CaptureResults(context.Background(), d, []string{"main"})
	require.NoError(t, err)
	assert.Equal(t, "Sin resultados para el documento", page.HTML)
}

func TestCaptureResultsWithoutContent(t *testing.T) {
	d := browsertest.NewDriver(&browsertest.Document{})
	d.SourceErr = errors.New("target closed")

	_, err := newNavigator().CaptureResults(context.Background(), d, []string{"main"})
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.PortalConfig{
		URL:           "https://x",
		LocateTimeout: time.Second,
		PollInterval:  100 * time.Millisecond,
		MaxFrameDepth: 0,
	}
	opts := OptionsFromConfig(cfg)
	assert.False(t, opts.Locate.SearchFrames)
	assert.Equal(t, time.Second, opts.Locate.Timeout)
}
