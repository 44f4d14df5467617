package captcha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	hintStyle    = lipgloss.NewStyle().Faint(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// TerminalPrompter asks the operator on the controlling terminal. The image
// is written next to the results so it can be opened while typing. Prompts
// are shown one at a time since they share the terminal.
type TerminalPrompter struct {
	turn   chan struct{}
	dir    string
	in     io.Reader
	out    io.Writer
	logger *logrus.Logger
}

// NewTerminalPrompter creates a prompter that stores images under dir
func NewTerminalPrompter(dir string, in io.Reader, out io.Writer, logger *logrus.Logger) *TerminalPrompter {
	return &TerminalPrompter{turn: make(chan struct{}, 1), dir: dir, in: in, out: out, logger: logger}
}

var unsafeChallengeID = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// imagePath is where the challenge image is written for the operator
func (p *TerminalPrompter) imagePath(id string) string {
	name := unsafeChallengeID.ReplaceAllString(id, "_")
	if name == "" {
		name = "temp"
	}
	return filepath.Join(p.dir, "captcha_"+name+".png")
}

// Prompt shows the challenge and blocks until the operator submits or
// cancels. Concurrent calls wait their turn.
func (p *TerminalPrompter) Prompt(ctx context.Context, ch Challenge) (string, error) {
	select {
	case p.turn <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-p.turn }()

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", fmt.Errorf("create captcha dir: %w", err)
	}
	path := p.imagePath(ch.ID)
	if err := os.WriteFile(path, ch.Image, 0o644); err != nil {
		return "", fmt.Errorf("write captcha image: %w", err)
	}
	defer os.Remove(path)

	p.logger.WithField("image", path).Info("Waiting for operator CAPTCHA input")

	program := tea.NewProgram(newPromptModel(path),
		tea.WithContext(ctx),
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
	)
	final, err := program.Run()
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return "", fmt.Errorf("%w: prompt interrupted", ErrCaptchaCancelled)
		}
		return "", fmt.Errorf("captcha prompt: %w", err)
	}

	m, ok := final.(promptModel)
	if !ok || m.cancelled || m.value == "" {
		return "", ErrCaptchaCancelled
	}
	return m.value, nil
}

type promptModel struct {
	input     textinput.Model
	imagePath string
	warning   string
	value     string
	cancelled bool
}

func newPromptModel(imagePath string) promptModel {
	ti := textinput.New()
	ti.Placeholder = "texto del CAPTCHA"
	ti.CharLimit = 16
	ti.Width = 20
	ti.Focus()

	return promptModel{input: ti, imagePath: imagePath}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			value := strings.TrimSpace(m.input.Value())
			if value == "" {
				m.warning = "Por favor ingrese el texto del CAPTCHA"
				return m, nil
			}
			m.value = value
			return m, tea.Quit
		case tea.KeyEsc, tea.KeyCtrlC:
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.value != "" || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Resolver CAPTCHA"))
	b.WriteString("\n\n")
	b.WriteString("Imagen: " + m.imagePath + "\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.warning != "" {
		b.WriteString(warningStyle.Render(m.warning) + "\n")
	}
	b.WriteString(hintStyle.Render("enter: enviar • esc: cancelar"))
	b.WriteString("\n")
	return b.String()
}
