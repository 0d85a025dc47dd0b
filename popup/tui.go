package popup

import (
	"context"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SystemClipboard writes the OS clipboard through atotto/clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

type keyMap struct {
	extract, copy, quit, forceQuit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		extract: key.NewBinding(
			key.WithKeys("e", "enter"),
			key.WithHelp("e", "extract transcript"),
		),
		copy: key.NewBinding(
			key.WithKeys("c", "y"),
			key.WithHelp("c", "copy"),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q", "quit"),
		),
		forceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
		),
	}
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0033")).Padding(0, 1)
	frameStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	buttonStyle   = lipgloss.NewStyle().Padding(0, 2).Background(lipgloss.Color("#CC0000")).Foreground(lipgloss.Color("#FFFFFF"))
	disabledStyle = lipgloss.NewStyle().Padding(0, 2).Background(lipgloss.Color("236")).Foreground(lipgloss.Color("242"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
)

// stateMsg tells the model the controller state changed.
type stateMsg struct{}

type copyDoneMsg struct{ err error }

type model struct {
	ctx    context.Context
	ctrl   *Controller
	keys   keyMap
	vp     viewport.Model
	ready  bool
	width  int
	status string
}

func newModel(ctx context.Context, ctrl *Controller) *model {
	return &model{ctx: ctx, ctrl: ctrl, keys: newKeyMap()}
}

func (m *model) Init() tea.Cmd { return nil }

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case stateMsg:
		m.refresh()
		return m, nil

	case copyDoneMsg:
		m.status = ""
		if msg.err != nil {
			m.status = "clipboard: " + msg.err.Error()
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.forceQuit), key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.extract):
			// Controller callbacks Send into the program; never call
			// them inside Update.
			ctx, ctrl := m.ctx, m.ctrl
			return m, func() tea.Msg {
				ctrl.OnExtractClick(ctx)
				return stateMsg{}
			}
		case key.Matches(msg, m.keys.copy):
			if !m.ctrl.State().CopyEnabled {
				return m, nil
			}
			ctrl := m.ctrl
			return m, func() tea.Msg {
				return copyDoneMsg{err: ctrl.OnCopyClick()}
			}
		}
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *model) resize(w, h int) {
	m.width = w
	vpHeight := h - 8
	if vpHeight < 3 {
		vpHeight = 3
	}
	vpWidth := w - 4
	if vpWidth < 10 {
		vpWidth = 10
	}
	if !m.ready {
		m.vp = viewport.New(vpWidth, vpHeight)
		m.ready = true
	} else {
		m.vp.Width = vpWidth
		m.vp.Height = vpHeight
	}
	m.refresh()
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	text := m.ctrl.State().Display
	m.vp.SetContent(lipgloss.NewStyle().Width(m.vp.Width).Render(text))
}

func (m *model) View() string {
	if !m.ready {
		return "loading..."
	}
	st := m.ctrl.State()

	var b strings.Builder
	b.WriteString(titleStyle.Render("YouTube Transcript"))
	b.WriteString("\n")
	b.WriteString(frameStyle.Render(m.vp.View()))
	b.WriteString("\n")

	extract := buttonStyle.Render("Extract Transcript")
	if st.Busy {
		extract = disabledStyle.Render("Extracting...")
	}
	copyBtn := disabledStyle.Render(st.CopyLabel)
	if st.CopyEnabled {
		copyBtn = buttonStyle.Render(st.CopyLabel)
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, extract, " ", copyBtn))
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(errStyle.Render(m.status))
		b.WriteString("\n")
	}
	help := []string{
		m.keys.extract.Help().Key + " " + m.keys.extract.Help().Desc,
		m.keys.copy.Help().Key + " " + m.keys.copy.Help().Desc,
		"↑/↓ scroll",
		m.keys.quit.Help().Key + " " + m.keys.quit.Help().Desc,
	}
	b.WriteString(helpStyle.Render(strings.Join(help, " • ")))
	return b.String()
}

// Run shows the popup in the terminal until the user quits or ctx ends.
func Run(ctx context.Context, ctrl *Controller, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(newModel(ctx, ctrl), opts...)
	ctrl.SetOnChange(func() { p.Send(stateMsg{}) })
	defer ctrl.SetOnChange(nil)

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
