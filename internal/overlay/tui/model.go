package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/msto63/overlay/internal/overlay/pipeline"
	"github.com/msto63/overlay/internal/overlay/qna"
)

// Controller is the pipeline surface the view drives
type Controller interface {
	Snapshot() pipeline.Snapshot
	Start(ctx context.Context) error
	Stop() error
	Capture(ctx context.Context) (qna.QnA, bool, error)
	ClearTranscript()
	ToggleLanguage(ctx context.Context) error
	Subscribe() (<-chan pipeline.Event, func())
}

const meterWidth = 20

// Model is the Bubbletea model of the live view
type Model struct {
	ctx    context.Context
	ctrl   Controller
	events <-chan pipeline.Event
	cancel func()

	width  int
	height int
	ready  bool

	viewport viewport.Model
	snap     pipeline.Snapshot
	status   string
	err      error
	busy     bool
}

// New creates the model and subscribes to pipeline events
func New(ctx context.Context, ctrl Controller) Model {
	events, cancel := ctrl.Subscribe()
	return Model{
		ctx:    ctx,
		ctrl:   ctrl,
		events: events,
		cancel: cancel,
		snap:   ctrl.Snapshot(),
		status: "Ready",
	}
}

// Run starts the program and blocks until the user quits
func Run(ctx context.Context, ctrl Controller) error {
	m := New(ctx, ctrl)
	defer m.cancel()
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForEvent(m.events), tick())
}

func waitForEvent(events <-chan pipeline.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return feedClosedMsg{}
		}
		return eventMsg(e)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - m.fixedHeight()
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width-2, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 2
			m.viewport.Height = vpHeight
		}
		m.viewport.SetContent(m.renderHistory())

	case eventMsg:
		m.snap = m.ctrl.Snapshot()
		if msg.Kind == pipeline.EventError && msg.Err != "" {
			m.err = fmt.Errorf("%s", msg.Err)
		}
		if m.ready {
			m.viewport.SetContent(m.renderHistory())
		}
		cmds = append(cmds, waitForEvent(m.events))

	case feedClosedMsg:
		return m, tea.Quit

	case tickMsg:
		m.snap = m.ctrl.Snapshot()
		cmds = append(cmds, tick())

	case captureDoneMsg:
		m.busy = false
		switch {
		case msg.err != nil:
			m.err = msg.err
		case !msg.found:
			m.status = "No clear question in the current transcript"
		default:
			m.err = nil
			m.status = fmt.Sprintf("Captured Q%d", msg.item.QuestionNumber)
		}
		m.snap = m.ctrl.Snapshot()
		if m.ready {
			m.viewport.SetContent(m.renderHistory())
			m.viewport.GotoTop()
		}

	case actionDoneMsg:
		m.busy = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.status = msg.action
		}
		m.snap = m.ctrl.Snapshot()
	}

	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// handleKeyPress handles keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "q":
			return m, tea.Quit

		case "c":
			if m.busy {
				return m, nil
			}
			m.busy = true
			m.status = "Capturing..."
			return m, m.capture()

		case "x":
			m.ctrl.ClearTranscript()
			m.err = nil
			m.status = "Transcript cleared"
			m.snap = m.ctrl.Snapshot()
			if m.ready {
				m.viewport.SetContent(m.renderHistory())
			}
			return m, nil

		case "l":
			if m.busy {
				return m, nil
			}
			m.busy = true
			return m, m.action("Language switched", func() error {
				return m.ctrl.ToggleLanguage(m.ctx)
			})

		case "s":
			if m.busy {
				return m, nil
			}
			m.busy = true
			if m.snap.State == pipeline.StateListening {
				return m, m.action("Stopped", m.ctrl.Stop)
			}
			return m, m.action("Listening", func() error {
				return m.ctrl.Start(m.ctx)
			})
		}

	case tea.KeyPgUp:
		m.viewport.ViewUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.ViewDown()
		return m, nil

	case tea.KeyUp:
		m.viewport.LineUp(1)
		return m, nil

	case tea.KeyDown:
		m.viewport.LineDown(1)
		return m, nil
	}
	return m, nil
}

func (m Model) capture() tea.Cmd {
	return func() tea.Msg {
		item, found, err := m.ctrl.Capture(m.ctx)
		return captureDoneMsg{item: item, found: found, err: err}
	}
}

func (m Model) action(done string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: done, err: fn()}
	}
}

// fixedHeight is the number of lines outside the history viewport
func (m Model) fixedHeight() int {
	// header, meters, transcript panel (5 + border), last question, status, help
	return 14
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Starting overlay..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderMeters())
	b.WriteString("\n")
	b.WriteString(m.renderTranscript())
	b.WriteString("\n")
	b.WriteString(QuestionStyle.Render("Last question: ") + m.lastQuestion())
	b.WriteString("\n\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	return b.String()
}

func (m Model) renderHeader() string {
	state := m.snap.State.String()
	return fmt.Sprintf("%s %s %s %s",
		LogoStyle.Render("overlay"),
		StateStyle(state).Render(state),
		MutedStyle.Render(m.snap.Language),
		DimStyle.Render("extractor: "+m.snap.Extractor),
	)
}

func (m Model) renderMeters() string {
	speaking := ""
	if m.snap.Levels.Speaking {
		speaking = QuestionStyle.Render(" speaking")
	}
	return fmt.Sprintf("%s %s   %s %s%s",
		MutedStyle.Render("System"), meter(m.snap.Levels.System, meterWidth),
		MutedStyle.Render("Mic"), meter(m.snap.Levels.Mic, meterWidth),
		speaking,
	)
}

// meter renders level in [0,1] as a bar of width cells
func meter(level float64, width int) string {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}
	filled := int(level*float64(width) + 0.5)
	return MeterFullStyle.Render(strings.Repeat("█", filled)) +
		MeterEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func (m Model) renderTranscript() string {
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	lines := strings.Split(m.snap.Transcript, "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	text := strings.Join(lines, "\n")
	switch {
	case strings.TrimSpace(m.snap.Transcript) == "" && m.snap.Partial == "":
		text = DimStyle.Render(m.snap.Display)
	case m.snap.Partial != "":
		if text != "" {
			text += "\n"
		}
		text += PartialStyle.Render(m.snap.Partial)
	}
	return PanelStyle.Width(width).Render(text)
}

func (m Model) lastQuestion() string {
	if m.snap.LastQuestion == "" {
		return DimStyle.Render("No questions asked yet.")
	}
	return m.snap.LastQuestion
}

func (m Model) renderHistory() string {
	if len(m.snap.Items) == 0 {
		return DimStyle.Render("No questions yet.")
	}
	var b strings.Builder
	for _, item := range m.snap.Items {
		b.WriteString(QuestionStyle.Render(fmt.Sprintf("Q%d: %s", item.QuestionNumber, item.Question)))
		b.WriteString(" ")
		b.WriteString(StatusStyle(string(item.Status)).Render("[" + string(item.Status) + "]"))
		b.WriteString("\n")
		answer := item.Answer
		if strings.TrimSpace(answer) == "" {
			answer = "(pending)"
		}
		b.WriteString(AnswerStyle.Render(answer))
		b.WriteString("\n\n")
	}
	return b.String()
}

func (m Model) renderStatus() string {
	if m.err != nil {
		return ErrorStyle.Render("Error: "+m.err.Error()) + "\n" + HelpStyle.Render(m.help())
	}
	return MutedStyle.Render(m.status) + "\n" + HelpStyle.Render(m.help())
}

func (m Model) help() string {
	return "c capture · x clear · l language · s start/stop · ↑/↓ scroll · q quit"
}
