package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/palaver/pkg/controller"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// TranscriptChangedMsg is sent whenever the store changed. The model re-reads the store,
// the message only tells it to do so.
type TranscriptChangedMsg struct {
	Version int64
	Length  int
}

// ReplyMsg carries the end of a turn started by the model.
type ReplyMsg struct {
	Result controller.Result
}

// WelcomeMsg is sent once the welcome request finished.
type WelcomeMsg struct {
	Err error
}

type Model struct {
	ctx  context.Context
	ctrl *controller.Controller

	title         string
	bootstrap     bool
	markdownStyle string

	viewport viewport.Model
	textArea textarea.Model
	spinner  spinner.Model
	help     help.Model
	keyMap   KeyMap
	style    *Style
	renderer transcriptRenderer

	width  int
	height int

	// status is a one-line notice, err the last failed turn; both are cleared on the next submit
	status string
	err    error

	// shownVersion is the store version the viewport was last rendered from
	shownVersion int64
	// restored is the canceled queued turn whose draft is in the input
	restored *controller.Turn
}

type ModelOption func(*Model)

func WithContext(ctx context.Context) ModelOption {
	return func(m *Model) {
		m.ctx = ctx
	}
}

func WithTitle(title string) ModelOption {
	return func(m *Model) {
		m.title = title
	}
}

// WithBootstrap makes Init fetch the welcome message.
func WithBootstrap(bootstrap bool) ModelOption {
	return func(m *Model) {
		m.bootstrap = bootstrap
	}
}

// WithMarkdownStyle renders assistant replies as markdown with the named glamour style.
// An empty style keeps replies as plain text.
func WithMarkdownStyle(style string) ModelOption {
	return func(m *Model) {
		m.markdownStyle = style
	}
}

func NewModel(ctrl *controller.Controller, options ...ModelOption) Model {
	ret := Model{
		ctx:      context.Background(),
		ctrl:     ctrl,
		title:    "palaver",
		keyMap:   DefaultKeyMap,
		style:    DefaultStyles(),
		viewport: viewport.New(0, 0),
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	for _, option := range options {
		option(&ret)
	}
	ret.renderer = transcriptRenderer{style: ret.style}

	ret.textArea = textarea.New()
	ret.textArea.Placeholder = "Type a message..."
	ret.textArea.ShowLineNumbers = false
	ret.textArea.SetHeight(3)
	ret.textArea.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter", "ctrl+j"))
	ret.textArea.Focus()

	ret.viewport.SetContent(ret.messageView())
	ret.viewport.GotoBottom()

	ret.updateKeyBindings()

	return ret
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink}
	if m.bootstrap {
		ctx, ctrl := m.ctx, m.ctrl
		cmds = append(cmds, func() tea.Msg {
			return WelcomeMsg{Err: ctrl.Bootstrap(ctx)}
		})
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keyMap.Quit):
			m.ctrl.Cancel()
			return m, tea.Quit

		case key.Matches(msg, m.keyMap.SubmitMessage):
			cmds = append(cmds, m.submit())

		case key.Matches(msg, m.keyMap.CancelReply):
			if n := m.ctrl.Cancel(); n > 0 {
				m.status = fmt.Sprintf("canceled %d pending %s", n, plural(n, "reply", "replies"))
			}

		case key.Matches(msg, m.keyMap.ScrollUp):
			m.viewport.HalfViewUp()

		case key.Matches(msg, m.keyMap.ScrollDown):
			m.viewport.HalfViewDown()

		case key.Matches(msg, m.keyMap.Help):
			m.help.ShowAll = !m.help.ShowAll
			m.recomputeSize()

		default:
			if m.textArea.Focused() {
				m.textArea, cmd = m.textArea.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.markdownStyle != "" {
			m.renderer.markdown = newMarkdownRenderer(
				m.markdownStyle,
				bubbleWidth(m.width)-m.style.AssistantMessage.GetHorizontalFrameSize(),
			)
		}
		m.recomputeSize()

	case TranscriptChangedMsg:
		// refresh reads the whole store, so older events carry nothing new
		if msg.Version > m.shownVersion {
			m.refresh()
		}

	case ReplyMsg:
		m.finishTurn(msg.Result)
		m.refresh()

	case WelcomeMsg:
		if msg.Err != nil {
			m.status = "could not load the welcome message"
		}
		m.refresh()

	case spinner.TickMsg:
		// the tick loop stops once nothing is pending
		if m.ctrl.Pending() > 0 {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	default:
		m.textArea, cmd = m.textArea.Update(msg)
		cmds = append(cmds, cmd)
	}

	cmds = append(cmds, m.updateKeyBindings())

	return m, tea.Batch(cmds...)
}

func (m *Model) submit() tea.Cmd {
	t, err := m.ctrl.Begin(m.textArea.Value())
	switch {
	case errors.Is(err, controller.ErrEmptyDraft):
		return nil
	case errors.Is(err, controller.ErrTurnInFlight):
		m.status = "still waiting for the previous reply"
		return nil
	case err != nil:
		m.err = err
		return nil
	}

	m.textArea.Reset()
	m.err = nil
	m.status = ""
	m.restored = nil
	m.refresh()

	ctx, ctrl := m.ctx, m.ctrl
	return tea.Batch(
		func() tea.Msg {
			return ReplyMsg{Result: ctrl.Dispatch(ctx, t)}
		},
		m.spinner.Tick,
	)
}

func (m *Model) finishTurn(r controller.Result) {
	switch r.Outcome {
	case controller.OutcomeReplied:
		return
	case controller.OutcomeCanceled:
		m.status = "reply canceled"
		// a queued turn that never started gives its draft back, the oldest one wins
		if !r.Appended && r.Turn != nil && m.canRestore(r.Turn) {
			m.textArea.SetValue(r.Turn.Draft)
			m.restored = r.Turn
		}
	default:
		m.err = r.Err
	}

	log.Debug().
		Str("outcome", string(r.Outcome)).
		AnErr("error", r.Err).
		Msg("turn finished without a reply")
}

// canRestore reports whether t's draft may go into the input: the input is empty, or it
// holds an untouched draft of a newer canceled turn.
func (m *Model) canRestore(t *controller.Turn) bool {
	value := m.textArea.Value()
	if value == "" {
		return true
	}
	return m.restored != nil &&
		t.ID < m.restored.ID &&
		value == m.restored.Draft
}

// updateKeyBindings follows the controller state, which changes outside of Update.
func (m *Model) updateKeyBindings() tea.Cmd {
	canSubmit := m.ctrl.CanSubmit()
	m.keyMap.SubmitMessage.SetEnabled(canSubmit)
	m.keyMap.CancelReply.SetEnabled(m.ctrl.Pending() > 0)

	if canSubmit && !m.textArea.Focused() {
		return m.textArea.Focus()
	}
	if !canSubmit && m.textArea.Focused() {
		m.textArea.Blur()
	}
	return nil
}

func (m *Model) refresh() {
	m.shownVersion = m.ctrl.Store().Version()
	m.viewport.SetContent(m.messageView())
	m.viewport.GotoBottom()
}

func (m *Model) recomputeSize() {
	m.help.Width = m.width
	headerHeight := lipgloss.Height(m.headerView())
	statusHeight := lipgloss.Height(m.statusView())
	helpHeight := lipgloss.Height(m.help.View(m.keyMap))

	m.textArea.SetWidth(m.width - m.style.FocusedInput.GetHorizontalFrameSize())
	textAreaHeight := lipgloss.Height(m.textAreaView())

	newHeight := m.height - headerHeight - statusHeight - textAreaHeight - helpHeight
	if newHeight < 0 {
		newHeight = 0
	}
	m.viewport.Width = m.width
	m.viewport.Height = newHeight
	m.viewport.YPosition = headerHeight

	m.refresh()
}

func (m Model) headerView() string {
	return m.style.Header.Render(m.title)
}

func (m Model) messageView() string {
	return m.renderer.render(m.ctrl.Store().Read(), m.width)
}

func (m Model) statusView() string {
	switch {
	case m.ctrl.Pending() > 0:
		return m.style.Status.Render(m.spinner.View() + " waiting for reply")
	case m.err != nil:
		return m.style.Error.Render("error: " + m.err.Error())
	default:
		return m.style.Status.Render(m.status)
	}
}

func (m Model) textAreaView() string {
	if m.textArea.Focused() {
		return m.style.FocusedInput.Render(m.textArea.View())
	}
	return m.style.BlurredInput.Render(m.textArea.View())
}

func (m Model) View() string {
	return m.headerView() + "\n" +
		m.viewport.View() + "\n" +
		m.statusView() + "\n" +
		m.textAreaView() + "\n" +
		m.help.View(m.keyMap)
}

// Draft is the current content of the input.
func (m Model) Draft() string {
	return m.textArea.Value()
}

// Err is the error of the last turn that ended without a reply.
func (m Model) Err() error {
	return m.err
}

func (m Model) Status() string {
	return m.status
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
