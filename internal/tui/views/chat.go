package views

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Lllllllleong/caresync/internal/board"
	"github.com/Lllllllleong/caresync/internal/models"
	"github.com/Lllllllleong/caresync/internal/tui/keys"
	"github.com/Lllllllleong/caresync/internal/tui/styles"
)

const chatHeight = 12

// ChatView is the assistant panel: the transcript and a prompt line.
type ChatView struct {
	board  *board.Board
	state  board.State
	styles *styles.Styles
	keys   keys.KeyMap

	width    int
	focused  bool
	input    textinput.Model
	viewport viewport.Model

	// cancel stops the reply being streamed, if any.
	cancel context.CancelFunc
}

func NewChatView(b *board.Board) *ChatView {
	input := textinput.New()
	input.Placeholder = "Ask about your family's care..."
	input.CharLimit = 2000

	v := &ChatView{
		board:    b,
		state:    b.Store().State(),
		styles:   styles.NewStyles(),
		keys:     keys.DefaultKeyMap(),
		input:    input,
		viewport: viewport.New(60, chatHeight-4),
	}
	v.refresh()
	return v
}

// Streaming reports whether a reply is in flight.
func (v *ChatView) Init() tea.Cmd { return nil }

func (v *ChatView) Streaming() bool { return v.cancel != nil }

func (v *ChatView) Focus() tea.Cmd {
	v.focused = true
	return v.input.Focus()
}

func (v *ChatView) Blur() {
	v.focused = false
	v.input.Blur()
}

func (v *ChatView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = styles.ContentWidth(msg.Width)
		v.viewport.Width = max(v.width-4, 20)
		v.input.Width = max(v.width-8, 10)
		v.refresh()
		return v, nil

	case StateChanged:
		v.state = msg.State
		v.refresh()
		return v, nil

	case AskDone:
		if v.cancel != nil {
			v.cancel()
			v.cancel = nil
		}
		return v, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, v.keys.Back):
			if v.cancel != nil {
				v.cancel()
				return v, nil
			}
			return v, func() tea.Msg { return FocusBoard{} }

		case msg.Type == tea.KeyCtrlC:
			return v, tea.Quit

		case key.Matches(msg, v.keys.Enter):
			prompt := strings.TrimSpace(v.input.Value())
			if prompt == "" || v.cancel != nil {
				return v, nil
			}
			v.input.Reset()
			return v, v.ask(prompt)

		case msg.Type == tea.KeyPgUp, msg.Type == tea.KeyPgDown:
			var cmd tea.Cmd
			v.viewport, cmd = v.viewport.Update(msg)
			return v, cmd
		}

		var cmd tea.Cmd
		v.input, cmd = v.input.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v *ChatView) ask(prompt string) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	v.cancel = cancel
	b := v.board
	return func() tea.Msg {
		return AskDone{Err: b.Ask(ctx, prompt)}
	}
}

func (v *ChatView) refresh() {
	v.viewport.SetContent(v.renderTranscript())
	v.viewport.GotoBottom()
}

func (v *ChatView) renderTranscript() string {
	s := v.styles
	if len(v.state.Chat) == 0 {
		return s.TitleMuted.Render("Upload a document or ask a question to get started.")
	}
	wrap := lipgloss.NewStyle().Width(max(v.viewport.Width, 20))

	var parts []string
	for _, e := range v.state.Chat {
		speaker := s.ChatAssistant.Render("CareSync")
		if e.Role == models.ChatRoleUser {
			speaker = s.ChatUser.Render("You")
		}
		body := e.Content
		if e.Incomplete {
			body += " " + s.ChatCutOff.Render("[reply cut off]")
		}
		parts = append(parts, wrap.Render(speaker+": "+body))
	}
	return strings.Join(parts, "\n\n")
}

func (v *ChatView) View() string {
	style := v.styles.Panel
	if v.focused {
		style = style.BorderForeground(styles.Current.BorderFocus)
	}
	inputStyle := v.styles.Input
	if v.focused {
		inputStyle = v.styles.InputFocused
	}
	return style.Width(max(v.width-2, 24)).Render(lipgloss.JoinVertical(lipgloss.Left,
		v.styles.Title.Render("Care Assistant"),
		v.viewport.View(),
		inputStyle.Render(v.input.View()),
	))
}
