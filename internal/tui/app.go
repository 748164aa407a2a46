// Package tui is a terminal dashboard over a care board.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Lllllllleong/caresync/internal/board"
	"github.com/Lllllllleong/caresync/internal/tui/styles"
	"github.com/Lllllllleong/caresync/internal/tui/views"
)

// Focus is the panel that receives key presses
type Focus int

const (
	FocusBoard Focus = iota
	FocusChat
)

type App struct {
	board   *board.Board
	state   board.State
	styles  *styles.Styles
	focus   Focus
	spinner spinner.Model

	// changed is signalled by the store; the latest state is read on receipt.
	changed     chan struct{}
	unsubscribe func()

	boardView *views.BoardView
	chatView  *views.ChatView

	width  int
	height int
}

// NewApp creates the dashboard. Call Close once the program exits.
func NewApp(b *board.Board) *App {
	a := &App{
		board:     b,
		state:     b.Store().State(),
		styles:    styles.NewStyles(),
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot)),
		changed:   make(chan struct{}, 1),
		boardView: views.NewBoardView(b),
		chatView:  views.NewChatView(b),
	}
	a.unsubscribe = b.Store().Subscribe(func(board.State) {
		select {
		case a.changed <- struct{}{}:
		default:
		}
	})
	return a
}

func (a *App) Close() { a.unsubscribe() }

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.waitForChange, a.spinner.Tick, a.boardView.Init())
}

func (a *App) waitForChange() tea.Msg {
	<-a.changed
	return views.StateChanged{State: a.board.Store().State()}
}

func (a *App) setFocus(f Focus) tea.Cmd {
	a.focus = f
	a.boardView.SetFocused(f == FocusBoard)
	if f == FocusChat {
		return a.chatView.Focus()
	}
	a.chatView.Blur()
	return nil
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.boardView.Update(msg)
		a.chatView.Update(msg)
		return a, nil

	case views.StateChanged:
		opened := msg.State.ChatOpen && !a.state.ChatOpen
		a.state = msg.State
		a.boardView.Update(msg)
		a.chatView.Update(msg)
		cmds := []tea.Cmd{a.waitForChange}
		if opened {
			cmds = append(cmds, a.setFocus(FocusChat))
		}
		return a, tea.Batch(cmds...)

	case views.FocusChat:
		store := a.board.Store()
		return a, tea.Batch(a.setFocus(FocusChat), func() tea.Msg {
			store.Dispatch(board.SetChatOpen{Open: true})
			return nil
		})

	case views.FocusBoard:
		store := a.board.Store()
		return a, tea.Batch(a.setFocus(FocusBoard), func() tea.Msg {
			store.Dispatch(board.SetChatOpen{Open: false})
			return nil
		})

	case views.AskDone:
		_, cmd := a.chatView.Update(msg)
		return a, cmd

	case views.OpDone:
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		var cmd tea.Cmd
		if a.focus == FocusChat {
			_, cmd = a.chatView.Update(msg)
		} else {
			_, cmd = a.boardView.Update(msg)
		}
		return a, cmd
	}
	return a, nil
}

func (a *App) View() string {
	var b strings.Builder
	b.WriteString(a.renderHeader())
	b.WriteString("\n")
	b.WriteString(a.boardView.View())
	if a.state.ChatOpen {
		b.WriteString("\n")
		b.WriteString(a.chatView.View())
	}
	if a.state.LastError != "" {
		b.WriteString("\n")
		b.WriteString(a.styles.Error.Render("Error: " + a.state.LastError))
	}
	b.WriteString("\n")
	b.WriteString(a.renderHelp())
	return styles.CenterView(b.String(), a.width, a.height)
}

func (a *App) renderHeader() string {
	s := a.styles
	family := a.state.FamilyID
	if family == "" {
		family = "no family"
	}
	title := s.Title.Render("CareSync") + s.TitleMuted.Render(" · "+family)

	var status string
	switch {
	case a.state.Uploading:
		status = a.spinner.View() + " Analyzing document..."
	case a.chatView.Streaming():
		status = a.spinner.View() + " Assistant is typing..."
	default:
		status = fmt.Sprintf("%d members · %d tasks", len(a.state.Members), len(board.CurrentTasks(a.state)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, s.StatusBar.Render(status))
}

func (a *App) renderHelp() string {
	s := a.styles
	k := s.HelpKey.Render
	if a.focus == FocusChat {
		return s.Help.Render(fmt.Sprintf("%s send • %s scroll • %s back", k("↵"), k("pgup/pgdn"), k("esc")))
	}
	if a.boardView.Prompting() {
		return s.Help.Render(fmt.Sprintf("%s upload • %s cancel", k("↵"), k("esc")))
	}
	return s.Help.Render(fmt.Sprintf("%s move • %s assign • %s unassign • %s start • %s done • %s reopen • %s upload • %s chat • %s refresh • %s quit",
		k("hjkl"), k("a"), k("x"), k("s"), k("d"), k("o"), k("u"), k("c"), k("r"), k("q"),
	))
}
