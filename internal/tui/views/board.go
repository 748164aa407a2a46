package views

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Lllllllleong/caresync/internal/board"
	"github.com/Lllllllleong/caresync/internal/models"
	"github.com/Lllllllleong/caresync/internal/tui/keys"
	"github.com/Lllllllleong/caresync/internal/tui/styles"
)

// Column is one of the dashboard's task columns.
type Column int

const (
	ColumnPending Column = iota
	ColumnActive
	ColumnCompleted
	columnCount
)

var columnTitles = [columnCount]string{"Pending", "In Progress", "Completed"}

// BoardView shows the family's tasks in pending, active and completed
// columns.
type BoardView struct {
	board  *board.Board
	state  board.State
	styles *styles.Styles
	keys   keys.KeyMap

	width  int
	height int

	focused bool
	column  Column
	cursor  [columnCount]int

	// Upload prompt
	prompting bool
	pathInput textinput.Model
}

func NewBoardView(b *board.Board) *BoardView {
	path := textinput.New()
	path.Placeholder = "path/to/discharge-summary.pdf"
	path.CharLimit = 4096

	return &BoardView{
		board:     b,
		state:     b.Store().State(),
		styles:    styles.NewStyles(),
		keys:      keys.DefaultKeyMap(),
		focused:   true,
		pathInput: path,
	}
}

func (v *BoardView) Init() tea.Cmd { return nil }

func (v *BoardView) SetFocused(focused bool) { v.focused = focused }

// Prompting reports whether the upload prompt has the keyboard.
func (v *BoardView) Prompting() bool { return v.prompting }

func (v *BoardView) columns() [columnCount][]models.Task {
	pending, active, completed := board.Columns(v.state)
	return [columnCount][]models.Task{pending, active, completed}
}

// Selected returns the task under the cursor.
func (v *BoardView) Selected() (models.Task, bool) {
	tasks := v.columns()[v.column]
	if len(tasks) == 0 {
		return models.Task{}, false
	}
	return tasks[clamp(v.cursor[v.column], 0, len(tasks)-1)], true
}

func (v *BoardView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.pathInput.Width = clamp(styles.ContentWidth(v.width)-12, 20, 80)
		return v, nil

	case StateChanged:
		v.state = msg.State
		cols := v.columns()
		for c := range cols {
			v.cursor[c] = clamp(v.cursor[c], 0, max(len(cols[c])-1, 0))
		}
		return v, nil

	case tea.KeyMsg:
		if v.prompting {
			return v.updatePrompt(msg)
		}
		return v.updateNormal(msg)
	}
	return v, nil
}

func (v *BoardView) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Back):
		v.closePrompt()
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		path := strings.TrimSpace(v.pathInput.Value())
		v.closePrompt()
		if path == "" {
			return v, nil
		}
		return v, v.upload(path)
	}

	var cmd tea.Cmd
	v.pathInput, cmd = v.pathInput.Update(msg)
	return v, cmd
}

func (v *BoardView) closePrompt() {
	v.prompting = false
	v.pathInput.Blur()
	v.pathInput.Reset()
}

func (v *BoardView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Left):
		v.column = Column(clamp(int(v.column)-1, 0, int(columnCount)-1))
		return v, v.selectCurrent()

	case key.Matches(msg, v.keys.Right):
		v.column = Column(clamp(int(v.column)+1, 0, int(columnCount)-1))
		return v, v.selectCurrent()

	case key.Matches(msg, v.keys.Up):
		if v.cursor[v.column] > 0 {
			v.cursor[v.column]--
		}
		return v, v.selectCurrent()

	case key.Matches(msg, v.keys.Down):
		if v.cursor[v.column] < len(v.columns()[v.column])-1 {
			v.cursor[v.column]++
		}
		return v, v.selectCurrent()

	case key.Matches(msg, v.keys.Assign):
		if task, ok := v.Selected(); ok {
			next := NextAssignee(v.state.Members, task.AssignedTo)
			return v, v.assign(task.ID, next)
		}

	case key.Matches(msg, v.keys.Unassign):
		if task, ok := v.Selected(); ok && task.AssignedTo != nil {
			return v, v.assign(task.ID, nil)
		}

	case key.Matches(msg, v.keys.Start):
		return v, v.setStatus(models.StatusInProgress)

	case key.Matches(msg, v.keys.Complete):
		return v, v.setStatus(models.StatusCompleted)

	case key.Matches(msg, v.keys.Reopen):
		if task, ok := v.Selected(); ok {
			return v, v.setStatus(ReopenStatus(task))
		}

	case key.Matches(msg, v.keys.Upload):
		if v.state.Uploading {
			return v, nil
		}
		v.prompting = true
		return v, v.pathInput.Focus()

	case key.Matches(msg, v.keys.Refresh):
		b := v.board
		return v, runOp(taskTimeout, b.Refresh)

	case key.Matches(msg, v.keys.Chat):
		return v, func() tea.Msg { return FocusChat{} }
	}
	return v, nil
}

func (v *BoardView) selectCurrent() tea.Cmd {
	id := ""
	if task, ok := v.Selected(); ok {
		id = task.ID
	}
	if id == v.state.SelectedTaskID {
		return nil
	}
	store := v.board.Store()
	return func() tea.Msg {
		store.Dispatch(board.SelectTask{ID: id})
		return nil
	}
}

func (v *BoardView) assign(taskID string, memberID *string) tea.Cmd {
	b := v.board
	return runOp(taskTimeout, func(ctx context.Context) error {
		return b.Assign(ctx, taskID, memberID)
	})
}

func (v *BoardView) setStatus(status models.Status) tea.Cmd {
	task, ok := v.Selected()
	if !ok || task.Status == status {
		return nil
	}
	b := v.board
	return runOp(taskTimeout, func(ctx context.Context) error {
		return b.SetStatus(ctx, task.ID, status)
	})
}

func (v *BoardView) upload(path string) tea.Cmd {
	b := v.board
	return runOp(uploadTimeout, func(ctx context.Context) error {
		data, err := os.ReadFile(path)
		if err != nil {
			b.Store().Dispatch(board.SetError{Message: err.Error()})
			return err
		}
		return b.Upload(ctx, filepath.Base(path), data)
	})
}

// NextAssignee cycles through the members in order, then back to nobody.
func NextAssignee(members []models.Member, current *string) *string {
	if len(members) == 0 {
		return nil
	}
	if current == nil {
		id := members[0].ID
		return &id
	}
	for i, m := range members {
		if m.ID == *current {
			if i+1 == len(members) {
				return nil
			}
			id := members[i+1].ID
			return &id
		}
	}
	id := members[0].ID
	return &id
}

// ReopenStatus is the status a task returns to when it is reopened.
func ReopenStatus(t models.Task) models.Status {
	if t.AssignedTo != nil {
		return models.StatusAssigned
	}
	return models.StatusPending
}

func (v *BoardView) View() string {
	contentWidth := styles.ContentWidth(v.width)
	colWidth := max((contentWidth-2)/int(columnCount)-4, 16)
	cols := v.columns()

	rendered := make([]string, 0, columnCount)
	for c := Column(0); c < columnCount; c++ {
		rendered = append(rendered, v.renderColumn(c, cols[c], colWidth))
	}
	out := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)

	if v.prompting {
		prompt := v.styles.InputFocused.Render("Upload PDF: " + v.pathInput.View())
		out = lipgloss.JoinVertical(lipgloss.Left, out, prompt)
	}
	return out
}

func (v *BoardView) renderColumn(c Column, tasks []models.Task, width int) string {
	s := v.styles
	style := s.Column
	if v.focused && c == v.column {
		style = s.ColumnFocused
	}

	title := s.ColumnTitle.Render(fmt.Sprintf("%s (%d)", columnTitles[c], len(tasks)))
	if len(tasks) == 0 {
		return style.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, s.TitleMuted.Render("Nothing here")))
	}

	// Each task is two lines plus a blank line.
	visible := max((v.height-14)/3, 1)
	cursor := v.cursor[c]
	start := 0
	if cursor >= visible {
		start = cursor - visible + 1
	}
	end := min(start+visible, len(tasks))

	items := []string{title}
	for i := start; i < end; i++ {
		items = append(items, v.renderTask(tasks[i], width, v.focused && c == v.column && i == cursor))
	}
	if end < len(tasks) {
		items = append(items, s.TitleMuted.Render(fmt.Sprintf("+%d more", len(tasks)-end)))
	}
	return style.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, items...))
}

func (v *BoardView) renderTask(t models.Task, width int, selected bool) string {
	s := v.styles
	badge := s.Badge.Foreground(styles.PriorityColor(t.Priority)).Render("●")

	assignee := "unassigned"
	if t.AssignedTo != nil {
		if m, ok := board.MemberByID(v.state, *t.AssignedTo); ok {
			assignee = m.Name
		}
	}
	meta := assignee
	if t.Status == models.StatusInProgress {
		meta += " · working"
	}
	if t.DueDate != nil {
		meta += " · due " + t.DueDate.Format("Jan 2")
	}

	item, muted := s.ListItem, s.TitleMuted
	if selected {
		item = s.ListSelected
		muted = muted.Background(styles.Current.Selection)
	}
	title := item.Width(width).Render(badge + " " + truncate(t.Title, width-2))
	line := muted.Width(width).Render("  " + truncate(meta, width-2))
	return lipgloss.JoinVertical(lipgloss.Left, title, line) + "\n"
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width <= 1 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
