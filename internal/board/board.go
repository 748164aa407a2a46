package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/caresync/internal/client"
	"github.com/Lllllllleong/caresync/internal/models"
)

var (
	ErrNoFamily    = errors.New("board: no family selected")
	ErrOffline     = errors.New("board: no server configured")
	ErrUnknownTask = errors.New("board: unknown task")
	ErrEmptyPrompt = errors.New("board: empty prompt")
)

// API is the part of *client.Client the board uses.
type API interface {
	Analyze(ctx context.Context, familyID, filename string, data []byte) (*models.AnalyzeResponse, error)
	StreamChat(ctx context.Context, req models.ChatRequest) (*client.ChatStream, error)
	ListTasks(ctx context.Context, familyID string) ([]models.Task, error)
	AssignTask(ctx context.Context, familyID, taskID string, memberID *string) (models.Task, error)
	SetTaskStatus(ctx context.Context, familyID, taskID string, status models.Status) (models.Task, error)
}

// Board runs user operations against a Store. When remote is set, task
// changes go through the task sync endpoint and the store takes the
// server's copy; otherwise they are applied locally.
type Board struct {
	store  *Store
	api    API
	remote bool
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Board)

// WithRemoteTasks sends assignment and status changes to the server.
func WithRemoteTasks() Option {
	return func(b *Board) { b.remote = true }
}

func WithClock(now func() time.Time) Option {
	return func(b *Board) { b.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Board) { b.logger = logger }
}

// New returns a board over store. api may be nil for an offline board, in
// which case uploads and chat fail with ErrOffline.
func New(store *Store, api API, opts ...Option) *Board {
	b := &Board{store: store, api: api, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	if api == nil {
		b.remote = false
	}
	return b
}

func (b *Board) Store() *Store { return b.store }

// Upload sends a document for analysis and adds the resulting document and
// tasks to the board. The chat panel opens with a summary of the result.
func (b *Board) Upload(ctx context.Context, filename string, data []byte) error {
	familyID := b.store.State().FamilyID
	if familyID == "" {
		return b.fail(ErrNoFamily)
	}
	if b.api == nil {
		return b.fail(ErrOffline)
	}

	b.store.Dispatch(SetUploading{Uploading: true}, SetError{})
	defer b.store.Dispatch(SetUploading{Uploading: false})

	logCtx := b.logger.With("familyId", familyID, "filename", filename)
	resp, err := b.api.Analyze(ctx, familyID, filename, data)
	if err != nil {
		logCtx.Warn("Upload failed", "error", err)
		return b.fail(fmt.Errorf("upload %s: %w", filename, err))
	}

	actions := []Action{AddDocument{Document: resp.Document}}
	for _, t := range resp.Tasks {
		actions = append(actions, AddTask{Task: t})
	}
	actions = append(actions,
		AppendChatMessage{Role: models.ChatRoleAssistant, Content: uploadSummary(filename, resp)},
		SetChatOpen{Open: true},
	)
	b.store.Dispatch(actions...)
	logCtx.Info("Upload analyzed", "documentId", resp.Document.ID, "outcome", resp.Outcome, "tasks", len(resp.Tasks))
	return nil
}

func uploadSummary(filename string, resp *models.AnalyzeResponse) string {
	var sb strings.Builder
	switch resp.Outcome {
	case models.OutcomeDemo:
		sb.WriteString("CareSync is in demo mode, so these are sample tasks rather than an analysis of ")
		sb.WriteString(filename)
		sb.WriteString(".\n\n")
	case models.OutcomeFallback:
		sb.WriteString("I couldn't fully read ")
		sb.WriteString(filename)
		sb.WriteString(", so I added a task to review it by hand.\n\n")
	default:
		fmt.Fprintf(&sb, "I analyzed %s and created %d task(s).\n\n", filename, len(resp.Tasks))
	}
	if resp.Analysis != nil && resp.Analysis.Summary != "" {
		sb.WriteString(resp.Analysis.Summary)
		sb.WriteString("\n\n")
	}
	for _, t := range resp.Tasks {
		fmt.Fprintf(&sb, "- %s (%s", t.Title, t.Priority)
		if t.DueDate != nil {
			fmt.Fprintf(&sb, ", due %s", t.DueDate.Format("Jan 2"))
		}
		sb.WriteString(")\n")
	}
	if resp.Warning != "" && resp.Outcome == models.OutcomeAnalyzed {
		sb.WriteString("\n")
		sb.WriteString(resp.Warning)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Assign gives a task to a member, or unassigns it when memberID is nil.
func (b *Board) Assign(ctx context.Context, taskID string, memberID *string) error {
	st := b.store.State()
	if _, ok := TaskByID(st, taskID); !ok {
		return b.fail(fmt.Errorf("%w: %s", ErrUnknownTask, taskID))
	}
	if !b.remote {
		b.store.Dispatch(UpdateTask{ID: taskID, Patch: models.AssignmentPatch(memberID), At: b.now()}, SetError{})
		return nil
	}
	task, err := b.api.AssignTask(ctx, st.FamilyID, taskID, memberID)
	if err != nil {
		return b.fail(fmt.Errorf("assign %s: %w", taskID, err))
	}
	b.store.Dispatch(AddTask{Task: task}, SetError{})
	return nil
}

func (b *Board) SetStatus(ctx context.Context, taskID string, status models.Status) error {
	if !status.Valid() {
		return b.fail(fmt.Errorf("board: unknown task status %q", status))
	}
	st := b.store.State()
	if _, ok := TaskByID(st, taskID); !ok {
		return b.fail(fmt.Errorf("%w: %s", ErrUnknownTask, taskID))
	}
	if !b.remote {
		now := b.now()
		b.store.Dispatch(UpdateTask{ID: taskID, Patch: models.StatusPatch(status, now), At: now}, SetError{})
		return nil
	}
	task, err := b.api.SetTaskStatus(ctx, st.FamilyID, taskID, status)
	if err != nil {
		return b.fail(fmt.Errorf("set status of %s: %w", taskID, err))
	}
	b.store.Dispatch(AddTask{Task: task}, SetError{})
	return nil
}

// Refresh reloads the family's tasks from the server. It does nothing for a
// local board.
func (b *Board) Refresh(ctx context.Context) error {
	if !b.remote {
		return nil
	}
	familyID := b.store.State().FamilyID
	if familyID == "" {
		return b.fail(ErrNoFamily)
	}
	tasks, err := b.api.ListTasks(ctx, familyID)
	if err != nil {
		return b.fail(fmt.Errorf("refresh tasks: %w", err))
	}
	b.store.Dispatch(SetTasks{Tasks: tasks}, SetError{})
	return nil
}

// Ask sends prompt with the transcript so far and streams the reply into the
// chat. A reply that is cut off stays in the transcript, marked incomplete,
// and the stream error is returned.
func (b *Board) Ask(ctx context.Context, prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ErrEmptyPrompt
	}
	if b.api == nil {
		return b.fail(ErrOffline)
	}

	b.store.Dispatch(
		AppendChatMessage{Role: models.ChatRoleUser, Content: prompt},
		SetChatOpen{Open: true},
		SetError{},
	)
	st := b.store.State()
	req := models.ChatRequest{Messages: transcript(st.Chat), FamilyContext: familyContext(st)}

	stream, err := b.api.StreamChat(ctx, req)
	if err != nil {
		return b.fail(fmt.Errorf("ask: %w", err))
	}
	defer stream.Close()

	b.store.Dispatch(AppendChatMessage{Role: models.ChatRoleAssistant})
	for stream.Next() {
		b.store.Dispatch(AppendChatDelta{Delta: stream.Delta()})
	}
	if err := stream.Err(); err != nil {
		b.store.Dispatch(MarkChatIncomplete{})
		return b.fail(fmt.Errorf("ask: %w", err))
	}
	return nil
}

// transcript drops entries with no text, such as replies cut off before
// their first delta.
func transcript(chat []ChatEntry) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(chat))
	for _, e := range chat {
		if e.Content == "" {
			continue
		}
		out = append(out, models.ChatMessage{Role: e.Role, Content: e.Content})
	}
	return out
}

type contextTask struct {
	Title      string `json:"title"`
	Status     string `json:"status"`
	Priority   string `json:"priority"`
	AssignedTo string `json:"assignedTo,omitempty"`
	DueDate    string `json:"dueDate,omitempty"`
}

type chatContext struct {
	FamilyID string        `json:"familyId"`
	Members  []string      `json:"members"`
	Tasks    []contextTask `json:"tasks"`
}

func familyContext(s State) any {
	if s.FamilyID == "" {
		return nil
	}
	c := chatContext{FamilyID: s.FamilyID, Members: []string{}, Tasks: []contextTask{}}
	for _, m := range s.Members {
		c.Members = append(c.Members, m.Name)
	}
	for _, t := range CurrentTasks(s) {
		ct := contextTask{Title: t.Title, Status: string(t.Status), Priority: string(t.Priority)}
		if t.AssignedTo != nil {
			if m, ok := MemberByID(s, *t.AssignedTo); ok {
				ct.AssignedTo = m.Name
			}
		}
		if t.DueDate != nil {
			ct.DueDate = t.DueDate.Format(time.DateOnly)
		}
		c.Tasks = append(c.Tasks, ct)
	}
	return c
}

func (b *Board) fail(err error) error {
	b.store.Dispatch(SetError{Message: err.Error()})
	return err
}
