package board

import (
	"time"

	"github.com/Lllllllleong/caresync/internal/models"
)

// Action is a state change applied by Store.Dispatch. Only the types in this
// file implement it.
type Action interface {
	apply(*State)
}

// SetCurrentFamily switches family. Per-family data is cleared.
type SetCurrentFamily struct{ FamilyID string }

func (a SetCurrentFamily) apply(s *State) {
	if s.FamilyID == a.FamilyID {
		return
	}
	*s = State{FamilyID: a.FamilyID, ChatOpen: s.ChatOpen}
}

type SetTasks struct{ Tasks []models.Task }

func (a SetTasks) apply(s *State) {
	s.Tasks = append([]models.Task(nil), a.Tasks...)
	if s.SelectedTaskID != "" && s.taskIndex(s.SelectedTaskID) < 0 {
		s.SelectedTaskID = ""
	}
}

// AddTask appends a task, or replaces the task with the same ID.
type AddTask struct{ Task models.Task }

func (a AddTask) apply(s *State) {
	if i := s.taskIndex(a.Task.ID); i >= 0 {
		s.Tasks[i] = a.Task
		return
	}
	s.Tasks = append(s.Tasks, a.Task)
}

// UpdateTask applies Patch to the task with ID, stamping it with At.
// Unknown IDs are ignored.
type UpdateTask struct {
	ID    string
	Patch models.TaskPatch
	At    time.Time
}

func (a UpdateTask) apply(s *State) {
	if i := s.taskIndex(a.ID); i >= 0 {
		s.Tasks[i] = a.Patch.Apply(s.Tasks[i], a.At)
	}
}

type RemoveTask struct{ ID string }

func (a RemoveTask) apply(s *State) {
	i := s.taskIndex(a.ID)
	if i < 0 {
		return
	}
	s.Tasks = append(s.Tasks[:i:i], s.Tasks[i+1:]...)
	if s.SelectedTaskID == a.ID {
		s.SelectedTaskID = ""
	}
}

type SetMembers struct{ Members []models.Member }

func (a SetMembers) apply(s *State) {
	s.Members = append([]models.Member(nil), a.Members...)
}

type AddMember struct{ Member models.Member }

func (a AddMember) apply(s *State) { s.Members = append(s.Members, a.Member) }

type SetDocuments struct{ Documents []models.Document }

func (a SetDocuments) apply(s *State) {
	s.Documents = append([]models.Document(nil), a.Documents...)
}

type AddDocument struct{ Document models.Document }

func (a AddDocument) apply(s *State) { s.Documents = append(s.Documents, a.Document) }

type SetChatOpen struct{ Open bool }

func (a SetChatOpen) apply(s *State) { s.ChatOpen = a.Open }

type SetUploading struct{ Uploading bool }

func (a SetUploading) apply(s *State) { s.Uploading = a.Uploading }

// SelectTask selects a task by ID. An empty ID clears the selection.
type SelectTask struct{ ID string }

func (a SelectTask) apply(s *State) { s.SelectedTaskID = a.ID }

type AppendChatMessage struct {
	Role    string
	Content string
}

func (a AppendChatMessage) apply(s *State) {
	s.Chat = append(s.Chat, ChatEntry{Role: a.Role, Content: a.Content})
}

// AppendChatDelta extends the last assistant message, starting one if the
// transcript doesn't end with one.
type AppendChatDelta struct{ Delta string }

func (a AppendChatDelta) apply(s *State) {
	n := len(s.Chat)
	if n == 0 || s.Chat[n-1].Role != models.ChatRoleAssistant {
		s.Chat = append(s.Chat, ChatEntry{Role: models.ChatRoleAssistant, Content: a.Delta})
		return
	}
	s.Chat[n-1].Content += a.Delta
}

// MarkChatIncomplete flags the last assistant message as cut off.
type MarkChatIncomplete struct{}

func (MarkChatIncomplete) apply(s *State) {
	n := len(s.Chat)
	if n == 0 || s.Chat[n-1].Role != models.ChatRoleAssistant {
		s.Chat = append(s.Chat, ChatEntry{Role: models.ChatRoleAssistant, Incomplete: true})
		return
	}
	s.Chat[n-1].Incomplete = true
}

// SetError records the last user-facing failure. An empty message clears it.
type SetError struct{ Message string }

func (a SetError) apply(s *State) { s.LastError = a.Message }
