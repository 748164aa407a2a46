// Package board holds the client-side view of one family's care tasks:
// tasks, members, documents and the assistant transcript. A Store is created
// by the caller and passed to whatever needs it.
package board

import "github.com/Lllllllleong/caresync/internal/models"

// ChatEntry is one message in the assistant transcript.
type ChatEntry struct {
	Role    string
	Content string
	// Incomplete marks an assistant reply whose stream was cut off.
	Incomplete bool
}

type State struct {
	FamilyID  string
	Members   []models.Member
	Tasks     []models.Task
	Documents []models.Document
	Chat      []ChatEntry

	ChatOpen       bool
	Uploading      bool
	SelectedTaskID string
	LastError      string
}

// clone copies the slices so callers can't mutate the store's state.
// Pointer fields inside tasks and documents are shared; they are only ever
// replaced, never written through.
func (s State) clone() State {
	s.Members = append([]models.Member(nil), s.Members...)
	s.Tasks = append([]models.Task(nil), s.Tasks...)
	s.Documents = append([]models.Document(nil), s.Documents...)
	s.Chat = append([]ChatEntry(nil), s.Chat...)
	return s
}

func (s *State) taskIndex(id string) int {
	for i := range s.Tasks {
		if s.Tasks[i].ID == id {
			return i
		}
	}
	return -1
}
