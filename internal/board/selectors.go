package board

import "github.com/Lllllllleong/caresync/internal/models"

// CurrentTasks returns the tasks of the current family.
func CurrentTasks(s State) []models.Task {
	var out []models.Task
	for _, t := range s.Tasks {
		if t.FamilyID == s.FamilyID {
			out = append(out, t)
		}
	}
	return out
}

// TasksByStatus returns the current family's tasks in any of statuses.
func TasksByStatus(s State, statuses ...models.Status) []models.Task {
	var out []models.Task
	for _, t := range CurrentTasks(s) {
		for _, st := range statuses {
			if t.Status == st {
				out = append(out, t)
				break
			}
		}
	}
	return out
}

func TasksByMember(s State, memberID string) []models.Task {
	var out []models.Task
	for _, t := range CurrentTasks(s) {
		if t.AssignedTo != nil && *t.AssignedTo == memberID {
			out = append(out, t)
		}
	}
	return out
}

func MemberByID(s State, id string) (models.Member, bool) {
	for _, m := range s.Members {
		if m.ID == id {
			return m, true
		}
	}
	return models.Member{}, false
}

func TaskByID(s State, id string) (models.Task, bool) {
	if i := s.taskIndex(id); i >= 0 {
		return s.Tasks[i], true
	}
	return models.Task{}, false
}

// Columns splits the current tasks the way the dashboard shows them:
// pending, active (assigned or in progress) and completed.
func Columns(s State) (pending, active, completed []models.Task) {
	return TasksByStatus(s, models.StatusPending),
		TasksByStatus(s, models.StatusAssigned, models.StatusInProgress),
		TasksByStatus(s, models.StatusCompleted)
}
