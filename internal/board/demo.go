package board

import (
	"time"

	"github.com/Lllllllleong/caresync/internal/models"
)

const (
	DemoFamilyID   = "demo-family"
	demoDocumentID = "demo-doc-1"
)

// LoadDemo replaces the board with the sample Johnson family: three members
// and four tasks spread across every column.
func (b *Board) LoadDemo() {
	now := b.now()
	day := 24 * time.Hour
	str := func(s string) *string { return &s }
	at := func(d time.Duration) *time.Time {
		t := now.Add(d)
		return &t
	}

	member := func(id, userID, name, email string, role models.Role) models.Member {
		return models.Member{
			ID: id, FamilyID: DemoFamilyID, UserID: userID, Name: name,
			Email: str(email), Role: role, CreatedAt: now, UpdatedAt: now,
		}
	}
	members := []models.Member{
		member("member-1", "demo-user", "Sarah Johnson", "sarah@example.com", models.RoleAdmin),
		member("member-2", "demo-user-2", "Mike Johnson", "mike@example.com", models.RoleMember),
		member("member-3", "demo-user-3", "Emma Johnson", "emma@example.com", models.RoleMember),
	}

	task := func(id, title, description string, p models.Priority, s models.Status, assignee *string, due *time.Time) models.Task {
		return models.Task{
			ID: id, FamilyID: DemoFamilyID, DocumentID: str(demoDocumentID),
			Title: title, Description: str(description), Priority: p, Status: s,
			AssignedTo: assignee, DueDate: due, CreatedAt: now, UpdatedAt: now,
		}
	}
	tasks := []models.Task{
		task("task-1", "Schedule follow-up appointment",
			"Call Dr. Smith's office to schedule a follow-up appointment within 2 weeks",
			models.PriorityHigh, models.StatusPending, nil, at(7*day)),
		task("task-2", "Pick up prescription",
			"Collect new medication from pharmacy - bring insurance card",
			models.PriorityUrgent, models.StatusAssigned, str("member-2"), at(2*day)),
		task("task-3", "Monitor blood pressure daily",
			"Take blood pressure readings twice daily and log results",
			models.PriorityMedium, models.StatusInProgress, str("member-1"), nil),
		task("task-4", "Prepare discharge summary",
			"Organize all medical documents and create summary for family",
			models.PriorityLow, models.StatusCompleted, str("member-3"), at(-day)),
	}
	tasks[3].CompletedAt = &now
	tasks[3].CreatedAt = now.Add(-3 * day)

	b.store.Dispatch(
		SetCurrentFamily{FamilyID: DemoFamilyID},
		SetMembers{Members: members},
		SetTasks{Tasks: tasks},
	)
}
