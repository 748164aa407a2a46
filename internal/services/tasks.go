package services

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Lllllllleong/caresync/internal/models"
)

// MaterializeTasks turns proposed tasks into pending, unassigned Tasks of the
// family. newID is called once per task.
func MaterializeTasks(familyID string, documentID *string, proposed []models.ProposedTask, now time.Time, newID func() string) []models.Task {
	if newID == nil {
		newID = uuid.NewString
	}
	tasks := make([]models.Task, 0, len(proposed))
	for _, p := range proposed {
		t := models.Task{
			ID:         newID(),
			FamilyID:   familyID,
			DocumentID: documentID,
			Title:      p.Title,
			Priority:   p.Priority,
			Status:     models.StatusPending,
			DueDate:    ParseDueDate(p.DueDate),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if !t.Priority.Valid() {
			t.Priority = models.PriorityMedium
		}
		if p.Description != "" {
			desc := p.Description
			t.Description = &desc
		}
		tasks = append(tasks, t)
	}
	return tasks
}

// ParseDueDate accepts YYYY-MM-DD or RFC 3339 and returns the date at UTC
// midnight. Absent or unparseable values yield nil.
func ParseDueDate(raw *string) *time.Time {
	if raw == nil {
		return nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return nil
		}
	}
	t = t.UTC()
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
