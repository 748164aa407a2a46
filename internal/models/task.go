package models

import (
	"fmt"
	"time"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// ParseStatus validates a status received over the wire.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}

// Task is an actionable care item, scoped to one family.
// Any status may follow any other; only assignment derives a status.
type Task struct {
	ID          string     `json:"id" firestore:"id"`
	FamilyID    string     `json:"family_id" firestore:"family_id"`
	DocumentID  *string    `json:"document_id" firestore:"document_id"`
	Title       string     `json:"title" firestore:"title"`
	Description *string    `json:"description" firestore:"description"`
	Priority    Priority   `json:"priority" firestore:"priority"`
	Status      Status     `json:"status" firestore:"status"`
	AssignedTo  *string    `json:"assigned_to" firestore:"assigned_to"`
	DueDate     *time.Time `json:"due_date" firestore:"due_date"`
	CompletedAt *time.Time `json:"completed_at" firestore:"completed_at"`
	CreatedAt   time.Time  `json:"created_at" firestore:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" firestore:"updated_at"`
}

// TaskPatch is a partial update. Nil fields are left untouched;
// the Clear flags remove a value even though its pointer is nil.
type TaskPatch struct {
	Title            *string
	Description      *string
	Priority         *Priority
	Status           *Status
	AssignedTo       *string
	ClearAssignee    bool
	DueDate          *time.Time
	CompletedAt      *time.Time
	ClearCompletedAt bool
}

// Apply returns a copy of t with the patch applied and UpdatedAt set to now.
func (p TaskPatch) Apply(t Task, now time.Time) Task {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.ClearAssignee {
		t.AssignedTo = nil
	} else if p.AssignedTo != nil {
		t.AssignedTo = p.AssignedTo
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	if p.ClearCompletedAt {
		t.CompletedAt = nil
	} else if p.CompletedAt != nil {
		t.CompletedAt = p.CompletedAt
	}
	t.UpdatedAt = now
	return t
}

// AssignmentPatch builds the patch used when a member is assigned or unassigned.
// The status is derived only from whether an assignee is present.
func AssignmentPatch(memberID *string) TaskPatch {
	if memberID == nil || *memberID == "" {
		s := StatusPending
		return TaskPatch{ClearAssignee: true, Status: &s}
	}
	s := StatusAssigned
	id := *memberID
	return TaskPatch{AssignedTo: &id, Status: &s}
}

// StatusPatch builds the patch for an explicit status change.
// Completing a task stamps CompletedAt; any other status clears it.
func StatusPatch(status Status, now time.Time) TaskPatch {
	p := TaskPatch{Status: &status}
	if status == StatusCompleted {
		p.CompletedAt = &now
	} else {
		p.ClearCompletedAt = true
	}
	return p
}
