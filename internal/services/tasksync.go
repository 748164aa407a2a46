package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lllllllleong/caresync/internal/config"
	"github.com/Lllllllleong/caresync/internal/models"
	"github.com/Lllllllleong/caresync/internal/store"
)

const (
	msgMissingFamily = "Missing familyId"
	msgInvalidStatus = "Invalid task status"
	msgTaskNotFound  = "Task not found"
	msgTaskStore     = "Tasks could not be loaded or saved. Please try again."
)

type TaskRepository interface {
	ListTasks(ctx context.Context, familyID string) ([]models.Task, error)
	UpdateTask(ctx context.Context, familyID, taskID string, patch models.TaskPatch, now time.Time) (models.Task, error)
}

// TaskSyncFunction serves the shared task list of a family.
type TaskSyncFunction struct {
	repo TaskRepository
	now  func() time.Time
}

func NewTaskSyncFunction(repo TaskRepository, now func() time.Time) *TaskSyncFunction {
	if now == nil {
		now = time.Now
	}
	return &TaskSyncFunction{repo: repo, now: now}
}

func NewTaskSync(cfg *config.Config, clients *Clients) (*TaskSyncFunction, error) {
	if !cfg.Persistent() || clients.Repo == nil {
		return nil, fmt.Errorf("task sync is only available in persistent mode")
	}
	slog.Info("Task sync initialized.")
	return NewTaskSyncFunction(clients.Repo, nil), nil
}

func (f *TaskSyncFunction) List(ctx context.Context, familyID string) ([]models.Task, error) {
	if familyID == "" {
		return nil, newError(KindValidation, msgMissingFamily, nil)
	}
	tasks, err := f.repo.ListTasks(ctx, familyID)
	if err != nil {
		slog.Error("Failed to list tasks", "familyId", familyID, "error", err)
		return nil, newError(KindPersistence, msgTaskStore, err)
	}
	return tasks, nil
}

// Assign sets or clears the assignee. The status becomes assigned or pending
// accordingly.
func (f *TaskSyncFunction) Assign(ctx context.Context, familyID, taskID string, memberID *string) (models.Task, error) {
	if familyID == "" {
		return models.Task{}, newError(KindValidation, msgMissingFamily, nil)
	}
	return f.update(ctx, familyID, taskID, models.AssignmentPatch(memberID))
}

// SetStatus moves a task to any status.
func (f *TaskSyncFunction) SetStatus(ctx context.Context, familyID, taskID, rawStatus string) (models.Task, error) {
	if familyID == "" {
		return models.Task{}, newError(KindValidation, msgMissingFamily, nil)
	}
	status, err := models.ParseStatus(rawStatus)
	if err != nil {
		return models.Task{}, newError(KindValidation, msgInvalidStatus, err)
	}
	return f.update(ctx, familyID, taskID, models.StatusPatch(status, f.now().UTC()))
}

func (f *TaskSyncFunction) update(ctx context.Context, familyID, taskID string, patch models.TaskPatch) (models.Task, error) {
	logCtx := slog.With("familyId", familyID, "taskId", taskID)
	task, err := f.repo.UpdateTask(ctx, familyID, taskID, patch, f.now().UTC())
	if errors.Is(err, store.ErrTaskNotFound) {
		return models.Task{}, newError(KindNotFound, msgTaskNotFound, err)
	}
	if err != nil {
		logCtx.Error("Failed to update task", "error", err)
		return models.Task{}, newError(KindPersistence, msgTaskStore, err)
	}
	logCtx.Info("Task updated.", "status", task.Status)
	return task, nil
}
