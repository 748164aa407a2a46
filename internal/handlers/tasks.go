package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Lllllllleong/caresync/internal/auth"
	"github.com/Lllllllleong/caresync/internal/models"
	"github.com/Lllllllleong/caresync/internal/services"
)

type TaskSync interface {
	List(ctx context.Context, familyID string) ([]models.Task, error)
	Assign(ctx context.Context, familyID, taskID string, memberID *string) (models.Task, error)
	SetStatus(ctx context.Context, familyID, taskID, status string) (models.Task, error)
}

// TasksHandler serves the family task list. Every route needs a session
// whose family claim covers the requested family.
type TasksHandler struct {
	tasks    TaskSync
	verifier *auth.Verifier
}

func NewTasksHandler(tasks TaskSync, verifier *auth.Verifier) *TasksHandler {
	return &TasksHandler{tasks: tasks, verifier: verifier}
}

// Register mounts the task routes on r.
func (h *TasksHandler) Register(r *mux.Router) {
	r.HandleFunc("/api/tasks", h.authenticated(h.List)).Methods(http.MethodGet)
	r.HandleFunc("/api/tasks/{taskId}/assign", h.authenticated(h.Assign)).Methods(http.MethodPost)
	r.HandleFunc("/api/tasks/{taskId}/status", h.authenticated(h.SetStatus)).Methods(http.MethodPost)
}

func (h *TasksHandler) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, err := sessionFor(r, h.verifier, true)
		if err != nil {
			slog.Info("Rejected unauthenticated task request", "path", r.URL.Path, "error", err)
			writeMessage(w, http.StatusUnauthorized, services.KindUnauthorized, "Unauthorized")
			return
		}
		next(w, r.WithContext(auth.WithSession(r.Context(), session)))
	}
}

// List handles GET /api/tasks?familyId=.
func (h *TasksHandler) List(w http.ResponseWriter, r *http.Request) {
	familyID := r.URL.Query().Get("familyId")
	if !familyAllowed(w, r, familyID) {
		return
	}
	tasks, err := h.tasks.List(r.Context(), familyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TaskListResponse{Tasks: tasks})
}

// Assign handles POST /api/tasks/{taskId}/assign.
func (h *TasksHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req models.AssignTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, services.KindValidation, "Invalid request payload")
		return
	}
	if !familyAllowed(w, r, req.FamilyID) {
		return
	}
	task, err := h.tasks.Assign(r.Context(), req.FamilyID, mux.Vars(r)["taskId"], req.MemberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TaskResponse{Task: task})
}

// SetStatus handles POST /api/tasks/{taskId}/status.
func (h *TasksHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateTaskStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, services.KindValidation, "Invalid request payload")
		return
	}
	if !familyAllowed(w, r, req.FamilyID) {
		return
	}
	task, err := h.tasks.SetStatus(r.Context(), req.FamilyID, mux.Vars(r)["taskId"], req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models.TaskResponse{Task: task})
}
