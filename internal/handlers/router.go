package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

// Routes are the handlers served by the standalone server. Tasks is nil
// outside persistent mode.
type Routes struct {
	Analyze http.Handler
	Chat    http.Handler
	Tasks   *TasksHandler
}

// NewRouter mounts every function under one mux for local runs and
// container deployments.
func NewRouter(routes Routes, logger *slog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(RequestID, Recovery(logger), Logger(logger))

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.Handle("/api/analyze", routes.Analyze).Methods(http.MethodPost)
	r.Handle("/api/chat", routes.Chat).Methods(http.MethodPost)
	if routes.Tasks != nil {
		routes.Tasks.Register(r)
	}
	return r
}
