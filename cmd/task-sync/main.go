package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/gorilla/mux"

	"github.com/Lllllllleong/caresync/internal/config"
	"github.com/Lllllllleong/caresync/internal/handlers"
	"github.com/Lllllllleong/caresync/internal/services"
)

var (
	taskRouter http.Handler
	once       sync.Once
	initErr    error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("TaskSync", taskSync)
}

// main is required by the Go Functions Framework.
func main() {}

// taskSync serves the family task list under /api/tasks.
func taskSync(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		taskRouter, initErr = newTaskRouter(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: task sync initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	taskRouter.ServeHTTP(w, r)
}

func newTaskRouter(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(cfg.Log)

	clients, err := services.NewClients(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ts, err := services.NewTaskSync(cfg, clients)
	if err != nil {
		clients.Close()
		return nil, err
	}

	r := mux.NewRouter()
	handlers.NewTasksHandler(ts, clients.Verifier).Register(r)
	return handlers.Wrap(r, logger), nil
}
