package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"github.com/Lllllllleong/caresync/internal/config"
	"github.com/Lllllllleong/caresync/internal/handlers"
	"github.com/Lllllllleong/caresync/internal/services"
)

var (
	analyzeHandler http.Handler
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// "AnalyzeDocument" is the entry point name configured in GCP.
	functions.HTTP("AnalyzeDocument", analyzeDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func analyzeDocument(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		analyzeHandler, initErr = newAnalyzeHandler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: analyzer initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	analyzeHandler.ServeHTTP(w, r)
}

func newAnalyzeHandler(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(cfg.Log)

	clients, err := services.NewClients(ctx, cfg)
	if err != nil {
		return nil, err
	}
	analyzer, err := services.NewAnalyzer(cfg, clients)
	if err != nil {
		clients.Close()
		return nil, err
	}
	h := handlers.NewAnalyzeHandler(analyzer, clients.Verifier, cfg.Persistent(), cfg.MaxUploadBytes)
	return handlers.Wrap(h, logger), nil
}
