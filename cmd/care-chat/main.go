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
	chatHandler http.Handler
	once        sync.Once
	initErr     error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("CareChat", careChat)
}

// main is required by the Go Functions Framework.
func main() {}

// careChat streams the assistant's reply as plain text chunks.
func careChat(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		chatHandler, initErr = newChatHandler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical: chat initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	chatHandler.ServeHTTP(w, r)
}

func newChatHandler(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := config.NewLogger(cfg.Log)

	clients, err := services.NewClients(ctx, cfg)
	if err != nil {
		return nil, err
	}
	chat, err := services.NewChat(cfg, clients)
	if err != nil {
		clients.Close()
		return nil, err
	}
	return handlers.Wrap(handlers.NewChatHandler(chat, clients.Verifier), logger), nil
}
