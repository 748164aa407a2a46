// Command caresync-server serves every HTTP function from one process, for
// local development and container deployments.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lllllllleong/caresync/internal/config"
	"github.com/Lllllllleong/caresync/internal/handlers"
	"github.com/Lllllllleong/caresync/internal/services"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients, err := services.NewClients(ctx, cfg)
	if err != nil {
		return err
	}
	defer clients.Close()

	routes, err := buildRoutes(cfg, clients)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handlers.NewRouter(routes, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildRoutes(cfg *config.Config, clients *services.Clients) (handlers.Routes, error) {
	analyzer, err := services.NewAnalyzer(cfg, clients)
	if err != nil {
		return handlers.Routes{}, err
	}
	chat, err := services.NewChat(cfg, clients)
	if err != nil {
		return handlers.Routes{}, err
	}
	routes := handlers.Routes{
		Analyze: handlers.NewAnalyzeHandler(analyzer, clients.Verifier, cfg.Persistent(), cfg.MaxUploadBytes),
		Chat:    handlers.NewChatHandler(chat, clients.Verifier),
	}
	if cfg.Persistent() {
		ts, err := services.NewTaskSync(cfg, clients)
		if err != nil {
			return handlers.Routes{}, err
		}
		routes.Tasks = handlers.NewTasksHandler(ts, clients.Verifier)
	}
	return routes, nil
}
