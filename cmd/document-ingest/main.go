package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Lllllllleong/caresync/internal/config"
	"github.com/Lllllllleong/caresync/internal/services"
)

var (
	ingestInstance *services.IngestFunction
	once           sync.Once
	initErr        error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Triggered by object finalization in the documents bucket.
	functions.CloudEvent("IngestDocument", ingestDocument)
}

// main is required by the Go Functions Framework.
func main() {}

func ingestDocument(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		ingestInstance, initErr = newIngest(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Returning an error marks the invocation as failed so it is retried.
	return ingestInstance.Process(ctx, gcsEvent)
}

func newIngest(ctx context.Context) (*services.IngestFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	config.NewLogger(cfg.Log)

	clients, err := services.NewClients(ctx, cfg)
	if err != nil {
		return nil, err
	}
	ingest, err := services.NewIngest(cfg, clients)
	if err != nil {
		clients.Close()
		return nil, err
	}
	return ingest, nil
}
