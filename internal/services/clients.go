package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"

	"github.com/Lllllllleong/caresync/internal/auth"
	"github.com/Lllllllleong/caresync/internal/config"
	"github.com/Lllllllleong/caresync/internal/gcp"
	"github.com/Lllllllleong/caresync/internal/store"
)

// Clients holds the cloud clients shared by the functions of one instance.
// Which clients exist depends on the analysis mode: demo mode creates none,
// ephemeral mode only the model client, persistent mode all of them.
type Clients struct {
	Vertex    *gcp.VertexClient
	Storage   *storage.Client
	Blobs     *gcp.BlobStore
	Firestore *firestore.Client
	Repo      *store.Repository
	Workflow  *gcp.WorkflowStarter
	Verifier  *auth.Verifier
}

// NewClients creates the clients cfg calls for.
func NewClients(ctx context.Context, cfg *config.Config) (*Clients, error) {
	c := &Clients{}
	if cfg.Auth.JWTSecret != "" {
		c.Verifier = auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)
	}
	if cfg.Mode == config.ModeDemo {
		slog.Warn("Running in demo mode. Analysis and chat return canned data.")
		return c, nil
	}

	vertexClient, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.AnalyzerModel, cfg.ChatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	c.Vertex = vertexClient

	if !cfg.Persistent() {
		return c, nil
	}

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	c.Storage = storageClient
	c.Blobs = gcp.NewBlobStore(storageClient, cfg.Storage.DocumentsBucket)

	firestoreClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID, cfg.Storage.FirestoreDatabase)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	c.Firestore = firestoreClient
	c.Repo = store.NewRepository(firestoreClient, cfg.Storage.DocumentsCollection, cfg.Storage.TasksCollection)

	if cfg.Workflow.WorkflowID != "" {
		starter, err := gcp.NewWorkflowStarter(ctx, cfg.ProjectID, cfg.Workflow.Location, cfg.Workflow.WorkflowID)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Workflow = starter
	}
	return c, nil
}

func (c *Clients) Close() error {
	var errs []error
	if c.Vertex != nil {
		errs = append(errs, c.Vertex.Close())
	}
	if c.Storage != nil {
		errs = append(errs, c.Storage.Close())
	}
	if c.Firestore != nil {
		errs = append(errs, c.Firestore.Close())
	}
	if c.Workflow != nil {
		errs = append(errs, c.Workflow.Close())
	}
	return errors.Join(errs...)
}
