package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/Lllllllleong/caresync/internal/config"
	"github.com/Lllllllleong/caresync/internal/extract"
	"github.com/Lllllllleong/caresync/internal/gcp"
	"github.com/Lllllllleong/caresync/internal/models"
)

// UploadsPrefix is the folder the ingest function watches. Objects are named
// uploads/<familyId>/<filename>.pdf.
const UploadsPrefix = "uploads/"

// GCSEvent is the payload of a storage object finalize event.
type GCSEvent struct {
	Bucket      string            `json:"bucket"`
	Name        string            `json:"name"`
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata"`
}

type BlobReader interface {
	Get(ctx context.Context, bucket, object string, maxBytes int64) ([]byte, error)
}

type DocumentAnalyzer interface {
	Process(ctx context.Context, req *AnalyzeRequest) (*models.AnalyzeResponse, error)
}

// IngestFunction analyzes PDFs dropped directly into the uploads bucket.
type IngestFunction struct {
	blobs    BlobReader
	analyzer DocumentAnalyzer
	maxBytes int64
}

func NewIngestFunction(blobs BlobReader, analyzer DocumentAnalyzer, maxBytes int64) *IngestFunction {
	return &IngestFunction{blobs: blobs, analyzer: analyzer, maxBytes: maxBytes}
}

func NewIngest(cfg *config.Config, clients *Clients) (*IngestFunction, error) {
	if !cfg.Persistent() {
		return nil, fmt.Errorf("document ingest requires persistent mode (got %s)", cfg.Mode)
	}
	analyzer, err := NewAnalyzer(cfg, clients)
	if err != nil {
		return nil, err
	}
	slog.Info("Document ingest initialized.", "prefix", UploadsPrefix)
	return NewIngestFunction(clients.Blobs, analyzer, cfg.MaxUploadBytes), nil
}

// ParseUploadName splits uploads/<familyId>/<filename> into its parts.
func ParseUploadName(name string) (familyID, filename string, ok bool) {
	rest, found := strings.CutPrefix(name, UploadsPrefix)
	if !found {
		return "", "", false
	}
	familyID, filename, found = strings.Cut(rest, "/")
	if !found || familyID == "" || filename == "" || strings.Contains(filename, "/") {
		return "", "", false
	}
	if !strings.EqualFold(path.Ext(filename), ".pdf") {
		return "", "", false
	}
	return familyID, filename, true
}

// Process runs one uploaded object through the analysis pipeline. Objects
// outside the uploads layout are skipped.
func (f *IngestFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	logCtx.Info("Processing new GCS object.")

	familyID, filename, ok := ParseUploadName(e.Name)
	if !ok {
		logCtx.Info("Object is not a family upload. Skipping.")
		return nil
	}

	data, err := f.blobs.Get(ctx, e.Bucket, e.Name, f.maxBytes)
	if errors.Is(err, gcp.ErrTooLarge) {
		logCtx.Warn("Upload is over the size limit. Skipping.", "maxBytes", f.maxBytes, "error", err)
		return nil
	}
	if err != nil {
		logCtx.Error("Failed to download uploaded PDF", "error", err)
		return err
	}

	contentType := e.ContentType
	if contentType == "" {
		contentType = extract.PDFContentType
	}
	req := &AnalyzeRequest{
		FamilyID:    familyID,
		Filename:    filename,
		ContentType: contentType,
		Data:        data,
		FileURL:     fmt.Sprintf("gs://%s/%s", e.Bucket, e.Name),
	}
	if uploader := e.Metadata["uploadedBy"]; uploader != "" {
		req.UploadedBy = &uploader
	}

	resp, err := f.analyzer.Process(ctx, req)
	if err != nil {
		// Bad input will not get better on retry.
		if k := KindOf(err); k == KindValidation || k == KindExtraction {
			logCtx.Warn("Upload cannot be analyzed. Skipping.", "kind", k, "error", err)
			return nil
		}
		logCtx.Error("Failed to analyze upload", "error", err)
		return err
	}
	logCtx.Info("Upload analyzed.", "documentId", resp.Document.ID, "taskCount", len(resp.Tasks), "outcome", resp.Outcome)
	return nil
}
