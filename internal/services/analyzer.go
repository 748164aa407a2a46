package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/caresync/internal/config"
	"github.com/Lllllllleong/caresync/internal/extract"
	"github.com/Lllllllleong/caresync/internal/models"
	"github.com/Lllllllleong/caresync/internal/store"
)

const (
	msgMissingInput = "Missing file or familyId"
	msgNotPDF       = "For best results, please upload a PDF document so we can read the text accurately."
	msgTooLarge     = "The uploaded file is too large."
	msgParseFailed  = "PDF Parse Failed"
	msgEmptyText    = "No text could be extracted from this document."
	msgUpstream     = "The document could not be analyzed right now. Please try again."
	msgPersistence  = "The analysis could not be saved. Please try again."
	msgDuplicate    = "This document was already uploaded for this family."
)

// TextExtractor reads the text layer of a PDF.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (*extract.Result, error)
}

// AnalysisModel returns the model's raw answer to an analysis prompt.
type AnalysisModel interface {
	GenerateAnalysis(ctx context.Context, prompt string) (string, error)
}

type BlobWriter interface {
	Put(ctx context.Context, objectName, contentType string, data []byte) (string, error)
}

type AnalysisRepository interface {
	FindDocumentByHash(ctx context.Context, familyID, fileHash string) (*models.Document, error)
	ListDocumentTasks(ctx context.Context, familyID, documentID string) ([]models.Task, error)
	SaveAnalysis(ctx context.Context, doc models.Document, tasks []models.Task) error
}

type WorkflowTrigger interface {
	Start(ctx context.Context, argument any) (string, error)
}

type AnalyzerConfig struct {
	Mode           config.Mode
	MaxUploadBytes int64
}

// AnalyzerDeps are the collaborators of the analyzer. Blobs, Repo and Workflow
// are only used in persistent mode; Workflow is optional even there.
type AnalyzerDeps struct {
	Extractor TextExtractor
	Model     AnalysisModel
	Blobs     BlobWriter
	Repo      AnalysisRepository
	Workflow  WorkflowTrigger
	Now       func() time.Time
	NewID     func() string
}

type AnalyzerFunction struct {
	config AnalyzerConfig
	deps   AnalyzerDeps
}

// AnalyzeRequest is one uploaded file. A non-empty FileURL means the file is
// already stored and the upload step is skipped.
type AnalyzeRequest struct {
	FamilyID    string
	Filename    string
	ContentType string
	Data        []byte
	UploadedBy  *string
	FileURL     string
}

func NewAnalyzerFunction(cfg AnalyzerConfig, deps AnalyzerDeps) *AnalyzerFunction {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.NewPDFExtractor()
	}
	return &AnalyzerFunction{config: cfg, deps: deps}
}

// NewAnalyzer wires the analyzer to the shared clients.
func NewAnalyzer(cfg *config.Config, clients *Clients) (*AnalyzerFunction, error) {
	deps := AnalyzerDeps{}
	if clients.Vertex != nil {
		deps.Model = clients.Vertex
	}
	if cfg.Persistent() {
		if clients.Blobs == nil || clients.Repo == nil {
			return nil, fmt.Errorf("persistent mode needs storage and firestore clients")
		}
		deps.Blobs = clients.Blobs
		deps.Repo = clients.Repo
		if clients.Workflow != nil {
			deps.Workflow = clients.Workflow
		}
	}
	if cfg.Mode != config.ModeDemo && deps.Model == nil {
		return nil, fmt.Errorf("%s mode needs a model client", cfg.Mode)
	}

	f := NewAnalyzerFunction(AnalyzerConfig{Mode: cfg.Mode, MaxUploadBytes: cfg.MaxUploadBytes}, deps)
	slog.Info("Document analyzer initialized.", "mode", cfg.Mode, "workflow", deps.Workflow != nil)
	return f, nil
}

// Process validates the upload, analyzes it according to the configured mode
// and returns the document with its tasks.
func (f *AnalyzerFunction) Process(ctx context.Context, req *AnalyzeRequest) (*models.AnalyzeResponse, error) {
	logCtx := slog.With("familyId", req.FamilyID, "filename", req.Filename, "mode", f.config.Mode)
	logCtx.Info("Processing analysis request.", "bytes", len(req.Data), "contentType", req.ContentType)

	if req.FamilyID == "" || len(req.Data) == 0 {
		return nil, newError(KindValidation, msgMissingInput, nil)
	}
	if f.config.MaxUploadBytes > 0 && int64(len(req.Data)) > f.config.MaxUploadBytes {
		return nil, newError(KindValidation, msgTooLarge, nil)
	}
	if !extract.IsPDF(req.ContentType, req.Data) {
		logCtx.Info("Rejected non-PDF upload.")
		return nil, newError(KindValidation, msgNotPDF, ErrNotPDF)
	}

	if f.config.Mode == config.ModeDemo {
		logCtx.Info("Returning demo analysis.")
		return DemoResponse(req.FamilyID, req.Filename, f.deps.Now()), nil
	}

	if f.config.Mode != config.ModePersistent {
		res, err := f.analyze(ctx, logCtx, req)
		if err != nil {
			return nil, err
		}
		return f.respond(req, f.deps.NewID(), "", res), nil
	}
	return f.processPersistent(ctx, logCtx, req)
}

type analysisResult struct {
	analysis  *models.Analysis
	outcome   models.Outcome
	pageCount int
}

func (f *AnalyzerFunction) processPersistent(ctx context.Context, logCtx *slog.Logger, req *AnalyzeRequest) (*models.AnalyzeResponse, error) {
	sum := sha256.Sum256(req.Data)
	fileHash := hex.EncodeToString(sum[:])
	logCtx = logCtx.With("fileHash", fileHash)

	existing, err := f.deps.Repo.FindDocumentByHash(ctx, req.FamilyID, fileHash)
	switch {
	case err == nil:
		logCtx.Info("Duplicate file detected. Returning existing document.", "existingDocId", existing.ID)
		return f.duplicateResponse(ctx, existing)
	case !errors.Is(err, store.ErrDocumentNotFound):
		logCtx.Error("Failed to check for duplicate", "error", err)
		return nil, newError(KindPersistence, msgPersistence, err)
	}

	fileURL := req.FileURL
	var res *analysisResult

	eg, gctx := errgroup.WithContext(ctx)
	if fileURL == "" {
		objectName := fmt.Sprintf("documents/%s/%s.pdf", req.FamilyID, fileHash)
		eg.Go(func() error {
			uri, err := f.deps.Blobs.Put(gctx, objectName, extract.PDFContentType, req.Data)
			if err != nil {
				logCtx.Error("Failed to store original file", "gcsObject", objectName, "error", err)
				return newError(KindPersistence, msgPersistence, err)
			}
			fileURL = uri
			return nil
		})
	}
	eg.Go(func() error {
		r, err := f.analyze(gctx, logCtx, req)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	documentID := f.deps.NewID()
	logCtx = logCtx.With("documentId", documentID)
	resp := f.respond(req, documentID, fileURL, res)
	resp.Document.FileHash = fileHash

	if err := f.deps.Repo.SaveAnalysis(ctx, resp.Document, resp.Tasks); err != nil {
		logCtx.Error("Failed to save analysis", "error", err)
		return nil, newError(KindPersistence, msgPersistence, err)
	}
	logCtx.Info("Saved document and tasks.", "taskCount", len(resp.Tasks), "outcome", resp.Outcome)

	f.triggerWorkflow(ctx, logCtx, resp)
	return resp, nil
}

// analyze extracts the text and asks the model for an analysis. Malformed
// model output is replaced by the fallback analysis.
func (f *AnalyzerFunction) analyze(ctx context.Context, logCtx *slog.Logger, req *AnalyzeRequest) (*analysisResult, error) {
	extracted, err := f.deps.Extractor.Extract(ctx, req.Data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logCtx.Warn("Text extraction failed", "error", err)
		if errors.Is(err, extract.ErrEmptyText) {
			return nil, newError(KindExtraction, msgEmptyText, err)
		}
		return nil, newError(KindExtraction, msgParseFailed, err)
	}
	logCtx.Info("PDF text extracted.", "pageCount", extracted.PageCount, "chars", len(extracted.Text))

	raw, err := f.deps.Model.GenerateAnalysis(ctx, BuildAnalysisPrompt(extracted.Text))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logCtx.Error("Model call failed", "error", err)
		return nil, newError(KindUpstream, msgUpstream, err)
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		logCtx.Warn("Model output did not match the analysis schema. Using fallback task.",
			"kind", "malformed_analysis", "error", err, "rawLength", len(raw))
		return &analysisResult{
			analysis:  FallbackAnalysis(req.Filename),
			outcome:   models.OutcomeFallback,
			pageCount: extracted.PageCount,
		}, nil
	}
	logCtx.Info("Analysis parsed.", "documentType", analysis.DocumentType, "taskCount", len(analysis.Tasks))
	return &analysisResult{analysis: analysis, outcome: models.OutcomeAnalyzed, pageCount: extracted.PageCount}, nil
}

func (f *AnalyzerFunction) respond(req *AnalyzeRequest, documentID, fileURL string, res *analysisResult) *models.AnalyzeResponse {
	now := f.deps.Now().UTC()
	docType := res.analysis.DocumentType
	doc := models.Document{
		ID:             documentID,
		FamilyID:       req.FamilyID,
		UploadedBy:     req.UploadedBy,
		Filename:       req.Filename,
		FileURL:        fileURL,
		PageCount:      res.pageCount,
		DocumentType:   &docType,
		AnalysisResult: res.analysis,
		CreatedAt:      now,
	}
	resp := &models.AnalyzeResponse{
		Success:  true,
		Outcome:  res.outcome,
		Document: doc,
		Tasks:    MaterializeTasks(req.FamilyID, &doc.ID, res.analysis.Tasks, now, f.deps.NewID),
		Analysis: res.analysis,
	}
	if res.outcome == models.OutcomeFallback {
		resp.Warning = fallbackWarning
	}
	return resp
}

func (f *AnalyzerFunction) duplicateResponse(ctx context.Context, doc *models.Document) (*models.AnalyzeResponse, error) {
	tasks, err := f.deps.Repo.ListDocumentTasks(ctx, doc.FamilyID, doc.ID)
	if err != nil {
		return nil, newError(KindPersistence, msgPersistence, err)
	}
	return &models.AnalyzeResponse{
		Success:  true,
		Outcome:  models.OutcomeAnalyzed,
		Warning:  msgDuplicate,
		Document: *doc,
		Tasks:    tasks,
		Analysis: doc.AnalysisResult,
	}, nil
}

// triggerWorkflow hands the new tasks to the notification workflow. The
// analysis is already saved, so a failure here is only logged.
func (f *AnalyzerFunction) triggerWorkflow(ctx context.Context, logCtx *slog.Logger, resp *models.AnalyzeResponse) {
	if f.deps.Workflow == nil {
		return
	}
	taskIDs := make([]string, 0, len(resp.Tasks))
	for _, t := range resp.Tasks {
		taskIDs = append(taskIDs, t.ID)
	}
	execName, err := f.deps.Workflow.Start(ctx, map[string]any{
		"familyId":   resp.Document.FamilyID,
		"documentId": resp.Document.ID,
		"taskIds":    taskIDs,
		"outcome":    resp.Outcome,
	})
	if err != nil {
		logCtx.Error("Failed to trigger notification workflow", "error", err)
		return
	}
	logCtx.Info("Hand-off to workflow complete.", "execution", execName)
}
