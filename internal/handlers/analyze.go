package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/caresync/internal/auth"
	"github.com/Lllllllleong/caresync/internal/models"
	"github.com/Lllllllleong/caresync/internal/services"
)

// multipartOverhead is allowed on top of the file limit for the form framing.
const multipartOverhead = 1 << 20

type Analyzer interface {
	Process(ctx context.Context, req *services.AnalyzeRequest) (*models.AnalyzeResponse, error)
}

// AnalyzeHandler accepts a multipart upload with "file" and "familyId" fields.
type AnalyzeHandler struct {
	analyzer    Analyzer
	verifier    *auth.Verifier
	requireAuth bool
	maxBytes    int64
}

func NewAnalyzeHandler(analyzer Analyzer, verifier *auth.Verifier, requireAuth bool, maxBytes int64) *AnalyzeHandler {
	return &AnalyzeHandler{analyzer: analyzer, verifier: verifier, requireAuth: requireAuth, maxBytes: maxBytes}
}

func (h *AnalyzeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeMessage(w, http.StatusMethodNotAllowed, services.KindValidation, "Method not allowed")
		return
	}

	session, err := sessionFor(r, h.verifier, h.requireAuth)
	if err != nil {
		slog.Info("Rejected unauthenticated upload", "error", err)
		writeMessage(w, http.StatusUnauthorized, services.KindUnauthorized, "Unauthorized")
		return
	}
	if session != nil {
		r = r.WithContext(auth.WithSession(r.Context(), session))
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		if isTooLarge(err) {
			writeMessage(w, http.StatusRequestEntityTooLarge, services.KindValidation, "The uploaded file is too large.")
			return
		}
		writeMessage(w, http.StatusBadRequest, services.KindValidation, "Missing file or familyId")
		return
	}
	defer r.MultipartForm.RemoveAll()

	req := &services.AnalyzeRequest{FamilyID: r.FormValue("familyId")}
	if !familyAllowed(w, r, req.FamilyID) {
		return
	}
	if session != nil {
		req.UploadedBy = &session.UserID
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		// The service reports the missing file.
	case err != nil:
		writeMessage(w, http.StatusBadRequest, services.KindValidation, "Missing file or familyId")
		return
	default:
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			slog.Error("Failed to read uploaded file", "error", err)
			writeMessage(w, http.StatusBadRequest, services.KindValidation, "The upload could not be read.")
			return
		}
		req.Data = data
		req.Filename = header.Filename
		req.ContentType = header.Header.Get("Content-Type")
	}

	resp, err := h.analyzer.Process(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
