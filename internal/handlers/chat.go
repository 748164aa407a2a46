package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/caresync/internal/auth"
	"github.com/Lllllllleong/caresync/internal/gcp"
	"github.com/Lllllllleong/caresync/internal/models"
	"github.com/Lllllllleong/caresync/internal/services"
)

const maxChatBodyBytes = 1 << 20

type Chat interface {
	Process(ctx context.Context, req *models.ChatRequest, email string) (gcp.TextStream, error)
}

// ChatHandler streams the assistant's reply as plain text deltas.
type ChatHandler struct {
	chat     Chat
	verifier *auth.Verifier
}

func NewChatHandler(chat Chat, verifier *auth.Verifier) *ChatHandler {
	return &ChatHandler{chat: chat, verifier: verifier}
}

func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeMessage(w, http.StatusMethodNotAllowed, services.KindValidation, "Method not allowed")
		return
	}

	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes)).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, services.KindValidation, "Invalid messages format")
		return
	}

	email := ""
	if session, _ := sessionFor(r, h.verifier, false); session != nil {
		email = session.Email
	}

	// The stream is bound to the request context, so a caller that goes away
	// cancels the upstream request.
	stream, err := h.chat.Process(r.Context(), &req, email)
	if err != nil {
		writeError(w, err)
		return
	}
	defer stream.Close()

	logCtx := slog.With("requestId", requestIDFrom(r.Context()))

	// Nothing is sent until the first delta arrives so that an upstream
	// failure can still be reported as a JSON error.
	first, err := stream.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		logCtx.Error("Chat stream failed before the first delta", "error", err)
		writeMessage(w, http.StatusBadGateway, services.KindUpstream, "The assistant is unavailable right now. Please try again.")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err != nil {
		return
	}

	rc := http.NewResponseController(w)
	delta, deltas := first, 0
	for {
		if _, werr := io.WriteString(w, delta); werr != nil {
			logCtx.Info("Chat client went away", "error", werr)
			return
		}
		_ = rc.Flush()
		deltas++

		delta, err = stream.Next()
		if errors.Is(err, io.EOF) {
			logCtx.Info("Chat reply complete.", "deltas", deltas)
			return
		}
		if err != nil {
			logCtx.Error("Chat stream failed mid-answer", "error", err, "deltas", deltas)
			abortStream(w)
			return
		}
	}
}

// abortStream drops the connection without the terminating chunk so the
// client reads a truncated body. The Functions Framework recovers handler
// panics and finishes the response itself, so the connection is hijacked
// first and the panic is only the fallback for writers that cannot be.
func abortStream(w http.ResponseWriter) {
	conn, _, err := http.NewResponseController(w).Hijack()
	if err != nil {
		panic(http.ErrAbortHandler)
	}
	conn.Close()
}
