package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/Lllllllleong/caresync/internal/config"
	"github.com/Lllllllleong/caresync/internal/gcp"
	"github.com/Lllllllleong/caresync/internal/models"
)

const (
	// GuestEmail is used in the persona prompt when the caller has no session.
	GuestEmail = "guest@caresync.app"

	msgInvalidMessages = "Invalid messages format"
	msgChatUpstream    = "The assistant is unavailable right now. Please try again."
)

// ChatModel streams a completion for a transcript.
type ChatModel interface {
	StreamChat(ctx context.Context, systemPrompt string, turns []gcp.Turn) (gcp.TextStream, error)
}

type ChatFunction struct {
	model ChatModel
	demo  bool
}

// NewChatFunction creates the chat service. A nil model is only allowed in
// demo mode, where a canned reply is streamed instead.
func NewChatFunction(model ChatModel, mode config.Mode) (*ChatFunction, error) {
	if model == nil && mode != config.ModeDemo {
		return nil, fmt.Errorf("%s mode needs a chat model", mode)
	}
	return &ChatFunction{model: model, demo: mode == config.ModeDemo}, nil
}

func NewChat(cfg *config.Config, clients *Clients) (*ChatFunction, error) {
	var model ChatModel
	if clients.Vertex != nil {
		model = clients.Vertex
	}
	f, err := NewChatFunction(model, cfg.Mode)
	if err != nil {
		return nil, err
	}
	slog.Info("Care chat initialized.", "mode", cfg.Mode)
	return f, nil
}

// ValidateChat checks the transcript: it must be non-empty, use only the user
// and assistant roles, and end with a user message.
func ValidateChat(req *models.ChatRequest) error {
	if req == nil || len(req.Messages) == 0 {
		return newError(KindValidation, msgInvalidMessages, nil)
	}
	for i, m := range req.Messages {
		if m.Role != models.ChatRoleUser && m.Role != models.ChatRoleAssistant {
			return newError(KindValidation, msgInvalidMessages, fmt.Errorf("message %d has role %q", i, m.Role))
		}
	}
	if req.Messages[len(req.Messages)-1].Role != models.ChatRoleUser {
		return newError(KindValidation, msgInvalidMessages, fmt.Errorf("last message is not from the user"))
	}
	return nil
}

// BuildChatSystemPrompt renders the persona for the caller. The family
// context is embedded as JSON when present.
func BuildChatSystemPrompt(email string, familyContext any) string {
	if email == "" {
		email = GuestEmail
	}
	contextLine := ""
	if familyContext != nil {
		if b, err := json.Marshal(familyContext); err == nil && string(b) != "null" {
			contextLine = "Current Family Context: " + string(b)
		}
	}
	return fmt.Sprintf(gcp.ChatSystemPromptTemplate, email, contextLine)
}

// Process starts a streamed reply. Errors returned here happen before any
// text was produced; errors from the stream happen mid-answer.
func (f *ChatFunction) Process(ctx context.Context, req *models.ChatRequest, email string) (gcp.TextStream, error) {
	if err := ValidateChat(req); err != nil {
		return nil, err
	}
	logCtx := slog.With("messages", len(req.Messages), "hasFamilyContext", req.FamilyContext != nil)

	if f.demo {
		logCtx.Info("Streaming demo chat reply.")
		return newStaticStream(demoChatReply), nil
	}

	turns := make([]gcp.Turn, 0, len(req.Messages))
	for _, m := range req.Messages {
		turns = append(turns, gcp.Turn{Role: m.Role, Text: m.Content})
	}
	stream, err := f.model.StreamChat(ctx, BuildChatSystemPrompt(email, req.FamilyContext), turns)
	if err != nil {
		logCtx.Error("Failed to start chat stream", "error", err)
		return nil, newError(KindUpstream, msgChatUpstream, err)
	}
	return stream, nil
}

var demoChatReply = []string{
	"This is a **demo** reply. ",
	"CareSync is running without a model connection, ",
	"so I can't answer questions about your documents yet.\n\n",
	"- Upload a discharge summary to see example tasks\n",
	"- Assign tasks to family members from the board\n",
}

type staticStream struct {
	chunks []string
}

func newStaticStream(chunks []string) *staticStream {
	return &staticStream{chunks: chunks}
}

func (s *staticStream) Next() (string, error) {
	if len(s.chunks) == 0 {
		return "", io.EOF
	}
	next := s.chunks[0]
	s.chunks = s.chunks[1:]
	return next, nil
}

func (s *staticStream) Close() error { return nil }
