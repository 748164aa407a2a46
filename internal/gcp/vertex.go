package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

// --- Analyzer Model Prompts ---
const AnalyzerSystemPrompt = "You are a clinical document analyst helping families coordinate care. You read medical documents and extract specific, actionable care tasks. You must output your response as a single valid JSON object."

// AnalyzerUserPromptTemplate takes the (already truncated) document text as its only argument.
const AnalyzerUserPromptTemplate = `Analyze this medical document text and extract actionable care tasks.

DOCUMENT TEXT:
"%s"

(Note: Text may be truncated if too long)

Please provide a JSON response with the following structure:
{
  "document_type": "discharge_summary|prescription|care_plan|other",
  "patient_info": {
    "name": "extracted name or null",
    "conditions": ["list of medical conditions"]
  },
  "tasks": [
    {
      "title": "Clear, actionable task title",
      "description": "Detailed description of what needs to be done",
      "priority": "low|medium|high|urgent",
      "due_date": "YYYY-MM-DD or null if not specified",
      "category": "medication|appointment|monitoring|lifestyle|other"
    }
  ],
  "key_information": ["Important notes or warnings"],
  "summary": "Brief summary of the document content"
}

Focus on extracting specific, actionable tasks that family members can complete. Return ONLY valid JSON.`

// --- Chat Model Prompts ---

// ChatSystemPromptTemplate takes the session email and the rendered family context line.
const ChatSystemPromptTemplate = `You are CareSync, a Sentient Care Assistant.
Your goal is to help families manage complex healthcare journeys with empathy, clarity, and intelligence.

Traits:
- Empathetic and supportive tone.
- Proactive in suggesting care tasks.
- Knowledgeable about general medical terms (but always clarify you are an AI, not a doctor).
- Concise and action-oriented.

Context:
You are assisting the family of %s.
%s

Always format your response with clean Markdown. Use bullet points for lists.`

const (
	analyzerTemperature     = 0.1
	analyzerMaxOutputTokens = 4096
	chatTemperature         = 0.7
	chatMaxOutputTokens     = 1024
)

// ErrEmptyCompletion is returned when the model answers without any text.
var ErrEmptyCompletion = errors.New("model returned an empty completion")

// Turn is one message of a chat transcript, in the roles the dashboard uses
// ("user" or "assistant").
type Turn struct {
	Role string
	Text string
}

// TextStream yields the text deltas of a streamed completion in arrival order.
// Next returns io.EOF once the completion is finished.
type TextStream interface {
	Next() (string, error)
	Close() error
}

// VertexClient builds the generative models used by the CareSync functions.
// Models are created per request from the shared base client.
type VertexClient struct {
	baseClient    *genai.Client
	analyzerModel string
	chatModel     string
}

// NewVertexClient creates a new client for the analyzer and chat models.
func NewVertexClient(ctx context.Context, projectID, region, analyzerModel, chatModel string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &VertexClient{
		baseClient:    baseClient,
		analyzerModel: analyzerModel,
		chatModel:     chatModel,
	}, nil
}

func (c *VertexClient) newAnalyzerModel() *genai.GenerativeModel {
	model := c.baseClient.GenerativeModel(c.analyzerModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(AnalyzerSystemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		// Force JSON output.
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](analyzerTemperature),
		MaxOutputTokens:  genai.Ptr[int32](analyzerMaxOutputTokens),
	}
	// Medication and dosage instructions trip the default filters.
	model.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}
	return model
}

func (c *VertexClient) newChatModel(systemPrompt string) *genai.GenerativeModel {
	model := c.baseClient.GenerativeModel(c.chatModel)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr[float32](chatTemperature),
		MaxOutputTokens: genai.Ptr[int32](chatMaxOutputTokens),
	}
	return model
}

// GenerateAnalysis sends the analysis prompt and returns the raw JSON text.
func (c *VertexClient) GenerateAnalysis(ctx context.Context, prompt string) (string, error) {
	resp, err := c.newAnalyzerModel().GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate analysis from gemini: %w", err)
	}
	text := ExtractText(resp)
	if text == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// StreamChat starts a streamed chat completion. The last turn must be the
// user's; earlier turns become the session history. The stream is bound to
// ctx and Close cancels the upstream request.
func (c *VertexClient) StreamChat(ctx context.Context, systemPrompt string, turns []Turn) (TextStream, error) {
	turns = normalizeTurns(turns)
	if len(turns) == 0 {
		return nil, fmt.Errorf("StreamChat: at least one turn is required")
	}
	last := turns[len(turns)-1]

	streamCtx, cancel := context.WithCancel(ctx)
	session := c.newChatModel(systemPrompt).StartChat()
	session.History = toContents(turns[:len(turns)-1])

	return &vertexStream{
		it:     session.SendMessageStream(streamCtx, genai.Text(last.Text)),
		cancel: cancel,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// normalizeTurns shapes a transcript into the history Gemini accepts: it
// starts with a user turn and roles alternate. Leading assistant turns (such
// as an upload summary) are dropped, empty turns are skipped and consecutive
// turns of the same role are merged.
func normalizeTurns(turns []Turn) []Turn {
	out := make([]Turn, 0, len(turns))
	for _, t := range turns {
		if strings.TrimSpace(t.Text) == "" {
			continue
		}
		if t.Role != "assistant" {
			t.Role = "user"
		}
		if len(out) == 0 && t.Role == "assistant" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == t.Role {
			out[n-1].Text += "\n\n" + t.Text
			continue
		}
		out = append(out, t)
	}
	return out
}

func toContents(turns []Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Text)},
		})
	}
	return contents
}

type vertexStream struct {
	it     *genai.GenerateContentResponseIterator
	cancel context.CancelFunc
}

func (s *vertexStream) Next() (string, error) {
	for {
		resp, err := s.it.Next()
		if err == iterator.Done {
			return "", io.EOF
		}
		if err != nil {
			return "", fmt.Errorf("gemini stream: %w", err)
		}
		// Chunks without text (e.g. a trailing usage-only chunk) are skipped.
		if text := candidateText(resp); text != "" {
			return text, nil
		}
	}
}

func (s *vertexStream) Close() error {
	s.cancel()
	return nil
}

// ExtractText returns the trimmed text of the first candidate with any
// markdown code fences removed.
func ExtractText(resp *genai.GenerateContentResponse) string {
	contentStr := strings.TrimSpace(candidateText(resp))
	contentStr = strings.TrimPrefix(contentStr, "```json")
	contentStr = strings.TrimPrefix(contentStr, "```")
	contentStr = strings.TrimSuffix(contentStr, "```")
	return strings.TrimSpace(contentStr)
}

func candidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String()
}
