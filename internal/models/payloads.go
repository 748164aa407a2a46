package models

// These structs define the JSON payloads exchanged between the dashboard
// and the HTTP functions.

// Outcome tells the caller what produced an analysis response.
type Outcome string

const (
	// OutcomeAnalyzed is a genuine model analysis.
	OutcomeAnalyzed Outcome = "analyzed"
	// OutcomeFallback means the model answered but its output did not match the
	// analysis schema, so a single generic task was substituted.
	OutcomeFallback Outcome = "fallback"
	// OutcomeDemo is canned data returned because the service runs in demo mode.
	OutcomeDemo Outcome = "demo"
)

// AnalyzeResponse is the success envelope of the analyze-document function.
type AnalyzeResponse struct {
	Success  bool      `json:"success"`
	Outcome  Outcome   `json:"outcome"`
	IsDemo   bool      `json:"is_demo"`
	Warning  string    `json:"warning,omitempty"`
	Document Document  `json:"document"`
	Tasks    []Task    `json:"tasks"`
	Analysis *Analysis `json:"analysis"`
}

// ErrorResponse is returned with every 4xx/5xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the input of the care-chat function.
// FamilyContext is free-form and is forwarded to the model as JSON.
type ChatRequest struct {
	Messages      []ChatMessage `json:"messages"`
	FamilyContext any           `json:"familyContext,omitempty"`
}

// AssignTaskRequest assigns (or, with a null member, unassigns) a task.
type AssignTaskRequest struct {
	FamilyID string  `json:"familyId"`
	MemberID *string `json:"memberId"`
}

type UpdateTaskStatusRequest struct {
	FamilyID string `json:"familyId"`
	Status   string `json:"status"`
}

type TaskListResponse struct {
	Tasks []Task `json:"tasks"`
}

type TaskResponse struct {
	Task Task `json:"task"`
}
