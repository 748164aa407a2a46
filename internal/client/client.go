// Package client talks to the CareSync HTTP endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"

	"github.com/Lllllllleong/caresync/internal/models"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
	Kind    string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("caresync: %d %s: %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("caresync: %d: %s", e.Status, e.Message)
}

// Client calls one CareSync deployment.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Streaming chat needs a client
// without an overall Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Transport: http.DefaultTransport},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Analyze uploads a document for analysis.
func (c *Client) Analyze(ctx context.Context, familyID, filename string, data []byte) (*models.AnalyzeResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("familyId", familyID); err != nil {
		return nil, fmt.Errorf("client: write form: %w", err)
	}
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(filename)))
	h.Set("Content-Type", contentTypeFor(filename, data))
	part, err := mw.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("client: write form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("client: write form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("client: write form: %w", err)
	}

	var out models.AnalyzeResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/analyze", mw.FormDataContentType(), &body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func contentTypeFor(filename string, data []byte) string {
	if strings.EqualFold(path.Ext(filename), ".pdf") {
		return "application/pdf"
	}
	return http.DetectContentType(data)
}

func (c *Client) ListTasks(ctx context.Context, familyID string) ([]models.Task, error) {
	var out models.TaskListResponse
	p := "/api/tasks?familyId=" + url.QueryEscape(familyID)
	if err := c.doJSON(ctx, http.MethodGet, p, "", nil, &out); err != nil {
		return nil, err
	}
	return out.Tasks, nil
}

// AssignTask assigns a task, or unassigns it when memberID is nil.
func (c *Client) AssignTask(ctx context.Context, familyID, taskID string, memberID *string) (models.Task, error) {
	return c.postTask(ctx, taskID, "assign", models.AssignTaskRequest{FamilyID: familyID, MemberID: memberID})
}

func (c *Client) SetTaskStatus(ctx context.Context, familyID, taskID string, status models.Status) (models.Task, error) {
	return c.postTask(ctx, taskID, "status", models.UpdateTaskStatusRequest{FamilyID: familyID, Status: string(status)})
}

func (c *Client) postTask(ctx context.Context, taskID, action string, payload any) (models.Task, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return models.Task{}, fmt.Errorf("client: encode request: %w", err)
	}
	var out models.TaskResponse
	p := "/api/tasks/" + url.PathEscape(taskID) + "/" + action
	if err := c.doJSON(ctx, http.MethodPost, p, "application/json", bytes.NewReader(b), &out); err != nil {
		return models.Task{}, err
	}
	return out.Task, nil
}

func (c *Client) newRequest(ctx context.Context, method, p, contentType string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+p, body)
	if err != nil {
		return nil, fmt.Errorf("client: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, p, contentType string, body io.Reader, out any) error {
	req, err := c.newRequest(ctx, method, p, contentType, body)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return apiErr
	}
	var er models.ErrorResponse
	if json.Unmarshal(body, &er) == nil && er.Error != "" {
		apiErr.Message, apiErr.Kind = er.Error, er.Kind
	} else if s := strings.TrimSpace(string(body)); s != "" {
		apiErr.Message = s
	}
	return apiErr
}
