package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Lllllllleong/caresync/internal/extract"
	"github.com/Lllllllleong/caresync/internal/gcp"
	"github.com/Lllllllleong/caresync/internal/models"
	"github.com/Lllllllleong/caresync/internal/store"
)

var (
	fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n%%EOF")
)

func clock() time.Time { return fixedNow }

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

type fakeExtractor struct {
	result *extract.Result
	err    error
	calls  int
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte) (*extract.Result, error) {
	f.calls++
	return f.result, f.err
}

type fakeModel struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (f *fakeModel) GenerateAnalysis(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.answer, f.err
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func (f *fakeBlobs) Put(_ context.Context, objectName, _ string, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[objectName] = data
	return "gs://caresync-documents/" + objectName, nil
}

func (f *fakeBlobs) Get(_ context.Context, bucket, object string, maxBytes int64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[object]
	if !ok {
		return nil, fmt.Errorf("gs://%s/%s not found", bucket, object)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: gs://%s/%s", gcp.ErrTooLarge, bucket, object)
	}
	return data, nil
}

type fakeRepo struct {
	mu        sync.Mutex
	documents []models.Document
	tasks     map[string]models.Task
	saveErr   error
}

func (f *fakeRepo) FindDocumentByHash(_ context.Context, familyID, fileHash string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.documents {
		if d.FamilyID == familyID && d.FileHash == fileHash {
			d := d
			return &d, nil
		}
	}
	return nil, store.ErrDocumentNotFound
}

func (f *fakeRepo) ListDocumentTasks(_ context.Context, familyID, documentID string) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, t := range f.tasks {
		if t.FamilyID == familyID && t.DocumentID != nil && *t.DocumentID == documentID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) SaveAnalysis(_ context.Context, doc models.Document, tasks []models.Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.documents = append(f.documents, doc)
	if f.tasks == nil {
		f.tasks = map[string]models.Task{}
	}
	for _, t := range tasks {
		f.tasks[t.ID] = t
	}
	return nil
}

func (f *fakeRepo) ListTasks(_ context.Context, familyID string) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Task
	for _, t := range f.tasks {
		if t.FamilyID == familyID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateTask(_ context.Context, familyID, taskID string, patch models.TaskPatch, now time.Time) (models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[taskID]
	if !ok || t.FamilyID != familyID {
		return models.Task{}, store.ErrTaskNotFound
	}
	t = patch.Apply(t, now)
	f.tasks[taskID] = t
	return t, nil
}

type fakeWorkflow struct {
	args []any
	err  error
}

func (f *fakeWorkflow) Start(_ context.Context, argument any) (string, error) {
	f.args = append(f.args, argument)
	return "executions/1", f.err
}

type fakeChatModel struct {
	deltas       []string
	err          error
	systemPrompt string
	turns        []gcp.Turn
}

func (f *fakeChatModel) StreamChat(_ context.Context, systemPrompt string, turns []gcp.Turn) (gcp.TextStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.systemPrompt = systemPrompt
	f.turns = turns
	return newStaticStream(append([]string(nil), f.deltas...)), nil
}
