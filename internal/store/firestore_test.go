package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lllllllleong/caresync/internal/gcp"
	"github.com/Lllllllleong/caresync/internal/models"
)

// newEmulatorRepository connects to the Firestore emulator. Tests are skipped
// unless FIRESTORE_EMULATOR_HOST is set.
func newEmulatorRepository(t *testing.T) *Repository {
	t.Helper()
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	client, err := gcp.NewFirestoreClient(context.Background(), "caresync-test", os.Getenv("FIRESTORE_DATABASE_ID"))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	suffix := uuid.NewString()
	return NewRepository(client, "documents-"+suffix, "tasks-"+suffix)
}

func TestRepository_SaveAndQuery(t *testing.T) {
	repo := newEmulatorRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	docID := uuid.NewString()
	doc := models.Document{ID: docID, FamilyID: "fam-1", Filename: "discharge.pdf", FileHash: "abc", CreatedAt: now}
	tasks := []models.Task{
		{ID: uuid.NewString(), FamilyID: "fam-1", DocumentID: &docID, Title: "second", Status: models.StatusPending, CreatedAt: now.Add(time.Second)},
		{ID: uuid.NewString(), FamilyID: "fam-1", DocumentID: &docID, Title: "first", Status: models.StatusPending, CreatedAt: now},
	}
	require.NoError(t, repo.SaveAnalysis(ctx, doc, tasks))

	found, err := repo.FindDocumentByHash(ctx, "fam-1", "abc")
	require.NoError(t, err)
	assert.Equal(t, docID, found.ID)

	_, err = repo.FindDocumentByHash(ctx, "fam-2", "abc")
	require.ErrorIs(t, err, ErrDocumentNotFound)

	listed, err := repo.ListTasks(ctx, "fam-1")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "first", listed[0].Title)

	byDoc, err := repo.ListDocumentTasks(ctx, "fam-1", docID)
	require.NoError(t, err)
	assert.Len(t, byDoc, 2)
}

func TestRepository_UpdateTask(t *testing.T) {
	repo := newEmulatorRepository(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	task := models.Task{ID: uuid.NewString(), FamilyID: "fam-1", Title: "Pick up prescription", Status: models.StatusPending, CreatedAt: now}
	require.NoError(t, repo.SaveAnalysis(ctx, models.Document{ID: uuid.NewString(), FamilyID: "fam-1", CreatedAt: now}, []models.Task{task}))

	member := "member-2"
	updated, err := repo.UpdateTask(ctx, "fam-1", task.ID, models.AssignmentPatch(&member), now)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, updated.Status)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, member, *updated.AssignedTo)

	_, err = repo.UpdateTask(ctx, "fam-2", task.ID, models.AssignmentPatch(nil), now)
	require.ErrorIs(t, err, ErrTaskNotFound)

	_, err = repo.UpdateTask(ctx, "fam-1", "missing", models.AssignmentPatch(nil), now)
	require.ErrorIs(t, err, ErrTaskNotFound)
}
