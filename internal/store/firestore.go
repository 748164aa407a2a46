// Package store persists documents and tasks in Firestore.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/caresync/internal/models"
)

var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrDocumentNotFound = errors.New("document not found")
)

// Repository stores Documents and Tasks in two top-level collections.
// Every read is scoped by family id.
type Repository struct {
	client    *firestore.Client
	documents string
	tasks     string
}

func NewRepository(client *firestore.Client, documentsCollection, tasksCollection string) *Repository {
	return &Repository{client: client, documents: documentsCollection, tasks: tasksCollection}
}

// FindDocumentByHash returns the family's document with the given file hash,
// or ErrDocumentNotFound.
func (r *Repository) FindDocumentByHash(ctx context.Context, familyID, fileHash string) (*models.Document, error) {
	docs, err := r.client.Collection(r.documents).
		Where("family_id", "==", familyID).
		Where("file_hash", "==", fileHash).
		Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) == 0 {
		return nil, ErrDocumentNotFound
	}
	var doc models.Document
	if err := docs[0].DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", docs[0].Ref.ID, err)
	}
	return &doc, nil
}

// SaveAnalysis writes a document and the tasks created from it atomically.
func (r *Repository) SaveAnalysis(ctx context.Context, doc models.Document, tasks []models.Task) error {
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Create(r.client.Collection(r.documents).Doc(doc.ID), doc); err != nil {
			return err
		}
		for _, t := range tasks {
			if err := tx.Create(r.client.Collection(r.tasks).Doc(t.ID), t); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save document %s with %d tasks: %w", doc.ID, len(tasks), err)
	}
	return nil
}

// ListTasks returns the family's tasks, oldest first.
func (r *Repository) ListTasks(ctx context.Context, familyID string) ([]models.Task, error) {
	return r.queryTasks(ctx, r.client.Collection(r.tasks).Where("family_id", "==", familyID))
}

// ListDocumentTasks returns the tasks created from one document.
func (r *Repository) ListDocumentTasks(ctx context.Context, familyID, documentID string) ([]models.Task, error) {
	return r.queryTasks(ctx, r.client.Collection(r.tasks).
		Where("family_id", "==", familyID).
		Where("document_id", "==", documentID))
}

func (r *Repository) queryTasks(ctx context.Context, q firestore.Query) ([]models.Task, error) {
	snaps, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	tasks := make([]models.Task, 0, len(snaps))
	for _, snap := range snaps {
		var t models.Task
		if err := snap.DataTo(&t); err != nil {
			return nil, fmt.Errorf("decode task %s: %w", snap.Ref.ID, err)
		}
		tasks = append(tasks, t)
	}
	// Sorted here rather than with OrderBy so no composite index is needed.
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks, nil
}

// UpdateTask applies patch to a task of the family inside a transaction.
// A task belonging to another family is reported as not found.
func (r *Repository) UpdateTask(ctx context.Context, familyID, taskID string, patch models.TaskPatch, now time.Time) (models.Task, error) {
	var updated models.Task
	ref := r.client.Collection(r.tasks).Doc(taskID)

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrTaskNotFound
		}
		if err != nil {
			return err
		}
		var current models.Task
		if err := snap.DataTo(&current); err != nil {
			return fmt.Errorf("decode task %s: %w", taskID, err)
		}
		if current.FamilyID != familyID {
			return ErrTaskNotFound
		}
		updated = patch.Apply(current, now)
		return tx.Set(ref, updated)
	})
	if errors.Is(err, ErrTaskNotFound) {
		return models.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("failed to update task %s: %w", taskID, err)
	}
	return updated, nil
}
