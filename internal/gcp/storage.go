package gcp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

const (
	uploadMaxRetries     = 4
	uploadInitialBackoff = 1 * time.Second
	uploadAttemptTimeout = 50 * time.Second
)

// ErrTooLarge is returned by Get for objects over the size limit.
var ErrTooLarge = errors.New("object too large")

// BlobStore stores uploaded documents in a single GCS bucket and reads
// objects from any bucket (for event-triggered ingestion).
type BlobStore struct {
	client  *storage.Client
	bucket  string
	backoff time.Duration
}

// NewBlobStore creates a BlobStore writing to bucket.
func NewBlobStore(client *storage.Client, bucket string) *BlobStore {
	return &BlobStore{client: client, bucket: bucket, backoff: uploadInitialBackoff}
}

// Put writes data to objectName, retrying throttled and server errors with
// exponential backoff. Existing objects are left untouched, so repeated
// uploads of the same content-addressed name are idempotent. It returns the
// gs:// URI.
func (b *BlobStore) Put(ctx context.Context, objectName, contentType string, data []byte) (string, error) {
	backoff := b.backoff
	var lastErr error

	for i := 0; i < uploadMaxRetries; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, uploadAttemptTimeout)
			defer cancel()
			return SaveToGCSAtomically(writeCtx, b.client.Bucket(b.bucket), objectName, contentType, bytes.NewReader(data))
		}()
		if err == nil {
			return fmt.Sprintf("gs://%s/%s", b.bucket, objectName), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			slog.Error("Upload failed permanently.", "gcsObject", objectName, "error", err)
			return "", fmt.Errorf("upload for %s failed: %w", objectName, err)
		}

		lastErr = err
		if i == uploadMaxRetries-1 {
			break
		}
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", objectName,
			"attempt", i+1,
			"maxRetries", uploadMaxRetries,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", objectName, "error", ctx.Err())
			return "", ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", objectName, "error", lastErr)
	return "", fmt.Errorf("upload for %s failed after all retries: %w", objectName, lastErr)
}

// Get reads a whole object, refusing objects larger than maxBytes.
func (b *BlobStore) Get(ctx context.Context, bucket, object string, maxBytes int64) ([]byte, error) {
	gcsReader, err := b.client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()

	if gcsReader.Attrs.Size > maxBytes {
		return nil, fmt.Errorf("%w: gs://%s/%s is %d bytes, limit is %d", ErrTooLarge, bucket, object, gcsReader.Attrs.Size, maxBytes)
	}
	data, err := io.ReadAll(io.LimitReader(gcsReader, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object gs://%s/%s: %w", bucket, object, err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: gs://%s/%s exceeds %d bytes", ErrTooLarge, bucket, object, maxBytes)
	}
	return data, nil
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, contentType string, content io.Reader) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := io.Copy(writer, content); err != nil {
		_ = writer.Close()
		if isPreconditionFailed(err) {
			slog.Info("SKIPPING: Object already exists.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if isPreconditionFailed(err) {
			slog.Info("SKIPPING: Object already exists.", "gcsObject", objectName)
			return nil
		}
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

func isPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}

// isRetryable reports whether an upload error is worth another attempt:
// throttling, server errors and attempts that ran out of time.
func isRetryable(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusTooManyRequests || gerr.Code >= http.StatusInternalServerError
	}
	return errors.Is(err, context.DeadlineExceeded)
}
