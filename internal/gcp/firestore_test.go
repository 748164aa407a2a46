package gcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewFirestoreClient_RequiresProject(t *testing.T) {
	t.Parallel()

	_, err := NewFirestoreClient(context.Background(), "", "caresync")
	require.ErrorContains(t, err, "projectID")
}

func TestNewFirestoreClient_Emulator(t *testing.T) {
	t.Setenv("FIRESTORE_EMULATOR_HOST", "localhost:8681")

	for _, databaseID := range []string{"", "(default)", "caresync-staging"} {
		client, err := NewFirestoreClient(context.Background(), "caresync-test", databaseID)
		require.NoError(t, err, databaseID)
		require.NoError(t, client.Close())
	}
}
