//go:build integration

package firestore_test

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/illmade-knight/go-test/emulators"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fs "github.com/tinywideclouds/go-recipe-notifier/internal/storage/firestore"
	"github.com/tinywideclouds/go-recipe-notifier/pkg/dispatch"
)

func setupSuite(t *testing.T) (context.Context, *firestore.Client, *fs.Store) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)

	projectID := "test-recipe-store"
	conn := emulators.SetupFirestoreEmulator(t, ctx, emulators.GetDefaultFirestoreConfig(projectID))
	client, err := firestore.NewClient(ctx, projectID, conn.ClientOptions...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return ctx, client, fs.NewStore(client)
}

func TestStore_Integration(t *testing.T) {
	ctx, client, store := setupSuite(t)
	users := client.Collection("users")

	_, err := users.Doc("A").Set(ctx, map[string]interface{}{"fcmToken": "tokA", "nickname": "Mina"})
	require.NoError(t, err)
	_, err = users.Doc("B").Set(ctx, map[string]interface{}{"nickname": "NoToken"})
	require.NoError(t, err)
	_, err = users.Doc("C").Set(ctx, map[string]interface{}{"fcmToken": 42})
	require.NoError(t, err)

	t.Run("ListUsers reads loosely typed records", func(t *testing.T) {
		all, err := store.ListUsers(ctx)
		require.NoError(t, err)

		byID := map[string]dispatch.User{}
		for _, u := range all {
			byID[u.ID] = u
		}
		assert.Equal(t, "tokA", byID["A"].FCMToken)
		assert.Empty(t, byID["B"].FCMToken)
		assert.Empty(t, byID["C"].FCMToken, "non-string token is treated as absent")
	})

	t.Run("GetUser", func(t *testing.T) {
		u, err := store.GetUser(ctx, "A")
		require.NoError(t, err)
		assert.Equal(t, "Mina", u.Nickname)

		_, err = store.GetUser(ctx, "missing")
		assert.ErrorIs(t, err, dispatch.ErrNotFound)
	})

	t.Run("Token lifecycle", func(t *testing.T) {
		require.NoError(t, store.SetFCMToken(ctx, "B", "tokB"))
		u, err := store.GetUser(ctx, "B")
		require.NoError(t, err)
		assert.Equal(t, "tokB", u.FCMToken)
		assert.Equal(t, "NoToken", u.Nickname, "merge keeps other fields")

		require.NoError(t, store.ClearFCMToken(ctx, "B"))
		require.NoError(t, store.ClearFCMToken(ctx, "B"), "clearing twice is idempotent")
		require.NoError(t, store.ClearFCMToken(ctx, "missing"))

		u, err = store.GetUser(ctx, "B")
		require.NoError(t, err)
		assert.Empty(t, u.FCMToken)
		assert.Equal(t, "NoToken", u.Nickname)
	})

	t.Run("GetStudyPost", func(t *testing.T) {
		_, err := client.Collection("study_posts").Doc("p1").Set(ctx, map[string]interface{}{
			"recordedSentence": "hello", "userId": "A",
		})
		require.NoError(t, err)

		p, err := store.GetStudyPost(ctx, "p1")
		require.NoError(t, err)
		assert.Equal(t, dispatch.StudyPost{ID: "p1", RecordedSentence: "hello", UserID: "A"}, *p)

		_, err = store.GetStudyPost(ctx, "gone")
		assert.ErrorIs(t, err, dispatch.ErrNotFound)
	})
}
