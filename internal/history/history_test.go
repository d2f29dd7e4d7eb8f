package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/assistbot/internal/database"
	"github.com/example/assistbot/pkg/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	require.NoError(t, database.Connect(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() { database.Close() })
	return New(database.NewMessageRepository(), database.NewUserRepository("Europe/Kyiv"))
}

func TestHistoryStartsWithMaterializedSystemTurn(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	turns, err := store.History(ctx, 1, 10, 0, 0)
	require.NoError(t, err)
	require.Len(t, turns, 1, "empty conversation still carries the system turn")
	assert.Equal(t, models.RoleSystem, turns[0].Role)
	assert.Equal(t, DefaultSystemPrompt, turns[0].Content)
}

func TestHistoryUsesUserPersona(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	users := database.NewUserRepository("Europe/Kyiv")

	_, err := users.GetOrCreate(ctx, 1, "u", "U")
	require.NoError(t, err)
	require.NoError(t, users.UpdateSystemPrompt(ctx, 1, "Ти — лаконічний помічник."))

	turns, err := store.History(ctx, 1, 10, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "Ти — лаконічний помічник.", turns[0].Content)
}

func TestHistoryRoleFiltering(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, 1, 10, models.RoleUser, "привіт", ""))
	require.NoError(t, store.Append(ctx, 1, 10, models.RoleTranscription, "voice", "file123"))
	require.NoError(t, store.Append(ctx, 1, 10, models.RoleAssistant, "Вітаю!", ""))

	turns, err := store.History(ctx, 1, 10, 20, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, turns, 3)
	for i, turn := range turns {
		if i == 0 {
			assert.Equal(t, models.RoleSystem, turn.Role)
			continue
		}
		assert.NotEqual(t, models.RoleSystem, turn.Role)
		assert.NotEqual(t, models.RoleTranscription, turn.Role)
	}

	tr, err := store.LastTranscription(ctx, 1, 10)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, "voice", tr.Content)
	assert.Equal(t, "file123", tr.MediaFileID)
}

func TestAppendThenHistoryRoundTrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, 1, 10, models.RoleUser, "скільки буде 2+2", ""))
	turns, err := store.History(ctx, 1, 10, 0, 0)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "скільки буде 2+2", turns[1].Content)

	require.NoError(t, store.Clear(ctx, 1, 10))
	turns, err = store.History(ctx, 1, 10, 0, 0)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}
