package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/assistbot/pkg/models"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, Connect(path))
	t.Cleanup(func() { Close() })
}

func TestUserDefaultsAndSettingsRoundTrip(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository("Europe/Kyiv")

	user, err := repo.GetOrCreate(ctx, 42, "alice", "Alice A")
	require.NoError(t, err)
	assert.Equal(t, "uk", user.Settings.Language)
	assert.Equal(t, "Europe/Kyiv", user.Settings.Timezone)
	assert.True(t, user.Settings.ContextEnabled)
	assert.Equal(t, 24, user.Settings.ContextHours)

	user.Settings.Language = "en"
	user.Settings.Temperature = 1.2
	require.NoError(t, repo.UpdateSettings(ctx, 42, user.Settings))

	got, err := repo.GetByID(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "en", got.Settings.Language)
	assert.InDelta(t, 1.2, got.Settings.Temperature, 1e-9)
}

func TestUserMissingSettingsKeysFallBackToDefaults(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewUserRepository("Europe/Kyiv")

	_, err := DB.ExecContext(ctx,
		"INSERT INTO users (id, username, full_name, settings_json) VALUES (1, 'u', 'U', ?)",
		`{"language":"de","unknown_key":true}`)
	require.NoError(t, err)

	user, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "de", user.Settings.Language)
	// Keys absent from the stored JSON keep defaults.
	assert.Equal(t, "whisper-1", user.Settings.TranscriptionModel)
	assert.Equal(t, "Europe/Kyiv", user.Settings.Timezone)
}

func TestMessageHistoryExcludesSystemAndTranscription(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewMessageRepository()

	now := time.Now().UTC()
	turns := []models.MessageTurn{
		{UserID: 1, ChatID: 10, Role: models.RoleSystem, Content: "persona", Timestamp: now.Add(-4 * time.Minute)},
		{UserID: 1, ChatID: 10, Role: models.RoleUser, Content: "q1", Timestamp: now.Add(-3 * time.Minute)},
		{UserID: 1, ChatID: 10, Role: models.RoleTranscription, Content: "voice text", Timestamp: now.Add(-2 * time.Minute)},
		{UserID: 1, ChatID: 10, Role: models.RoleAssistant, Content: "a1", Timestamp: now.Add(-1 * time.Minute)},
	}
	for i := range turns {
		require.NoError(t, repo.Append(ctx, &turns[i]))
	}

	got, err := repo.Recent(ctx, 1, 10, 20, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "q1", got[0].Content)
	assert.Equal(t, "a1", got[1].Content)

	tr, err := repo.LastTranscription(ctx, 1, 10)
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, "voice text", tr.Content)
}

func TestMessageWindowAndLimit(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewMessageRepository()

	now := time.Now().UTC()
	old := models.MessageTurn{UserID: 1, ChatID: 10, Role: models.RoleUser, Content: "ancient", Timestamp: now.Add(-48 * time.Hour)}
	require.NoError(t, repo.Append(ctx, &old))
	for i := 0; i < 5; i++ {
		turn := models.MessageTurn{UserID: 1, ChatID: 10, Role: models.RoleUser,
			Content: string(rune('a' + i)), Timestamp: now.Add(time.Duration(i-10) * time.Minute)}
		require.NoError(t, repo.Append(ctx, &turn))
	}

	got, err := repo.Recent(ctx, 1, 10, 3, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Most recent three, chronological.
	assert.Equal(t, "c", got[0].Content)
	assert.Equal(t, "e", got[2].Content)
}

func TestClaimNextIsSingleShot(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewTaskRepository()

	id1, err := repo.Enqueue(ctx, 100, 5, "https://tiktok.com/@a/video/1")
	require.NoError(t, err)
	id2, err := repo.Enqueue(ctx, 100, 6, "https://tiktok.com/@a/video/2")
	require.NoError(t, err)

	first, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, id1, first.ID, "FIFO order")
	assert.Equal(t, models.TaskProcessing, first.Status)

	second, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, id2, second.ID)

	third, err := repo.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, third, "queue drained")

	// A claimed task is never pending again.
	got, err := repo.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, models.TaskProcessing, got.Status)

	require.NoError(t, repo.SetStatus(ctx, id1, models.TaskDone))
	got, err = repo.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, models.TaskDone, got.Status)
}

func TestReminderLifecycle(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewReminderRepository()

	kyiv, err := time.LoadLocation("Europe/Kyiv")
	require.NoError(t, err)
	local := time.Date(2030, 1, 1, 11, 0, 0, 0, kyiv)

	id, err := repo.Create(ctx, &models.Reminder{UserID: 1, ChatID: 10, Text: "meeting", TriggerTime: local})
	require.NoError(t, err)

	list, err := repo.ListByChat(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	// Stored instant is UTC regardless of the zone it was created in.
	assert.True(t, list[0].TriggerTime.Equal(time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)),
		"got %v", list[0].TriggerTime)

	count, err := repo.CountByChat(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, repo.Delete(ctx, id))
	count, err = repo.CountByChat(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCredentialSupersede(t *testing.T) {
	setupTestDB(t)
	ctx := context.Background()
	repo := NewCredentialRepository()

	require.NoError(t, repo.Save(ctx, 1, models.ProviderOpenAI, "cipher-v1"))
	require.NoError(t, repo.Save(ctx, 1, models.ProviderOpenAI, "cipher-v2"))
	require.NoError(t, repo.Save(ctx, 1, models.ProviderGoogle, "cipher-g"))

	got, err := repo.GetActive(ctx, 1, models.ProviderOpenAI)
	require.NoError(t, err)
	assert.Equal(t, "cipher-v2", got)

	creds, err := repo.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, creds, 2, "one active credential per provider")

	has, err := repo.HasAny(ctx, 1)
	require.NoError(t, err)
	assert.True(t, has)

	require.NoError(t, repo.Delete(ctx, 1, models.ProviderOpenAI))
	got, err = repo.GetActive(ctx, 1, models.ProviderOpenAI)
	require.NoError(t, err)
	assert.Empty(t, got)
}
