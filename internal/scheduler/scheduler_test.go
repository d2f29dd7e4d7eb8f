package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/assistbot/internal/database"
	"github.com/example/assistbot/pkg/models"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sends []string
	chats []int64
}

func (n *recordingNotifier) SendReminder(chatID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, text)
	n.chats = append(n.chats, chatID)
	return nil
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sends)
}

func setup(t *testing.T) (*Scheduler, *recordingNotifier, *database.ReminderRepository) {
	t.Helper()
	require.NoError(t, database.Connect(filepath.Join(t.TempDir(), "test.db")))
	t.Cleanup(func() { database.Close() })

	repo := database.NewReminderRepository()
	notifier := &recordingNotifier{}
	s := New(repo, notifier)
	t.Cleanup(s.Stop)
	return s, notifier, repo
}

func TestAddNormalizesToUTCAndLists(t *testing.T) {
	s, _, _ := setup(t)
	ctx := context.Background()

	kyiv, err := time.LoadLocation("Europe/Kyiv")
	require.NoError(t, err)
	local := time.Date(2030, 1, 1, 11, 0, 0, 0, kyiv)

	id, err := s.Add(ctx, 1, 10, "дзвінок", local)
	require.NoError(t, err)
	require.NotZero(t, id)

	list, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].TriggerTime.Equal(time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)))

	// Display conversion happens at render.
	assert.Equal(t, "01.01 11:00", FormatLocal(list[0].TriggerTime, "Europe/Kyiv"))
}

func TestAddRejectsPastInstant(t *testing.T) {
	s, _, _ := setup(t)
	_, err := s.Add(context.Background(), 1, 10, "late", time.Now().Add(-time.Minute))
	require.Error(t, err)
}

func TestFireDeliversAndDeletesRow(t *testing.T) {
	s, notifier, repo := setup(t)
	ctx := context.Background()

	instant := time.Now().UTC().Add(time.Minute)
	id, err := s.Add(ctx, 1, 10, "нагадування", instant)
	require.NoError(t, err)

	s.fire(id, 10, "нагадування", instant.Add(-time.Minute+time.Second))

	require.Equal(t, 1, notifier.count())
	assert.Equal(t, "⏰ REMINDER:\n\nнагадування", notifier.sends[0])
	assert.Equal(t, int64(10), notifier.chats[0])

	count, err := repo.CountByChat(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, count, "row is deleted on fire")
}

func TestFireDropsPastGrace(t *testing.T) {
	s, notifier, repo := setup(t)
	ctx := context.Background()

	instant := time.Now().UTC().Add(time.Minute)
	id, err := s.Add(ctx, 1, 10, "stale", instant)
	require.NoError(t, err)

	// Pretend the job woke up two minutes late.
	s.now = func() time.Time { return instant.Add(2 * time.Minute) }
	s.fire(id, 10, "stale", instant)

	assert.Zero(t, notifier.count(), "misfire past grace must be dropped")
	count, err := repo.CountByChat(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, count, "dropped reminder row is still removed")
}

func TestRestorePurgesExpiredRows(t *testing.T) {
	s, notifier, repo := setup(t)
	ctx := context.Background()

	_, err := repo.Create(ctx, &models.Reminder{UserID: 1, ChatID: 10, Text: "expired",
		TriggerTime: time.Now().UTC().Add(-time.Hour)})
	require.NoError(t, err)
	_, err = repo.Create(ctx, &models.Reminder{UserID: 1, ChatID: 10, Text: "future",
		TriggerTime: time.Now().UTC().Add(time.Hour)})
	require.NoError(t, err)

	require.NoError(t, s.Restore(ctx))

	list, err := repo.ListByChat(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "future", list[0].Text)
	assert.Zero(t, notifier.count(), "expired reminders never fire retroactively")
}

func TestDeleteCancelsJob(t *testing.T) {
	s, _, repo := setup(t)
	ctx := context.Background()

	id, err := s.Add(ctx, 1, 10, "cancel me", time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))

	count, err := repo.CountByChat(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, count)
}
