package helper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/assistbot/internal/database"
	"github.com/example/assistbot/pkg/models"
)

// fakeSession scripts the third-party bot's chat: each watch poll
// consumes the next history page, the last one repeats.
type fakeSession struct {
	peers     []string
	sent      []string
	histories [][]ChatMessage
	histIdx   int
	copyTo    string
	captions  []string
	copyErr   error
}

func (f *fakeSession) EnsurePeer(ctx context.Context, username string) (interface{}, error) {
	f.peers = append(f.peers, username)
	return username, nil
}

func (f *fakeSession) SendText(ctx context.Context, peer interface{}, text string) (int, error) {
	f.sent = append(f.sent, text)
	return 100, nil
}

func (f *fakeSession) History(ctx context.Context, peer interface{}, limit int) ([]ChatMessage, error) {
	if len(f.histories) == 0 {
		return nil, nil
	}
	page := f.histories[f.histIdx]
	if f.histIdx < len(f.histories)-1 {
		f.histIdx++
	}
	return page, nil
}

func (f *fakeSession) CopyMediaTo(ctx context.Context, botUsername string, msg ChatMessage, caption string) error {
	if f.copyErr != nil {
		return f.copyErr
	}
	f.copyTo = botUsername
	f.captions = append(f.captions, caption)
	return nil
}

func setupWorker(t *testing.T, session Session) (*Worker, *database.TaskRepository) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.Connect(path))
	t.Cleanup(func() { database.Close() })

	tasks := database.NewTaskRepository()
	w := NewWorker(tasks, session, "assist_main_bot")
	w.idle = 0
	w.watchTick = 0
	w.settleDelay = 0
	return w, tasks
}

func claim(t *testing.T, tasks *database.TaskRepository, url string) *models.DownloadTask {
	t.Helper()
	ctx := context.Background()
	_, err := tasks.Enqueue(ctx, 777, 12, url)
	require.NoError(t, err)
	task, err := tasks.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task
}

func taskStatus(t *testing.T, tasks *database.TaskRepository, id int64) string {
	t.Helper()
	task, err := tasks.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, task)
	return task.Status
}

func TestWorkerDeliversMediaWithCarrierCaption(t *testing.T) {
	session := &fakeSession{
		histories: [][]ChatMessage{
			{}, // bot still working
			{{ID: 101, HasMedia: true, Handle: "vid"}},
		},
	}
	w, tasks := setupWorker(t, session)
	task := claim(t, tasks, "https://www.instagram.com/reel/abc/")

	w.Process(context.Background(), task)

	assert.Equal(t, []string{"https://www.instagram.com/reel/abc/"}, session.sent)
	assert.Equal(t, "assist_main_bot", session.copyTo)
	assert.Equal(t, []string{fmt.Sprintf("task_id:%d", task.ID)}, session.captions)
	assert.Equal(t, models.TaskDone, taskStatus(t, tasks, task.ID))
}

func TestWorkerCollectsWholeAlbum(t *testing.T) {
	session := &fakeSession{
		histories: [][]ChatMessage{
			{{ID: 101, HasMedia: true, Handle: "p1"}},
			// After the settle delay two more album items arrived.
			{
				{ID: 103, HasMedia: true, Handle: "p3"},
				{ID: 102, HasMedia: true, Handle: "p2"},
				{ID: 101, HasMedia: true, Handle: "p1"},
				{ID: 99, HasMedia: true, Handle: "old"},
			},
		},
	}
	w, tasks := setupWorker(t, session)
	task := claim(t, tasks, "https://vm.tiktok.com/xyz/")

	w.Process(context.Background(), task)

	// Only messages newer than the sent URL count; the old one is
	// someone else's download.
	assert.Len(t, session.captions, 3)
	assert.Equal(t, models.TaskDone, taskStatus(t, tasks, task.ID))
}

func TestWorkerErrorReplyMarksTaskError(t *testing.T) {
	session := &fakeSession{
		histories: [][]ChatMessage{
			{{ID: 101, Text: "Error: this account is private"}},
		},
	}
	w, tasks := setupWorker(t, session)
	task := claim(t, tasks, "https://www.instagram.com/p/private/")

	w.Process(context.Background(), task)

	assert.Empty(t, session.captions)
	assert.Equal(t, models.TaskError, taskStatus(t, tasks, task.ID))
}

func TestWorkerTimesOutWhenBotStaysSilent(t *testing.T) {
	session := &fakeSession{
		histories: [][]ChatMessage{
			{{ID: 90, Text: "old chatter"}},
		},
	}
	w, tasks := setupWorker(t, session)
	task := claim(t, tasks, "https://pin.it/abc123")

	w.Process(context.Background(), task)

	assert.Empty(t, session.captions)
	assert.Equal(t, models.TaskTimeout, taskStatus(t, tasks, task.ID))
}

func TestWorkerUnroutableHostFailsWithoutSessionCalls(t *testing.T) {
	session := &fakeSession{}
	w, tasks := setupWorker(t, session)
	task := claim(t, tasks, "https://example.com/video")

	w.Process(context.Background(), task)

	assert.Empty(t, session.peers)
	assert.Empty(t, session.sent)
	assert.Equal(t, models.TaskError, taskStatus(t, tasks, task.ID))
}

func TestWorkerCopyFailureMarksTaskError(t *testing.T) {
	session := &fakeSession{
		histories: [][]ChatMessage{
			{{ID: 101, HasMedia: true, Handle: "vid"}},
		},
		copyErr: errors.New("peer flood"),
	}
	w, tasks := setupWorker(t, session)
	task := claim(t, tasks, "https://www.tiktok.com/@u/video/1")

	w.Process(context.Background(), task)

	assert.Equal(t, models.TaskError, taskStatus(t, tasks, task.ID))
}
