package helper

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/example/assistbot/internal/database"
	"github.com/example/assistbot/internal/queue"
	"github.com/example/assistbot/pkg/models"
)

const (
	// Poll cadence against the queue when it is empty.
	idleInterval = 3 * time.Second

	// Wait-loop parameters against the third-party bot: every 2 s for
	// up to 25 iterations (~50 s).
	watchInterval   = 2 * time.Second
	watchIterations = 25

	// After the first media hit, the rest of an album gets this long
	// to arrive before the final collection pass.
	albumSettle = 2 * time.Second

	// How many recent messages the collection pass re-reads.
	collectWindow = 8
)

// Worker drains the download queue. Tasks are claimed one at a time
// (the claim commits before any external action) and processed
// strictly FIFO within a poll round.
type Worker struct {
	tasks       *database.TaskRepository
	session     Session
	mainBot     string
	idle        time.Duration
	watchTick   time.Duration
	settleDelay time.Duration
}

// NewWorker creates a queue worker delivering to mainBotUsername.
func NewWorker(tasks *database.TaskRepository, session Session, mainBotUsername string) *Worker {
	return &Worker{
		tasks:       tasks,
		session:     session,
		mainBot:     mainBotUsername,
		idle:        idleInterval,
		watchTick:   watchInterval,
		settleDelay: albumSettle,
	}
}

// Run polls the queue until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Printf("helper: worker started, delivering to @%s", w.mainBot)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := w.claimWithRetry(ctx)
		if err != nil {
			log.Printf("helper: claim failed: %v", err)
			w.sleep(ctx, w.idle)
			continue
		}
		if task == nil {
			w.sleep(ctx, w.idle)
			continue
		}
		w.Process(ctx, task)
	}
}

// claimWithRetry masks one transient DB error with a 1 s backoff; the
// two processes occasionally collide on the write lock.
func (w *Worker) claimWithRetry(ctx context.Context) (*models.DownloadTask, error) {
	task, err := w.tasks.ClaimNext(ctx)
	if err == nil {
		return task, nil
	}
	w.sleep(ctx, time.Second)
	return w.tasks.ClaimNext(ctx)
}

// Process runs one claimed task to a terminal status.
func (w *Worker) Process(ctx context.Context, task *models.DownloadTask) {
	status := w.process(ctx, task)
	if err := w.tasks.SetStatus(ctx, task.ID, status); err != nil {
		log.Printf("helper: failed to finalize task %d: %v", task.ID, err)
	}
	log.Printf("helper: task %d → %s (%s)", task.ID, status, task.URL)
}

func (w *Worker) process(ctx context.Context, task *models.DownloadTask) string {
	botName, ok := queue.BotForURL(task.URL)
	if !ok {
		log.Printf("helper: no route for %s", task.URL)
		return models.TaskError
	}

	peer, err := w.session.EnsurePeer(ctx, botName)
	if err != nil {
		log.Printf("helper: failed to reach @%s: %v", botName, err)
		return models.TaskError
	}

	sentID, err := w.session.SendText(ctx, peer, task.URL)
	if err != nil {
		log.Printf("helper: failed to send url to @%s: %v", botName, err)
		return models.TaskError
	}

	media, status := w.watch(ctx, peer, sentID)
	if status != models.TaskDone {
		return status
	}

	caption := queue.CarrierCaption(task.ID)
	delivered := 0
	for _, msg := range media {
		if err := w.session.CopyMediaTo(ctx, w.mainBot, msg, caption); err != nil {
			log.Printf("helper: failed to copy media for task %d: %v", task.ID, err)
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return models.TaskError
	}
	return models.TaskDone
}

// watch polls the third-party bot's chat for replies newer than
// sentID. On the first media hit it lets a potential album settle,
// then collects every qualifying media message from the recent window.
func (w *Worker) watch(ctx context.Context, peer interface{}, sentID int) ([]ChatMessage, string) {
	for i := 0; i < watchIterations; i++ {
		w.sleep(ctx, w.watchTick)
		if ctx.Err() != nil {
			return nil, models.TaskTimeout
		}

		msgs, err := w.session.History(ctx, peer, collectWindow)
		if err != nil {
			log.Printf("helper: history read failed: %v", err)
			continue
		}

		sawMedia := false
		for _, msg := range msgs {
			if msg.ID <= sentID {
				continue
			}
			if msg.HasMedia {
				sawMedia = true
				continue
			}
			// A text reply mentioning an error means the bot gave up.
			if strings.Contains(strings.ToLower(msg.Text), "error") {
				return nil, models.TaskError
			}
		}
		if !sawMedia {
			continue
		}

		w.sleep(ctx, w.settleDelay)
		final, err := w.session.History(ctx, peer, collectWindow)
		if err != nil {
			final = msgs
		}
		var media []ChatMessage
		for _, msg := range final {
			if msg.ID > sentID && msg.HasMedia {
				media = append(media, msg)
			}
		}
		if len(media) == 0 {
			return nil, models.TaskTimeout
		}
		return media, models.TaskDone
	}
	return nil, models.TaskTimeout
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
