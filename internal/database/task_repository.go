package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/assistbot/pkg/models"
)

// TaskRepository handles database operations for the download queue.
type TaskRepository struct{}

// NewTaskRepository creates a new repository instance.
func NewTaskRepository() *TaskRepository {
	return &TaskRepository{}
}

// Enqueue inserts a pending download task and returns its id.
func (r *TaskRepository) Enqueue(ctx context.Context, chatID int64, replyToID int, url string) (int64, error) {
	result, err := DB.ExecContext(ctx,
		"INSERT INTO download_queue (chat_id, message_id, link, status) VALUES (?, ?, ?, ?)",
		chatID, replyToID, url, models.TaskPending)
	if err != nil {
		return 0, fmt.Errorf("failed to enqueue task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get task id: %w", err)
	}
	return id, nil
}

// ClaimNext atomically selects the oldest pending task and marks it
// processing. The select and update commit together, before any
// external side effect, so at most one worker owns a task even with
// several Helper instances running. Returns nil when the queue is
// empty.
func (r *TaskRepository) ClaimNext(ctx context.Context) (*models.DownloadTask, error) {
	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback()

	var task models.DownloadTask
	err = tx.QueryRowContext(ctx, `
		SELECT id, chat_id, message_id, link, status, created_at
		FROM download_queue
		WHERE status = ?
		ORDER BY id ASC
		LIMIT 1`, models.TaskPending).
		Scan(&task.ID, &task.ChatID, &task.ReplyToID, &task.URL, &task.Status, &task.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select pending task: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		"UPDATE download_queue SET status = ? WHERE id = ? AND status = ?",
		models.TaskProcessing, task.ID, models.TaskPending)
	if err != nil {
		return nil, fmt.Errorf("failed to claim task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check claim: %w", err)
	}
	if affected == 0 {
		// Another worker got there first.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	task.Status = models.TaskProcessing
	return &task, nil
}

// SetStatus records a task's terminal state.
func (r *TaskRepository) SetStatus(ctx context.Context, id int64, status string) error {
	_, err := DB.ExecContext(ctx,
		"UPDATE download_queue SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to set task status: %w", err)
	}
	return nil
}

// Get returns one task by id.
func (r *TaskRepository) Get(ctx context.Context, id int64) (*models.DownloadTask, error) {
	var task models.DownloadTask
	err := DB.QueryRowContext(ctx,
		"SELECT id, chat_id, message_id, link, status, created_at FROM download_queue WHERE id = ?",
		id).Scan(&task.ID, &task.ChatID, &task.ReplyToID, &task.URL, &task.Status, &task.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}
