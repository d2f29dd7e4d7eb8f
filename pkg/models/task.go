package models

import "time"

// Download task statuses. Only the Helper Client moves a task out of
// pending, and that transition commits before any external action.
const (
	TaskPending    = "pending"
	TaskProcessing = "processing"
	TaskDone       = "done"
	TaskTimeout    = "timeout"
	TaskError      = "error"
)

// DownloadTask is a unit of cross-process download work. ChatID is the
// chat the media should end up in; ReplyToID is the message that
// requested it (0 when unknown).
type DownloadTask struct {
	ID        int64     `json:"id" db:"id"`
	ChatID    int64     `json:"chat_id" db:"chat_id"`
	ReplyToID int       `json:"message_id" db:"message_id"`
	URL       string    `json:"link" db:"link"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
