package models

import "time"

// Conversation roles stored in the message cache. RoleSystem and
// RoleTranscription never appear in dialogue history: the system turn
// is materialized from the user row at read time, and transcriptions
// are a side channel for "send to LLM" actions.
const (
	RoleSystem        = "system"
	RoleUser          = "user"
	RoleAssistant     = "assistant"
	RoleTranscription = "transcription"
)

// MessageTurn is one stored conversational turn for a (user, chat) pair.
type MessageTurn struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	ChatID      int64     `json:"chat_id" db:"chat_id"`
	Role        string    `json:"role" db:"role"`
	Content     string    `json:"content" db:"content"`
	MediaFileID string    `json:"media_file_id" db:"media_file_id"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
}
