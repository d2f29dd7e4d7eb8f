package models

import "time"

// Reminder is a future one-shot notification. TriggerTime is always
// stored as UTC; conversion to the user's timezone happens at render.
type Reminder struct {
	ID          int64     `json:"id" db:"id"`
	UserID      int64     `json:"user_id" db:"user_id"`
	ChatID      int64     `json:"chat_id" db:"chat_id"`
	Text        string    `json:"text" db:"text"`
	TriggerTime time.Time `json:"trigger_time" db:"trigger_time"`
}
