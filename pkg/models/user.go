package models

import "time"

// User represents a Telegram user interacting with the assistant.
// ID is the Telegram user ID; rows are created on first contact and
// never deleted.
type User struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	FullName     string    `json:"full_name" db:"full_name"`
	Settings     Settings  `json:"settings" db:"-"`
	SystemPrompt string    `json:"system_prompt" db:"system_prompt"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Settings is the per-user configuration bag, stored as JSON in the
// users row. Missing or unknown keys fall back to defaults on read.
type Settings struct {
	Model              string  `json:"model"`
	TranscriptionModel string  `json:"transcription_model"`
	Language           string  `json:"language"`
	Timezone           string  `json:"timezone"`
	Temperature        float64 `json:"temperature"`

	Postprocess      bool `json:"postprocess"`
	Summarize        bool `json:"summarize"`
	Rewrite          bool `json:"rewrite"`
	ProcessVideo     bool `json:"process_video"`
	ProcessVideoNote bool `json:"process_video_note"`
	ContextEnabled   bool `json:"context_enabled"`
	ContextHours     int  `json:"context_hours"`

	// AllowSearch is derived at read time (admin membership or a
	// personal credential) and never written back.
	AllowSearch bool `json:"-"`
}

// DefaultSettings returns the configuration used for new users and as
// the fallback for missing keys. The default timezone comes from
// global config and is filled in by the repository.
func DefaultSettings() Settings {
	return Settings{
		Model:              "gpt-4o-mini",
		TranscriptionModel: "whisper-1",
		Language:           "uk",
		Temperature:        0.7,
		ProcessVideo:       true,
		ProcessVideoNote:   true,
		ContextEnabled:     true,
		ContextHours:       24,
	}
}
