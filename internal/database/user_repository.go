package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/assistbot/pkg/models"
)

// UserRepository handles database operations for users.
type UserRepository struct {
	// DefaultTimezone fills settings with no explicit zone.
	DefaultTimezone string
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(defaultTimezone string) *UserRepository {
	return &UserRepository{DefaultTimezone: defaultTimezone}
}

// GetOrCreate returns the user row, creating it on first interaction.
// Username and full name are refreshed on every call so the row tracks
// profile changes.
func (r *UserRepository) GetOrCreate(ctx context.Context, id int64, username, fullName string) (*models.User, error) {
	user, err := r.GetByID(ctx, id)
	if err == nil {
		if user.Username != username || user.FullName != fullName {
			_, _ = DB.ExecContext(ctx,
				"UPDATE users SET username = ?, full_name = ? WHERE id = ?",
				username, fullName, id)
			user.Username = username
			user.FullName = fullName
		}
		return user, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	settings := models.DefaultSettings()
	settings.Timezone = r.DefaultTimezone
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal settings: %w", err)
	}

	_, err = DB.ExecContext(ctx,
		"INSERT INTO users (id, username, full_name, settings_json) VALUES (?, ?, ?, ?)",
		id, username, fullName, string(settingsJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return r.GetByID(ctx, id)
}

// GetByID returns a user by Telegram id. Missing or unknown settings
// keys fall back to defaults; sql.ErrNoRows passes through so callers
// can distinguish "new user".
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	var settingsJSON string

	err := DB.QueryRowContext(ctx,
		"SELECT id, username, full_name, settings_json, system_prompt, created_at FROM users WHERE id = ?",
		id).Scan(&user.ID, &user.Username, &user.FullName, &settingsJSON, &user.SystemPrompt, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}

	// Start from defaults so keys absent from the stored JSON keep
	// their default values.
	user.Settings = models.DefaultSettings()
	user.Settings.Timezone = r.DefaultTimezone
	if settingsJSON != "" {
		if err := json.Unmarshal([]byte(settingsJSON), &user.Settings); err != nil {
			return nil, fmt.Errorf("failed to parse user settings: %w", err)
		}
	}
	if user.Settings.Timezone == "" {
		user.Settings.Timezone = r.DefaultTimezone
	}
	return &user, nil
}

// UpdateSettings persists the whole settings bag for a user.
func (r *UserRepository) UpdateSettings(ctx context.Context, id int64, settings models.Settings) error {
	settingsJSON, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	_, err = DB.ExecContext(ctx,
		"UPDATE users SET settings_json = ? WHERE id = ?",
		string(settingsJSON), id)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return nil
}

// UpdateSystemPrompt changes the user's persona. Takes effect on the
// next history read with no migration of stored turns.
func (r *UserRepository) UpdateSystemPrompt(ctx context.Context, id int64, prompt string) error {
	_, err := DB.ExecContext(ctx,
		"UPDATE users SET system_prompt = ? WHERE id = ?", prompt, id)
	if err != nil {
		return fmt.Errorf("failed to update system prompt: %w", err)
	}
	return nil
}
