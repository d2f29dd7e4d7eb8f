package history

import (
	"context"
	"time"

	"github.com/example/assistbot/internal/database"
	"github.com/example/assistbot/pkg/models"
)

// DefaultSystemPrompt is used when a user has not set a persona.
const DefaultSystemPrompt = "You are a helpful assistant. Answer clearly and concisely. " +
	"Reply in the language the user writes in unless asked otherwise."

const (
	defaultLimit  = 20
	defaultWindow = 24 * time.Hour
)

// Store is the conversation context view over the message cache. The
// system turn is materialized at read time from the user row, so a
// persona change is effective on the next turn with no migration.
type Store struct {
	messages *database.MessageRepository
	users    *database.UserRepository
}

// New creates a context store over the given repositories.
func New(messages *database.MessageRepository, users *database.UserRepository) *Store {
	return &Store{messages: messages, users: users}
}

// Append durably stores one turn.
func (s *Store) Append(ctx context.Context, userID, chatID int64, role, content, mediaFileID string) error {
	return s.messages.Append(ctx, &models.MessageTurn{
		UserID:      userID,
		ChatID:      chatID,
		Role:        role,
		Content:     content,
		MediaFileID: mediaFileID,
		Timestamp:   time.Now().UTC(),
	})
}

// History returns the LLM-ready message list: exactly one system turn
// first, then up to limit user/assistant turns from the window, in
// chronological order. System and transcription rows stored in the
// cache are never surfaced here.
func (s *Store) History(ctx context.Context, userID, chatID int64, limit int, window time.Duration) ([]models.MessageTurn, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if window <= 0 {
		window = defaultWindow
	}

	prompt := DefaultSystemPrompt
	user, err := s.users.GetByID(ctx, userID)
	if err == nil && user.SystemPrompt != "" {
		prompt = user.SystemPrompt
	}

	turns := []models.MessageTurn{{
		UserID:  userID,
		ChatID:  chatID,
		Role:    models.RoleSystem,
		Content: prompt,
	}}

	recent, err := s.messages.Recent(ctx, userID, chatID, limit, time.Now().UTC().Add(-window))
	if err != nil {
		return nil, err
	}
	return append(turns, recent...), nil
}

// LastTranscription returns the newest transcription side-channel row,
// or nil when the user has none in this chat.
func (s *Store) LastTranscription(ctx context.Context, userID, chatID int64) (*models.MessageTurn, error) {
	return s.messages.LastTranscription(ctx, userID, chatID)
}

// Clear wipes the stored conversation for (user, chat).
func (s *Store) Clear(ctx context.Context, userID, chatID int64) error {
	return s.messages.Clear(ctx, userID, chatID)
}
