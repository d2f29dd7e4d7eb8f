package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/assistbot/pkg/models"
)

// MessageRepository handles database operations for the message cache.
type MessageRepository struct{}

// NewMessageRepository creates a new repository instance.
func NewMessageRepository() *MessageRepository {
	return &MessageRepository{}
}

// Append stores one conversational turn.
func (r *MessageRepository) Append(ctx context.Context, turn *models.MessageTurn) error {
	ts := turn.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := DB.ExecContext(ctx,
		"INSERT INTO message_cache (user_id, chat_id, role, content, media_file_id, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
		turn.UserID, turn.ChatID, turn.Role, turn.Content, turn.MediaFileID, ts)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

// Recent returns up to limit user/assistant turns for (user, chat)
// newer than since, in chronological order. System and transcription
// rows are never part of dialogue history.
func (r *MessageRepository) Recent(ctx context.Context, userID, chatID int64, limit int, since time.Time) ([]models.MessageTurn, error) {
	rows, err := DB.QueryContext(ctx, `
		SELECT id, user_id, chat_id, role, content, media_file_id, timestamp
		FROM message_cache
		WHERE user_id = ? AND chat_id = ?
		  AND role IN (?, ?)
		  AND timestamp > ?
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`,
		userID, chatID, models.RoleUser, models.RoleAssistant, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var turns []models.MessageTurn
	for rows.Next() {
		var t models.MessageTurn
		if err := rows.Scan(&t.ID, &t.UserID, &t.ChatID, &t.Role, &t.Content, &t.MediaFileID, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// The query returns newest first; flip to chronological order.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// LastTranscription returns the newest transcription row for
// (user, chat), or nil when none exists.
func (r *MessageRepository) LastTranscription(ctx context.Context, userID, chatID int64) (*models.MessageTurn, error) {
	var t models.MessageTurn
	err := DB.QueryRowContext(ctx, `
		SELECT id, user_id, chat_id, role, content, media_file_id, timestamp
		FROM message_cache
		WHERE user_id = ? AND chat_id = ? AND role = ?
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`,
		userID, chatID, models.RoleTranscription).
		Scan(&t.ID, &t.UserID, &t.ChatID, &t.Role, &t.Content, &t.MediaFileID, &t.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last transcription: %w", err)
	}
	return &t, nil
}

// Clear removes all stored turns for (user, chat).
func (r *MessageRepository) Clear(ctx context.Context, userID, chatID int64) error {
	_, err := DB.ExecContext(ctx,
		"DELETE FROM message_cache WHERE user_id = ? AND chat_id = ?", userID, chatID)
	if err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}
