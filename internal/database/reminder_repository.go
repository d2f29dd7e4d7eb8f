package database

import (
	"context"
	"fmt"

	"github.com/example/assistbot/pkg/models"
)

// ReminderRepository handles database operations for reminders.
type ReminderRepository struct{}

// NewReminderRepository creates a new repository instance.
func NewReminderRepository() *ReminderRepository {
	return &ReminderRepository{}
}

// Create inserts a reminder and returns its id. TriggerTime is
// normalized to UTC before it hits the row.
func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) (int64, error) {
	result, err := DB.ExecContext(ctx,
		"INSERT INTO reminders (user_id, chat_id, text, trigger_time) VALUES (?, ?, ?, ?)",
		reminder.UserID, reminder.ChatID, reminder.Text, reminder.TriggerTime.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to create reminder: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get reminder id: %w", err)
	}
	reminder.ID = id
	return id, nil
}

// GetAll returns every stored reminder (used by startup recovery).
func (r *ReminderRepository) GetAll(ctx context.Context) ([]models.Reminder, error) {
	return r.query(ctx, "SELECT id, user_id, chat_id, text, trigger_time FROM reminders ORDER BY trigger_time ASC")
}

// ListByChat returns reminders for one chat ordered by trigger time.
func (r *ReminderRepository) ListByChat(ctx context.Context, chatID int64) ([]models.Reminder, error) {
	return r.query(ctx,
		"SELECT id, user_id, chat_id, text, trigger_time FROM reminders WHERE chat_id = ? ORDER BY trigger_time ASC",
		chatID)
}

// CountByChat returns the number of reminders pending for a chat.
func (r *ReminderRepository) CountByChat(ctx context.Context, chatID int64) (int, error) {
	var count int
	err := DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM reminders WHERE chat_id = ?", chatID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reminders: %w", err)
	}
	return count, nil
}

// Delete removes a reminder row.
func (r *ReminderRepository) Delete(ctx context.Context, id int64) error {
	_, err := DB.ExecContext(ctx, "DELETE FROM reminders WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete reminder: %w", err)
	}
	return nil
}

func (r *ReminderRepository) query(ctx context.Context, stmt string, args ...interface{}) ([]models.Reminder, error) {
	rows, err := DB.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}
	defer rows.Close()

	var reminders []models.Reminder
	for rows.Next() {
		var rem models.Reminder
		if err := rows.Scan(&rem.ID, &rem.UserID, &rem.ChatID, &rem.Text, &rem.TriggerTime); err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		rem.TriggerTime = rem.TriggerTime.UTC()
		reminders = append(reminders, rem)
	}
	return reminders, rows.Err()
}
