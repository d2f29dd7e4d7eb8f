package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/assistbot/pkg/models"
)

// CredentialRepository handles database operations for encrypted API keys.
type CredentialRepository struct{}

// NewCredentialRepository creates a new repository instance.
func NewCredentialRepository() *CredentialRepository {
	return &CredentialRepository{}
}

// Save stores a new active credential, superseding any previous one
// for the same (user, provider).
func (r *CredentialRepository) Save(ctx context.Context, userID int64, provider, encryptedKey string) error {
	tx, err := DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM api_keys WHERE user_id = ? AND provider = ?",
		userID, provider); err != nil {
		return fmt.Errorf("failed to supersede credential: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO api_keys (user_id, provider, encrypted_key, is_active) VALUES (?, ?, ?, true)",
		userID, provider, encryptedKey); err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return tx.Commit()
}

// GetActive returns the active encrypted key for (user, provider), or
// an empty string when none exists.
func (r *CredentialRepository) GetActive(ctx context.Context, userID int64, provider string) (string, error) {
	var encrypted string
	err := DB.QueryRowContext(ctx,
		"SELECT encrypted_key FROM api_keys WHERE user_id = ? AND provider = ? AND is_active = true",
		userID, provider).Scan(&encrypted)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get credential: %w", err)
	}
	return encrypted, nil
}

// HasAny reports whether the user has at least one active credential
// for any provider (feeds the allow_search derivation).
func (r *CredentialRepository) HasAny(ctx context.Context, userID int64) (bool, error) {
	var count int
	err := DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM api_keys WHERE user_id = ? AND is_active = true",
		userID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count credentials: %w", err)
	}
	return count > 0, nil
}

// Delete removes the user's credential for a provider.
func (r *CredentialRepository) Delete(ctx context.Context, userID int64, provider string) error {
	_, err := DB.ExecContext(ctx,
		"DELETE FROM api_keys WHERE user_id = ? AND provider = ?", userID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	return nil
}

// List returns all credentials a user has (for the settings menu).
func (r *CredentialRepository) List(ctx context.Context, userID int64) ([]models.Credential, error) {
	rows, err := DB.QueryContext(ctx,
		"SELECT id, user_id, provider, encrypted_key, is_active FROM api_keys WHERE user_id = ?",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	defer rows.Close()

	var creds []models.Credential
	for rows.Next() {
		var c models.Credential
		if err := rows.Scan(&c.ID, &c.UserID, &c.Provider, &c.EncryptedKey, &c.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	return creds, rows.Err()
}
