package models

// Provider families a credential can belong to.
const (
	ProviderOpenAI = "openai"
	ProviderGoogle = "google"
)

// Credential is an encrypted per-user API key. The plaintext never
// leaves the vault boundary; EncryptedKey is base64 text safe for
// storage. At most one active credential exists per (user, provider).
type Credential struct {
	ID           int64  `json:"id" db:"id"`
	UserID       int64  `json:"user_id" db:"user_id"`
	Provider     string `json:"provider" db:"provider"`
	EncryptedKey string `json:"encrypted_key" db:"encrypted_key"`
	IsActive     bool   `json:"is_active" db:"is_active"`
}
