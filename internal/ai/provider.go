// Package ai unifies the LLM vendors behind one capability set:
// streaming chat, audio transcription, image analysis and key
// validation. The two families (OpenAI-shaped and Google-shaped) are
// selected by model-name classification, so callers never branch on
// vendor themselves.
package ai

import (
	"context"
	"database/sql"
	"strings"

	"github.com/example/assistbot/internal/database"
	"github.com/example/assistbot/internal/vault"
	"github.com/example/assistbot/pkg/models"
)

// Chunk is one fragment of a streamed response. A non-nil Err
// terminates the stream; no fragments follow it.
type Chunk struct {
	Text string
	Err  error
}

// LanguageSwitchToken is the inline control sentinel a model may emit
// to change the user's language preference. The renderer strips it
// from display and persists the captured code.
const LanguageSwitchToken = "__SET_LANGUAGE:"

// languageSwitchInstruction teaches the model about the control token.
// It rides along with the user's system prompt on every request.
const languageSwitchInstruction = "\n\nIf the user explicitly asks you to switch the conversation " +
	"language, include the token __SET_LANGUAGE:<code>__ (for example __SET_LANGUAGE:en__) " +
	"once in your reply, then continue in the new language."

// Provider is the uniform vendor surface. Streams are finite and
// non-restartable; consuming the channel to the end is the only way
// to finish a call cleanly.
type Provider interface {
	// GenerateStream produces text fragments for a chat-style message
	// list (roles system/user/assistant).
	GenerateStream(ctx context.Context, messages []models.MessageTurn, settings models.Settings) (<-chan Chunk, error)

	// Transcribe returns the recognized text for an audio file. On
	// failure it returns a short human-readable error string instead
	// of an error value.
	Transcribe(ctx context.Context, audioPath, language string) string

	// AnalyzeImage yields text fragments describing the image,
	// optionally continuing prior vision dialogue.
	AnalyzeImage(ctx context.Context, imagePath, prompt string, prior []models.MessageTurn, settings models.Settings) (<-chan Chunk, error)

	// ValidateKey issues one minimal live call with the given key.
	ValidateKey(ctx context.Context, key string) bool
}

// Selector resolves a user to a concrete provider with a usable
// credential, per the selection rule: a model name containing "gemini"
// picks the Google family, force-whisper picks OpenAI, everything else
// defaults to OpenAI. Credentials resolve user key → system key → none.
type Selector struct {
	users *database.UserRepository
	creds *database.CredentialRepository
	vault *vault.Vault

	systemOpenAIKey string
	systemGoogleKey string
}

// NewSelector builds the provider selector.
func NewSelector(users *database.UserRepository, creds *database.CredentialRepository, v *vault.Vault, systemOpenAIKey, systemGoogleKey string) *Selector {
	return &Selector{
		users:           users,
		creds:           creds,
		vault:           v,
		systemOpenAIKey: systemOpenAIKey,
		systemGoogleKey: systemGoogleKey,
	}
}

// Select returns the provider for a user, or nil when no credential is
// available for the chosen family (the caller surfaces "no access").
func (s *Selector) Select(ctx context.Context, userID int64, forceWhisper bool) (Provider, error) {
	settings := models.DefaultSettings()
	user, err := s.users.GetByID(ctx, userID)
	if err == nil {
		settings = user.Settings
	} else if err != sql.ErrNoRows {
		return nil, err
	}

	family := models.ProviderOpenAI
	if strings.Contains(strings.ToLower(settings.Model), "gemini") && !forceWhisper {
		family = models.ProviderGoogle
	}

	key, err := s.resolveKey(ctx, userID, family)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, nil
	}

	if family == models.ProviderGoogle {
		return NewGemini(key), nil
	}
	provider := NewOpenAI(key)
	if settings.TranscriptionModel != "" {
		provider.transcriptionModel = settings.TranscriptionModel
	}
	return provider, nil
}

func (s *Selector) resolveKey(ctx context.Context, userID int64, family string) (string, error) {
	encrypted, err := s.creds.GetActive(ctx, userID, family)
	if err != nil {
		return "", err
	}
	if encrypted != "" {
		// A broken ciphertext decrypts to "" and falls through to the
		// system key, same as a missing credential.
		if key := s.vault.Decrypt(encrypted); key != "" {
			return key, nil
		}
	}
	if family == models.ProviderGoogle {
		return s.systemGoogleKey, nil
	}
	return s.systemOpenAIKey, nil
}

// systemContent merges all system turns into one instruction block and
// appends the language-switch contract.
func systemContent(messages []models.MessageTurn) string {
	var parts []string
	for _, m := range messages {
		if m.Role == models.RoleSystem && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n") + languageSwitchInstruction
}
