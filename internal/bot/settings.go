package bot

import (
	"context"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/assistbot/internal/ai"
	"github.com/example/assistbot/pkg/models"
)

// Wizard states. Each flow is two steps: awaiting one message, then
// terminal; /cancel drops the state from anywhere.
const (
	stateAwaitAPIKey   = "await_api_key"
	stateAwaitModel    = "await_model"
	stateAwaitPrompt   = "await_prompt"
	stateAwaitTimezone = "await_timezone"
)

// handleWizardInput consumes one plain-text message for the active
// wizard flow and clears the state.
func (b *Bot) handleWizardInput(ctx context.Context, message *tgbotapi.Message, state string) {
	userID := message.From.ID
	b.setState(userID, "")

	switch state {
	case stateAwaitAPIKey:
		b.saveAPIKey(ctx, message)
	case stateAwaitModel:
		b.saveCustomModel(ctx, message)
	case stateAwaitPrompt:
		b.saveSystemPrompt(ctx, message)
	case stateAwaitTimezone:
		b.saveTimezone(ctx, message)
	default:
		log.Printf("unknown wizard state %q for user %d", state, userID)
	}
}

// saveAPIKey classifies the submitted key by prefix, validates it with
// one live call, encrypts and stores it. The plaintext message is
// deleted immediately, before anything else can fail.
func (b *Bot) saveAPIKey(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID
	key := strings.TrimSpace(message.Text)

	b.deleteMessage(chatID, message.MessageID)

	var provider string
	var validator ai.Provider
	switch {
	case strings.HasPrefix(key, "sk-"):
		provider = models.ProviderOpenAI
		validator = ai.NewOpenAI(key)
	case strings.HasPrefix(key, "AIza"):
		provider = models.ProviderGoogle
		validator = ai.NewGemini(key)
	default:
		b.sendText(chatID, "⚠️ Не впізнаю ключ: очікую префікс sk- (OpenAI) або AIza (Google).")
		return
	}

	if !validator.ValidateKey(ctx, key) {
		b.sendText(chatID, "❌ Ключ не пройшов перевірку, збереження скасовано.")
		return
	}

	encrypted, err := b.vault.Encrypt(key)
	if err != nil {
		log.Printf("failed to encrypt key for user %d: %v", userID, err)
		b.sendText(chatID, "❌ Не вдалося зберегти ключ.")
		return
	}
	if err := b.creds.Save(ctx, userID, provider, encrypted); err != nil {
		log.Printf("failed to save key for user %d: %v", userID, err)
		b.sendText(chatID, "❌ Не вдалося зберегти ключ.")
		return
	}
	b.sendText(chatID, "✅ Ключ "+provider+" збережено.")
}

func (b *Bot) saveCustomModel(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID
	model := strings.TrimSpace(message.Text)
	if model == "" {
		b.sendText(chatID, "⚠️ Порожня назва моделі.")
		return
	}

	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}
	user.Settings.Model = model
	if err := b.users.UpdateSettings(ctx, userID, user.Settings); err != nil {
		log.Printf("failed to save model: %v", err)
		b.sendText(chatID, "❌ Не вдалося зберегти модель.")
		return
	}
	b.sendText(chatID, "✅ Модель: "+model)
}

func (b *Bot) saveSystemPrompt(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID
	prompt := strings.TrimSpace(message.Text)

	if err := b.users.UpdateSystemPrompt(ctx, userID, prompt); err != nil {
		log.Printf("failed to save prompt: %v", err)
		b.sendText(chatID, "❌ Не вдалося зберегти промпт.")
		return
	}
	b.sendText(chatID, "✅ Системний промпт оновлено.")
}

func (b *Bot) saveTimezone(ctx context.Context, message *tgbotapi.Message) {
	userID := message.From.ID
	chatID := message.Chat.ID
	zone := strings.TrimSpace(message.Text)

	if _, err := time.LoadLocation(zone); err != nil {
		b.sendText(chatID, "⚠️ Невідомий часовий пояс. Приклад: Europe/Kyiv")
		return
	}

	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}
	user.Settings.Timezone = zone
	if err := b.users.UpdateSettings(ctx, userID, user.Settings); err != nil {
		log.Printf("failed to save timezone: %v", err)
		b.sendText(chatID, "❌ Не вдалося зберегти часовий пояс.")
		return
	}
	b.sendText(chatID, "✅ Часовий пояс: "+zone)
}
