package bot

import (
	"context"
	"log"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/assistbot/internal/queue"
)

// triggerMatcher implements the group-chat engagement rule: the bot
// answers in a group only when addressed by a trigger word at the
// start of the text or via a reply to one of its own messages.
type triggerMatcher struct {
	re *regexp.Regexp
}

func newTriggerMatcher(botUsername string) *triggerMatcher {
	triggers := []string{"бот", "bot", "gpt"}
	if botUsername != "" {
		triggers = append(triggers, regexp.QuoteMeta("@"+strings.ToLower(botUsername)))
	}
	// \b is ASCII-only in RE2 and never fires after Cyrillic letters,
	// so the trigger must be followed by an explicit separator.
	return &triggerMatcher{
		re: regexp.MustCompile(`^(?:` + strings.Join(triggers, "|") + `)(?:[,:]\s*|\s+|$)`),
	}
}

// Strip reports whether the text starts with a trigger word and
// returns the text with the trigger removed.
func (m *triggerMatcher) Strip(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	loc := m.re.FindStringIndex(strings.ToLower(trimmed))
	if loc == nil {
		return trimmed, false
	}
	return strings.TrimSpace(trimmed[loc[1]:]), true
}

// engage decides whether the bot should respond to a message and
// returns the message text with any trigger prefix removed.
func (b *Bot) engage(message *tgbotapi.Message) (string, bool) {
	text := message.Text
	if text == "" {
		text = message.Caption
	}

	if message.Chat.IsPrivate() {
		stripped, _ := b.triggerRe.Strip(text)
		return stripped, true
	}

	if message.ReplyToMessage != nil && message.ReplyToMessage.From != nil &&
		message.ReplyToMessage.From.ID == b.api.Self.ID {
		stripped, _ := b.triggerRe.Strip(text)
		return stripped, true
	}

	stripped, ok := b.triggerRe.Strip(text)
	if !ok {
		return "", false
	}
	return stripped, true
}

// handleUpdate is the top-level dispatcher for one inbound update.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("panic while handling update: %v", r)
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// handleMessage routes one inbound message through the dispatch order:
// carrier caption, command, wizard input, URL, media, then the
// conversational pipeline.
func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	// Carrier messages from the helper session bypass everything else.
	if _, ok := queue.ParseCarrier(message.Caption); ok {
		b.handleCarrier(ctx, message)
		return
	}

	userID := message.From.ID
	chatID := message.Chat.ID

	if _, err := b.users.GetOrCreate(ctx, userID, message.From.UserName, strings.TrimSpace(message.From.FirstName+" "+message.From.LastName)); err != nil {
		log.Printf("failed to upsert user %d: %v", userID, err)
		return
	}

	if message.IsCommand() {
		b.handleCommand(ctx, message)
		return
	}

	// An active wizard consumes the next plain-text message.
	if state, ok := b.getState(userID); ok && message.Text != "" {
		b.handleWizardInput(ctx, message, state)
		return
	}

	text, engaged := b.engage(message)

	// Media routes do not need a trigger word when the message is
	// addressed to the bot (private chat or reply to the bot); group
	// chatter with media and no trigger is ignored.
	addressed := message.Chat.IsPrivate() ||
		(message.ReplyToMessage != nil && message.ReplyToMessage.From != nil &&
			message.ReplyToMessage.From.ID == b.api.Self.ID)
	switch {
	case message.Voice != nil:
		if addressed {
			b.handleVoice(ctx, message)
		}
		return
	case message.VideoNote != nil:
		if addressed {
			b.handleVideoNote(ctx, message)
		}
		return
	case message.Video != nil && addressed:
		b.handleVideo(ctx, message)
		return
	case len(message.Photo) > 0:
		b.handlePhoto(ctx, message, text, engaged)
		return
	}

	if !engaged || text == "" {
		return
	}

	if url := queue.ExtractURL(text); url != "" {
		switch {
		case queue.IsDirectURL(url):
			b.handleDirectDownload(ctx, message, url)
			return
		case queue.IsHelperURL(url):
			b.handleHelperEnqueue(ctx, message, url)
			return
		}
	}

	if phrase, ok := reminderPhrase(text); ok {
		b.handleReminderRequest(ctx, message, phrase)
		return
	}

	if b.isMenuToken(text) {
		b.showMainMenu(ctx, chatID, userID, 0)
		return
	}

	b.handleChat(ctx, message, text)
}

var reminderRe = regexp.MustCompile(`(?i)^(?:нагадай(?:\s+мені)?|remind(?:\s+me)?)(?:[,:]\s*|\s+|$)`)

// reminderPhrase detects a reminder request and returns the phrase
// without the leading keyword.
func reminderPhrase(text string) (string, bool) {
	loc := reminderRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	rest := strings.TrimSpace(text[loc[1]:])
	if rest == "" {
		return "", false
	}
	return rest, true
}

// isMenuToken matches the short bare words that open the menu without
// a slash command.
func (b *Bot) isMenuToken(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "menu", "меню", "settings", "налаштування":
		return true
	}
	return false
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	chatID := message.Chat.ID
	userID := message.From.ID

	switch message.Command() {
	case "start":
		b.setState(userID, "")
		b.sendText(chatID, startText)
	case "help":
		b.sendText(chatID, helpText)
	case "menu", "settings":
		b.showMainMenu(ctx, chatID, userID, 0)
	case "cancel":
		b.setState(userID, "")
		b.sendText(chatID, "Скасовано.")
	case "clear":
		if err := b.history.Clear(ctx, userID, chatID); err != nil {
			log.Printf("failed to clear context for user %d: %v", userID, err)
			b.sendText(chatID, "❌ Не вдалося очистити контекст.")
			return
		}
		b.sendText(chatID, "🧹 Контекст розмови очищено.")
	case "reminders":
		b.showRemindersMenu(ctx, chatID, userID, 0)
	default:
		b.sendText(chatID, "Невідома команда. /help — список команд.")
	}
}

const startText = `Привіт! Я асистент. 🤖

Надішліть текст, голосове, фото або посилання:
• текст — відповім через LLM
• голосове чи відео — розшифрую
• фото з підписом — проаналізую зображення
• посилання (TikTok, Instagram, YouTube…) — завантажу медіа
• "нагадай через 20 хв …" — поставлю нагадування

/menu — налаштування, /help — довідка.`

const helpText = `Команди:
/menu — меню налаштувань
/reminders — список нагадувань
/clear — очистити контекст розмови
/cancel — скасувати поточну дію

У групах звертайтеся "бот …", "gpt …" або відповіддю на моє повідомлення.`
