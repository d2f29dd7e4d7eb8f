package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/assistbot/internal/scheduler"
	"github.com/example/assistbot/pkg/models"
)

// Callback data constants. Dynamic suffixes (model names, reminder
// ids) ride after the prefix.
const (
	callbackMainMenu      = "menu_main"
	callbackModelMenu     = "menu_model"
	callbackSettingsMenu  = "menu_settings"
	callbackKeysMenu      = "menu_keys"
	callbackRemindersMenu = "menu_reminders"
	callbackClose         = "menu_close"

	callbackModelPrefix  = "model_"
	callbackModelCustom  = "model_custom"
	callbackTogglePrefix = "toggle_"
	callbackContextHours = "ctx_hours"
	callbackLangPrefix   = "lang_"

	callbackPromptSet   = "prompt_set"
	callbackPromptReset = "prompt_reset"
	callbackTimezoneSet = "tz_set"

	callbackKeyAdd       = "key_add"
	callbackKeyDelPrefix = "key_del_"

	callbackReminderDelPrefix = "rem_del_"

	callbackPhotoDescribe = "photo_describe"
	callbackPhotoOCR      = "photo_ocr"

	callbackTranscriptLLM     = "tr_llm"
	callbackTranscriptSum     = "tr_sum"
	callbackTranscriptRewrite = "tr_rewrite"
)

var knownModels = []string{"gpt-4o-mini", "gpt-4o", "gemini-1.5-flash", "gemini-1.5-pro"}

func mark(on bool) string {
	if on {
		return "✅"
	}
	return "☐"
}

func (b *Bot) mainMenuButtons() [][]MenuButton {
	return [][]MenuButton{
		{{Text: "🧠 Модель", CallbackData: callbackModelMenu}, {Text: "⚙️ Налаштування", CallbackData: callbackSettingsMenu}},
		{{Text: "🔑 API ключі", CallbackData: callbackKeysMenu}, {Text: "⏰ Нагадування", CallbackData: callbackRemindersMenu}},
		{{Text: "✍️ Системний промпт", CallbackData: callbackPromptSet}, {Text: "🌍 Часовий пояс", CallbackData: callbackTimezoneSet}},
		{{Text: "✖️ Закрити", CallbackData: callbackClose}},
	}
}

// showMainMenu sends the main menu, or edits it in place when
// messageID is non-zero.
func (b *Bot) showMainMenu(ctx context.Context, chatID, userID int64, messageID int) {
	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}
	text := fmt.Sprintf("Меню\n\nМодель: %s\nМова: %s\nЧасовий пояс: %s",
		user.Settings.Model, user.Settings.Language, user.Settings.Timezone)
	if messageID != 0 {
		b.editKeyboard(chatID, messageID, text, b.mainMenuButtons())
		return
	}
	b.sendKeyboard(chatID, text, b.mainMenuButtons())
}

func (b *Bot) showModelMenu(ctx context.Context, chatID, userID int64, messageID int) {
	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}
	var buttons [][]MenuButton
	for _, m := range knownModels {
		label := m
		if m == user.Settings.Model {
			label = "• " + m
		}
		buttons = append(buttons, []MenuButton{{Text: label, CallbackData: callbackModelPrefix + m}})
	}
	buttons = append(buttons,
		[]MenuButton{{Text: "✏️ Інша модель…", CallbackData: callbackModelCustom}},
		[]MenuButton{{Text: "⬅️ Назад", CallbackData: callbackMainMenu}},
	)
	b.editKeyboard(chatID, messageID, "Оберіть модель:", buttons)
}

func (b *Bot) settingsButtons(s models.Settings) [][]MenuButton {
	return [][]MenuButton{
		{{Text: mark(s.ContextEnabled) + " Контекст розмови", CallbackData: callbackTogglePrefix + "context"}},
		{{Text: fmt.Sprintf("🕐 Вікно контексту: %d год", s.ContextHours), CallbackData: callbackContextHours}},
		{{Text: mark(s.Postprocess) + " Дії після розшифровки", CallbackData: callbackTogglePrefix + "postprocess"}},
		{{Text: mark(s.Summarize) + " Підсумок", CallbackData: callbackTogglePrefix + "summarize"},
			{Text: mark(s.Rewrite) + " Переписування", CallbackData: callbackTogglePrefix + "rewrite"}},
		{{Text: mark(s.ProcessVideo) + " Відео", CallbackData: callbackTogglePrefix + "video"},
			{Text: mark(s.ProcessVideoNote) + " Відеоповідомлення", CallbackData: callbackTogglePrefix + "videonote"}},
		{{Text: "🇺🇦 uk", CallbackData: callbackLangPrefix + "uk"}, {Text: "🇬🇧 en", CallbackData: callbackLangPrefix + "en"}},
		{{Text: "⬅️ Назад", CallbackData: callbackMainMenu}},
	}
}

func (b *Bot) showSettingsMenu(ctx context.Context, chatID, userID int64, messageID int) {
	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}
	b.editKeyboard(chatID, messageID, "Налаштування:", b.settingsButtons(user.Settings))
}

func (b *Bot) showKeysMenu(ctx context.Context, chatID, userID int64, messageID int) {
	creds, err := b.creds.List(ctx, userID)
	if err != nil {
		log.Printf("failed to list credentials for %d: %v", userID, err)
		return
	}
	text := "API ключі\n\nКлюч із префіксом sk- збережеться як OpenAI, AIza — як Google."
	var buttons [][]MenuButton
	buttons = append(buttons, []MenuButton{{Text: "➕ Додати ключ", CallbackData: callbackKeyAdd}})
	for _, c := range creds {
		buttons = append(buttons, []MenuButton{{
			Text:         fmt.Sprintf("🗑 Видалити %s", c.Provider),
			CallbackData: callbackKeyDelPrefix + c.Provider,
		}})
	}
	buttons = append(buttons, []MenuButton{{Text: "⬅️ Назад", CallbackData: callbackMainMenu}})
	if messageID != 0 {
		b.editKeyboard(chatID, messageID, text, buttons)
		return
	}
	b.sendKeyboard(chatID, text, buttons)
}

// showRemindersMenu lists pending reminders in the user's timezone
// with one delete button per item.
func (b *Bot) showRemindersMenu(ctx context.Context, chatID, userID int64, messageID int) {
	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}
	reminders, err := b.sched.List(ctx, chatID)
	if err != nil {
		log.Printf("failed to list reminders: %v", err)
		return
	}

	var sb strings.Builder
	sb.WriteString("⏰ Нагадування\n")
	var buttons [][]MenuButton
	for i, r := range reminders {
		when := scheduler.FormatLocal(r.TriggerTime, user.Settings.Timezone)
		fmt.Fprintf(&sb, "\n%d. %s — %s", i+1, when, r.Text)
		buttons = append(buttons, []MenuButton{{
			Text:         fmt.Sprintf("🗑 %d. %s", i+1, when),
			CallbackData: callbackReminderDelPrefix + strconv.FormatInt(r.ID, 10),
		}})
	}
	if len(reminders) == 0 {
		sb.WriteString("\nПоки що порожньо.")
	}
	buttons = append(buttons, []MenuButton{{Text: "⬅️ Назад", CallbackData: callbackMainMenu}})

	if messageID != 0 {
		b.editKeyboard(chatID, messageID, sb.String(), buttons)
		return
	}
	b.sendKeyboard(chatID, sb.String(), buttons)
}

// transcriptButtons builds the post-transcription action row per the
// user's toggles.
func (b *Bot) transcriptButtons(s models.Settings) [][]MenuButton {
	row := []MenuButton{{Text: "💬 В LLM", CallbackData: callbackTranscriptLLM}}
	if s.Postprocess {
		if s.Summarize {
			row = append(row, MenuButton{Text: "📋 Підсумок", CallbackData: callbackTranscriptSum})
		}
		if s.Rewrite {
			row = append(row, MenuButton{Text: "✍️ Переписати", CallbackData: callbackTranscriptRewrite})
		}
	}
	return [][]MenuButton{row}
}

// handleCallback dispatches one inline-button press.
func (b *Bot) handleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	if callback.Message == nil || callback.From == nil {
		return
	}
	// Answer immediately to clear the button's loading state.
	if _, err := b.api.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		log.Printf("failed to answer callback: %v", err)
	}

	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID
	data := callback.Data

	switch data {
	case callbackMainMenu:
		b.showMainMenu(ctx, chatID, userID, messageID)
	case callbackModelMenu:
		b.showModelMenu(ctx, chatID, userID, messageID)
	case callbackSettingsMenu:
		b.showSettingsMenu(ctx, chatID, userID, messageID)
	case callbackKeysMenu:
		b.showKeysMenu(ctx, chatID, userID, messageID)
	case callbackRemindersMenu:
		b.showRemindersMenu(ctx, chatID, userID, messageID)
	case callbackClose:
		b.deleteMessage(chatID, messageID)
	case callbackModelCustom:
		b.setState(userID, stateAwaitModel)
		b.sendText(chatID, "Введіть назву моделі (або /cancel):")
	case callbackPromptSet:
		b.setState(userID, stateAwaitPrompt)
		b.sendText(chatID, "Введіть новий системний промпт (або /cancel):")
	case callbackPromptReset:
		if err := b.users.UpdateSystemPrompt(ctx, userID, ""); err != nil {
			log.Printf("failed to reset prompt: %v", err)
		}
		b.sendText(chatID, "✅ Системний промпт скинуто.")
	case callbackTimezoneSet:
		b.setState(userID, stateAwaitTimezone)
		b.sendText(chatID, "Введіть часовий пояс, напр. Europe/Kyiv (або /cancel):")
	case callbackKeyAdd:
		b.setState(userID, stateAwaitAPIKey)
		b.sendText(chatID, "Надішліть API ключ. Повідомлення буде одразу видалено.")
	case callbackContextHours:
		b.cycleContextHours(ctx, chatID, userID, messageID)
	case callbackPhotoDescribe:
		b.handlePhotoAction(ctx, chatID, userID, messageID, "Опиши детально, що зображено на цьому фото.")
	case callbackPhotoOCR:
		b.handlePhotoAction(ctx, chatID, userID, messageID, "Випиши весь текст, який є на цьому зображенні, без коментарів.")
	case callbackTranscriptLLM:
		b.handleTranscriptAction(ctx, chatID, userID, "")
	case callbackTranscriptSum:
		b.handleTranscriptAction(ctx, chatID, userID, "Стисло підсумуй цей текст:")
	case callbackTranscriptRewrite:
		b.handleTranscriptAction(ctx, chatID, userID, "Перепиши цей текст грамотно й охайно, зберігши зміст:")
	default:
		switch {
		case strings.HasPrefix(data, callbackModelPrefix):
			b.setModel(ctx, chatID, userID, messageID, strings.TrimPrefix(data, callbackModelPrefix))
		case strings.HasPrefix(data, callbackTogglePrefix):
			b.toggleSetting(ctx, chatID, userID, messageID, strings.TrimPrefix(data, callbackTogglePrefix))
		case strings.HasPrefix(data, callbackLangPrefix):
			b.setLanguage(ctx, chatID, userID, messageID, strings.TrimPrefix(data, callbackLangPrefix))
		case strings.HasPrefix(data, callbackKeyDelPrefix):
			b.deleteCredential(ctx, chatID, userID, messageID, strings.TrimPrefix(data, callbackKeyDelPrefix))
		case strings.HasPrefix(data, callbackReminderDelPrefix):
			b.deleteReminder(ctx, chatID, userID, messageID, strings.TrimPrefix(data, callbackReminderDelPrefix))
		default:
			log.Printf("unknown callback %q from user %d", data, userID)
		}
	}
}

func (b *Bot) setModel(ctx context.Context, chatID, userID int64, messageID int, model string) {
	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}
	user.Settings.Model = model
	if err := b.users.UpdateSettings(ctx, userID, user.Settings); err != nil {
		log.Printf("failed to save model: %v", err)
		return
	}
	b.showModelMenu(ctx, chatID, userID, messageID)
}

func (b *Bot) toggleSetting(ctx context.Context, chatID, userID int64, messageID int, field string) {
	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}
	s := &user.Settings
	switch field {
	case "context":
		s.ContextEnabled = !s.ContextEnabled
	case "postprocess":
		s.Postprocess = !s.Postprocess
	case "summarize":
		s.Summarize = !s.Summarize
	case "rewrite":
		s.Rewrite = !s.Rewrite
	case "video":
		s.ProcessVideo = !s.ProcessVideo
	case "videonote":
		s.ProcessVideoNote = !s.ProcessVideoNote
	default:
		return
	}
	if err := b.users.UpdateSettings(ctx, userID, user.Settings); err != nil {
		log.Printf("failed to save settings: %v", err)
		return
	}
	b.showSettingsMenu(ctx, chatID, userID, messageID)
}

// cycleContextHours steps the context window through 6→12→24→48.
func (b *Bot) cycleContextHours(ctx context.Context, chatID, userID int64, messageID int) {
	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}
	switch user.Settings.ContextHours {
	case 6:
		user.Settings.ContextHours = 12
	case 12:
		user.Settings.ContextHours = 24
	case 24:
		user.Settings.ContextHours = 48
	default:
		user.Settings.ContextHours = 6
	}
	if err := b.users.UpdateSettings(ctx, userID, user.Settings); err != nil {
		log.Printf("failed to save settings: %v", err)
		return
	}
	b.showSettingsMenu(ctx, chatID, userID, messageID)
}

func (b *Bot) setLanguage(ctx context.Context, chatID, userID int64, messageID int, lang string) {
	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}
	user.Settings.Language = lang
	if err := b.users.UpdateSettings(ctx, userID, user.Settings); err != nil {
		log.Printf("failed to save language: %v", err)
		return
	}
	b.showSettingsMenu(ctx, chatID, userID, messageID)
}

func (b *Bot) deleteCredential(ctx context.Context, chatID, userID int64, messageID int, provider string) {
	if err := b.creds.Delete(ctx, userID, provider); err != nil {
		log.Printf("failed to delete credential: %v", err)
		return
	}
	b.showKeysMenu(ctx, chatID, userID, messageID)
}

func (b *Bot) deleteReminder(ctx context.Context, chatID, userID int64, messageID int, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		log.Printf("bad reminder id %q: %v", idStr, err)
		return
	}
	if err := b.sched.Delete(ctx, id); err != nil {
		log.Printf("failed to delete reminder %d: %v", id, err)
		return
	}
	b.showRemindersMenu(ctx, chatID, userID, messageID)
}

// handlePhotoAction runs vision on the last captionless photo with a
// canned prompt.
func (b *Bot) handlePhotoAction(ctx context.Context, chatID, userID int64, messageID int, prompt string) {
	b.mu.Lock()
	fileID := b.lastPhoto[chatID]
	b.mu.Unlock()
	if fileID == "" {
		b.sendText(chatID, "⚠️ Фото вже не доступне, надішліть його ще раз.")
		return
	}
	b.deleteMessage(chatID, messageID)
	b.runVision(ctx, userID, chatID, 0, fileID, prompt)
}

// handleTranscriptAction feeds the last transcription to the LLM,
// optionally under a canned instruction.
func (b *Bot) handleTranscriptAction(ctx context.Context, chatID, userID int64, instruction string) {
	turn, err := b.history.LastTranscription(ctx, userID, chatID)
	if err != nil {
		log.Printf("failed to load transcription: %v", err)
		return
	}
	if turn == nil {
		b.sendText(chatID, "⚠️ Немає збереженої розшифровки.")
		return
	}
	prompt := turn.Content
	if instruction != "" {
		prompt = instruction + "\n\n" + turn.Content
	}
	b.runPrompt(ctx, userID, chatID, 0, prompt)
}
