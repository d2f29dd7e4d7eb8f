package bot

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/assistbot/internal/ai"
	"github.com/example/assistbot/internal/dateparse"
	"github.com/example/assistbot/internal/media"
	"github.com/example/assistbot/internal/queue"
	"github.com/example/assistbot/internal/render"
	"github.com/example/assistbot/internal/scheduler"
	"github.com/example/assistbot/pkg/models"
)

const (
	historyLimit = 20

	noAccessText = "⚠️ Немає доступу до LLM: додайте свій API ключ у /menu."
)

// handleChat runs the conversational pipeline: user turn into the
// context store, provider stream through the renderer, assistant turn
// back into the store.
func (b *Bot) handleChat(ctx context.Context, message *tgbotapi.Message, text string) {
	text = b.decorateWithReply(message, text)
	b.runPrompt(ctx, message.From.ID, message.Chat.ID, message.MessageID, text)
}

// runPrompt is the shared tail of every text-to-LLM path.
func (b *Bot) runPrompt(ctx context.Context, userID, chatID int64, replyTo int, text string) {
	if err := b.history.Append(ctx, userID, chatID, models.RoleUser, text, ""); err != nil {
		log.Printf("failed to store user turn: %v", err)
	}

	provider, err := b.selector.Select(ctx, userID, false)
	if err != nil {
		log.Printf("provider selection failed for user %d: %v", userID, err)
		b.sendText(chatID, render.FormatError(err))
		return
	}
	if provider == nil {
		b.sendText(chatID, noAccessText)
		return
	}

	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}

	limit, window := historyLimit, time.Duration(user.Settings.ContextHours)*time.Hour
	if !user.Settings.ContextEnabled {
		// Only the materialized system turn and the current message.
		limit, window = 1, time.Minute
	}
	turns, err := b.history.History(ctx, userID, chatID, limit, window)
	if err != nil {
		log.Printf("failed to load history: %v", err)
		b.sendText(chatID, render.FormatError(err))
		return
	}

	stream, err := provider.GenerateStream(ctx, turns, user.Settings)
	if err != nil {
		b.sendText(chatID, render.FormatError(err))
		return
	}

	b.finishStream(ctx, userID, chatID, replyTo, stream)
}

// finishStream drains one LLM stream through the renderer, persists a
// language switch if the model emitted one and appends the assistant
// turn on success.
func (b *Bot) finishStream(ctx context.Context, userID, chatID int64, replyTo int, stream <-chan ai.Chunk) {
	final, language, err := b.renderer.Consume(ctx, chatID, replyTo, stream)

	if language != "" {
		user, uerr := b.loadUser(ctx, userID)
		if uerr == nil {
			user.Settings.Language = language
			uerr = b.users.UpdateSettings(ctx, userID, user.Settings)
		}
		if uerr != nil {
			log.Printf("failed to persist language switch to %q: %v", language, uerr)
		}
	}

	if err != nil {
		log.Printf("stream for user %d failed: %v", userID, err)
		return
	}
	if final == "" {
		return
	}
	if err := b.history.Append(ctx, userID, chatID, models.RoleAssistant, final, ""); err != nil {
		log.Printf("failed to store assistant turn: %v", err)
	}
}

// decorateWithReply prepends quoted non-bot content so the model sees
// what the user is replying to.
func (b *Bot) decorateWithReply(message *tgbotapi.Message, text string) string {
	reply := message.ReplyToMessage
	if reply == nil || reply.From == nil || reply.From.ID == b.api.Self.ID {
		return text
	}
	quoted := reply.Text
	if quoted == "" {
		quoted = reply.Caption
	}
	if quoted == "" || len(reply.Photo) > 0 {
		return text
	}
	return fmt.Sprintf("Контекст (цитоване повідомлення):\n%s\n\nЗапит:\n%s", quoted, text)
}

// handleReminderRequest parses the phrase and registers a reminder.
func (b *Bot) handleReminderRequest(ctx context.Context, message *tgbotapi.Message, phrase string) {
	userID := message.From.ID
	chatID := message.Chat.ID

	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}

	provider, err := b.selector.Select(ctx, userID, false)
	if err != nil || provider == nil {
		b.sendText(chatID, noAccessText)
		return
	}

	instant, err := dateparse.New(provider).Parse(ctx, phrase, user.Settings.Timezone)
	if err != nil {
		log.Printf("failed to parse reminder phrase %q: %v", phrase, err)
		b.sendText(chatID, "❌ Не зрозумів час нагадування. Спробуйте, наприклад: «нагадай через 20 хв випити чай».")
		return
	}

	if _, err := b.sched.Add(ctx, userID, chatID, phrase, instant); err != nil {
		log.Printf("failed to add reminder: %v", err)
		b.sendText(chatID, render.FormatError(err))
		return
	}
	b.sendText(chatID, fmt.Sprintf("✅ Нагадаю %s: %s",
		scheduler.FormatLocal(instant, user.Settings.Timezone), phrase))
}

// handleDirectDownload fetches a URL with the direct downloader and
// uploads the result as a reply.
func (b *Bot) handleDirectDownload(ctx context.Context, message *tgbotapi.Message, url string) {
	chatID := message.Chat.ID
	statusID := b.sendReplyText(chatID, message.MessageID, "⏳ Завантажую…")

	result, err := b.direct.Fetch(ctx, url)
	if statusID != 0 {
		b.deleteMessage(chatID, statusID)
	}
	if err != nil {
		log.Printf("direct download failed for %s: %v", url, err)
		b.sendReplyText(chatID, message.MessageID, "❌ Не вдалося завантажити.")
		return
	}
	defer b.files.Cleanup(result.Path)

	if err := b.uploadFile(chatID, message.MessageID, result.Path, result.Type, result.Title); err != nil {
		log.Printf("upload failed for %s: %v", url, err)
		b.sendReplyText(chatID, message.MessageID, "❌ Не вдалося надіслати файл.")
	}
}

// handleHelperEnqueue inserts a pending download task for the helper
// process.
func (b *Bot) handleHelperEnqueue(ctx context.Context, message *tgbotapi.Message, url string) {
	chatID := message.Chat.ID
	id, err := b.tasks.Enqueue(ctx, chatID, message.MessageID, url)
	if err != nil {
		log.Printf("failed to enqueue download: %v", err)
		b.sendReplyText(chatID, message.MessageID, render.FormatError(err))
		return
	}
	log.Printf("queued download task %d for chat %d: %s", id, chatID, url)
	b.sendReplyText(chatID, message.MessageID, "⏳ Додано в чергу завантаження.")
}

// handleCarrier processes a helper delivery: copy the media to the
// task's chat (as a reply when possible) and delete the carrier.
func (b *Bot) handleCarrier(ctx context.Context, message *tgbotapi.Message) {
	taskID, ok := queue.ParseCarrier(message.Caption)
	if !ok {
		return
	}

	task, err := b.tasks.Get(ctx, taskID)
	if err != nil {
		log.Printf("failed to load task %d: %v", taskID, err)
		return
	}
	if task == nil {
		log.Printf("carrier for unknown task %d, ignoring", taskID)
		b.deleteMessage(message.Chat.ID, message.MessageID)
		return
	}

	// Duplicate delivery of a finished task: discard the carrier
	// without forwarding again.
	b.mu.Lock()
	duplicate := task.Status == models.TaskDone && b.forwardedTasks[taskID]
	b.forwardedTasks[taskID] = true
	b.mu.Unlock()
	if duplicate {
		b.deleteMessage(message.Chat.ID, message.MessageID)
		return
	}

	copyMsg := tgbotapi.NewCopyMessage(task.ChatID, message.Chat.ID, message.MessageID)
	copyMsg.ReplyToMessageID = task.ReplyToID
	if _, err := b.api.CopyMessage(copyMsg); err != nil {
		// The original message may be gone; retry as a plain copy.
		plain := tgbotapi.NewCopyMessage(task.ChatID, message.Chat.ID, message.MessageID)
		if _, err := b.api.CopyMessage(plain); err != nil {
			log.Printf("failed to deliver task %d media: %v", taskID, err)
			return
		}
	}
	b.deleteMessage(message.Chat.ID, message.MessageID)
}

// handleVoice transcribes a voice note.
func (b *Bot) handleVoice(ctx context.Context, message *tgbotapi.Message) {
	b.transcribeFile(ctx, message, message.Voice.FileID, ".oga", false)
}

// handleVideoNote transcribes a round video message if the toggle
// allows it.
func (b *Bot) handleVideoNote(ctx context.Context, message *tgbotapi.Message) {
	user, err := b.loadUser(ctx, message.From.ID)
	if err != nil {
		log.Printf("failed to load user %d: %v", message.From.ID, err)
		return
	}
	if !user.Settings.ProcessVideoNote {
		return
	}
	b.transcribeFile(ctx, message, message.VideoNote.FileID, ".mp4", true)
}

// handleVideo transcribes a regular video if the toggle allows it.
func (b *Bot) handleVideo(ctx context.Context, message *tgbotapi.Message) {
	user, err := b.loadUser(ctx, message.From.ID)
	if err != nil {
		log.Printf("failed to load user %d: %v", message.From.ID, err)
		return
	}
	if !user.Settings.ProcessVideo {
		return
	}
	b.transcribeFile(ctx, message, message.Video.FileID, ".mp4", true)
}

// transcribeFile downloads the platform file, optionally extracts the
// audio track, transcribes it and replies with the text plus action
// buttons. The transcription is cached with role transcription so it
// never enters LLM history on its own.
func (b *Bot) transcribeFile(ctx context.Context, message *tgbotapi.Message, fileID, ext string, extractAudio bool) {
	userID := message.From.ID
	chatID := message.Chat.ID

	provider, err := b.selector.Select(ctx, userID, true)
	if err != nil || provider == nil {
		b.sendText(chatID, noAccessText)
		return
	}

	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}

	statusID := b.sendReplyText(chatID, message.MessageID, "⏳ Розшифровую…")
	defer func() {
		if statusID != 0 {
			b.deleteMessage(chatID, statusID)
		}
	}()

	path, err := b.downloadFile(ctx, fileID, ext)
	if err != nil {
		log.Printf("failed to fetch media %s: %v", fileID, err)
		b.sendReplyText(chatID, message.MessageID, "❌ Не вдалося отримати файл.")
		return
	}
	defer b.files.Cleanup(path)

	audioPath := path
	if extractAudio {
		audioPath = strings.TrimSuffix(path, filepath.Ext(path)) + ".mp3"
		if err := media.ExtractAudio(ctx, path, audioPath); err != nil {
			log.Printf("audio extraction failed for %s: %v", fileID, err)
			b.sendReplyText(chatID, message.MessageID, "❌ Не вдалося обробити відео.")
			return
		}
		defer b.files.Cleanup(audioPath)
	}

	text := provider.Transcribe(ctx, audioPath, user.Settings.Language)
	if text == "" {
		b.sendReplyText(chatID, message.MessageID, "❌ Не вдалося розшифрувати запис.")
		return
	}

	if err := b.history.Append(ctx, userID, chatID, models.RoleTranscription, text, fileID); err != nil {
		log.Printf("failed to cache transcription: %v", err)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = message.MessageID
	msg.ReplyMarkup = createKeyboard(b.transcriptButtons(user.Settings))
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("failed to send transcription: %v", err)
	}
}

// handlePhoto routes photos: with a caption (and engagement) straight
// to vision, without one to an action-button prompt in private chats.
func (b *Bot) handlePhoto(ctx context.Context, message *tgbotapi.Message, caption string, engaged bool) {
	chatID := message.Chat.ID
	fileID := largestPhoto(message.Photo)

	// Album members carry the caption on one message only.
	if message.MediaGroupID != "" {
		if caption != "" {
			b.albums.Put(message.MediaGroupID, caption)
		} else if cached, ok := b.albums.Get(message.MediaGroupID); ok {
			caption = cached
		}
	}

	if caption != "" && engaged {
		b.handleVision(ctx, message, fileID, caption)
		return
	}
	if !message.Chat.IsPrivate() {
		return
	}

	b.mu.Lock()
	b.lastPhoto[chatID] = fileID
	b.mu.Unlock()

	buttons := [][]MenuButton{
		{{Text: "📝 Описати", CallbackData: callbackPhotoDescribe}, {Text: "🔤 Текст із фото", CallbackData: callbackPhotoOCR}},
	}
	msg := tgbotapi.NewMessage(chatID, "Що зробити з фото?")
	msg.ReplyToMessageID = message.MessageID
	msg.ReplyMarkup = createKeyboard(buttons)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("failed to send photo actions: %v", err)
	}
}

// handleVision downloads the photo and streams the provider's image
// analysis into the chat.
func (b *Bot) handleVision(ctx context.Context, message *tgbotapi.Message, fileID, prompt string) {
	b.runVision(ctx, message.From.ID, message.Chat.ID, message.MessageID, fileID, prompt)
}

func (b *Bot) runVision(ctx context.Context, userID, chatID int64, replyTo int, fileID, prompt string) {
	provider, err := b.selector.Select(ctx, userID, false)
	if err != nil || provider == nil {
		b.sendText(chatID, noAccessText)
		return
	}
	user, err := b.loadUser(ctx, userID)
	if err != nil {
		log.Printf("failed to load user %d: %v", userID, err)
		return
	}

	path, err := b.downloadFile(ctx, fileID, ".jpg")
	if err != nil {
		log.Printf("failed to fetch photo %s: %v", fileID, err)
		b.sendText(chatID, "❌ Не вдалося отримати фото.")
		return
	}
	defer b.files.Cleanup(path)

	if err := b.history.Append(ctx, userID, chatID, models.RoleUser, prompt, fileID); err != nil {
		log.Printf("failed to store vision turn: %v", err)
	}

	stream, err := provider.AnalyzeImage(ctx, path, prompt, nil, user.Settings)
	if err != nil {
		b.sendText(chatID, render.FormatError(err))
		return
	}
	b.finishStream(ctx, userID, chatID, replyTo, stream)
}

func largestPhoto(sizes []tgbotapi.PhotoSize) string {
	best := ""
	bestArea := 0
	for _, s := range sizes {
		if area := s.Width * s.Height; area >= bestArea {
			best, bestArea = s.FileID, area
		}
	}
	return best
}
