package bot

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/example/assistbot/internal/ai"
	"github.com/example/assistbot/internal/config"
	"github.com/example/assistbot/internal/database"
	"github.com/example/assistbot/internal/downloader"
	"github.com/example/assistbot/internal/history"
	"github.com/example/assistbot/internal/media"
	"github.com/example/assistbot/internal/render"
	"github.com/example/assistbot/internal/scheduler"
	"github.com/example/assistbot/internal/vault"
	"github.com/example/assistbot/pkg/models"
)

// MenuButton represents a button in an inline menu.
type MenuButton struct {
	Text         string
	CallbackData string
}

// createKeyboard creates a keyboard from menu buttons.
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, button := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

// UserState tracks an in-progress settings wizard for one user.
type UserState struct {
	State     string
	Timestamp time.Time
}

// Bot is the Main Bot process: the long-poll adapter plus every
// user-facing pipeline. All state that is not in the database lives
// here for the process lifetime.
type Bot struct {
	api *tgbotapi.BotAPI
	cfg *config.Config

	users    *database.UserRepository
	creds    *database.CredentialRepository
	tasks    *database.TaskRepository
	history  *history.Store
	vault    *vault.Vault
	selector *ai.Selector
	renderer *render.Renderer
	sched    *scheduler.Scheduler
	direct   *downloader.Downloader
	files    *media.Workspace

	triggerRe *triggerMatcher

	mu             sync.Mutex
	userStates     map[int64]UserState
	lastPhoto      map[int64]string // chat id → file id of last captionless photo
	forwardedTasks map[int64]bool   // carrier dedup within process lifetime
	albums         *albumCache
}

// New wires the bot from an established database connection and
// loaded config. The scheduler is created here so its notifier can
// send through the bot's adapter.
func New(cfg *config.Config) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN environment variable is not set")
	}
	if database.DB == nil {
		return nil, fmt.Errorf("database connection is not established")
	}

	v, err := vault.New(cfg.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vault: %w", err)
	}

	files, err := media.NewWorkspace(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare temp workspace: %w", err)
	}

	users := database.NewUserRepository(cfg.Timezone)
	creds := database.NewCredentialRepository()

	b := &Bot{
		cfg:            cfg,
		users:          users,
		creds:          creds,
		tasks:          database.NewTaskRepository(),
		history:        history.New(database.NewMessageRepository(), users),
		vault:          v,
		selector:       ai.NewSelector(users, creds, v, cfg.OpenAIKey, cfg.GoogleKey),
		direct:         downloader.New(cfg.TempDir),
		files:          files,
		userStates:     make(map[int64]UserState),
		lastPhoto:      make(map[int64]string),
		forwardedTasks: make(map[int64]bool),
		albums:         newAlbumCache(),
	}
	b.renderer = render.New(b)
	b.sched = scheduler.New(database.NewReminderRepository(), b)
	return b, nil
}

// Start connects to Telegram, restores persisted reminders and drains
// the update channel until ctx is cancelled. Each update is handled in
// its own goroutine; Telegram delivers updates for one chat in order
// and the handlers themselves are short or self-contained.
func (b *Bot) Start(ctx context.Context) error {
	api, err := tgbotapi.NewBotAPI(b.cfg.BotToken)
	if err != nil {
		return fmt.Errorf("failed to create bot api: %w", err)
	}
	b.api = api
	b.triggerRe = newTriggerMatcher(api.Self.UserName)
	log.Printf("Authorized on account %s", api.Self.UserName)

	if err := b.sched.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore reminders: %w", err)
	}
	b.sched.Start()
	defer b.sched.Stop()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// SendReminder implements scheduler.Notifier.
func (b *Bot) SendReminder(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	return nil
}

// SendReply implements render.Sender.
func (b *Bot) SendReply(ctx context.Context, chatID int64, replyTo int, text string, htmlMode bool) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if replyTo != 0 {
		msg.ReplyToMessageID = replyTo
	}
	if htmlMode {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send message: %w", err)
	}
	return sent.MessageID, nil
}

// Edit implements render.Sender.
func (b *Bot) Edit(ctx context.Context, chatID int64, messageID int, text string, htmlMode bool) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if htmlMode {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := b.api.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// Delete implements render.Sender.
func (b *Bot) Delete(ctx context.Context, chatID int64, messageID int) error {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// sendText sends a plain message, logging instead of propagating the
// error: these are fire-and-forget notices.
func (b *Bot) sendText(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Printf("failed to send message to chat %d: %v", chatID, err)
	}
}

func (b *Bot) sendReplyText(chatID int64, replyTo int, text string) int {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	sent, err := b.api.Send(msg)
	if err != nil {
		log.Printf("failed to send reply to chat %d: %v", chatID, err)
		return 0
	}
	return sent.MessageID
}

func (b *Bot) sendKeyboard(chatID int64, text string, buttons [][]MenuButton) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard(buttons)
	if _, err := b.api.Send(msg); err != nil {
		log.Printf("failed to send menu to chat %d: %v", chatID, err)
	}
}

func (b *Bot) editKeyboard(chatID int64, messageID int, text string, buttons [][]MenuButton) {
	keyboard := createKeyboard(buttons)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard)
	if _, err := b.api.Send(edit); err != nil {
		log.Printf("failed to edit menu in chat %d: %v", chatID, err)
	}
}

func (b *Bot) deleteMessage(chatID int64, messageID int) {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		log.Printf("failed to delete message %d in chat %d: %v", messageID, chatID, err)
	}
}

// downloadFile fetches a Telegram file into the temp workspace and
// returns the local path. The caller is responsible for cleanup.
func (b *Bot) downloadFile(ctx context.Context, fileID, ext string) (string, error) {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("failed to resolve file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.Link(b.api.Token), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("file download returned status %d", resp.StatusCode)
	}

	path := b.files.Path(fileID, ext)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	return path, nil
}

// uploadFile sends a downloaded file back to the chat as a reply,
// as a video or a generic document depending on kind.
func (b *Bot) uploadFile(chatID int64, replyTo int, path, kind, title string) error {
	var msg tgbotapi.Chattable
	switch kind {
	case "video":
		video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
		video.ReplyToMessageID = replyTo
		video.Caption = title
		msg = video
	default:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
		doc.ReplyToMessageID = replyTo
		doc.Caption = title
		msg = doc
	}
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// loadUser reads a user and derives the read-time-only flags: search
// access is granted to admins and to users with a personal credential.
func (b *Bot) loadUser(ctx context.Context, userID int64) (*models.User, error) {
	user, err := b.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if b.cfg.IsAdmin(userID) {
		user.Settings.AllowSearch = true
	} else if has, err := b.creds.HasAny(ctx, userID); err == nil && has {
		user.Settings.AllowSearch = true
	}
	return user, nil
}

func (b *Bot) setState(userID int64, state string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if state == "" {
		delete(b.userStates, userID)
		return
	}
	b.userStates[userID] = UserState{State: state, Timestamp: time.Now()}
}

func (b *Bot) getState(userID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.userStates[userID]
	return state.State, ok
}
