package bot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"

	"github.com/example/quizbot/internal/excel"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Conversation is the quiz state machine driven by incoming messages
type Conversation interface {
	Start(ctx context.Context, userID int64) error
	BeginTest(ctx context.Context, userID int64) error
	HandleText(ctx context.Context, userID int64, text string) error
}

// QuestionStore receives imported questions
type QuestionStore interface {
	excel.QuestionWriter
	CountQuestions(ctx context.Context) (int, error)
}

const (
	helpText = "Бот для тестирования знаний.\n\n" +
		"/start - регистрация или приветствие\n" +
		"/test - начать тест из 20 вопросов\n" +
		"/help - эта справка\n\n" +
		"На каждый вопрос даётся 30 секунд. Отвечайте кнопками под сообщением."
	adminOnlyText      = "Эта команда доступна только администраторам."
	unknownCommandText = "Неизвестная команда. Используйте /help."
	importPromptText   = "Отправьте файл .csv или .xlsx с колонками: category, difficulty, question, option1, option2, option3, option4, correct_option, role."
	importFileText     = "Ожидается документ .csv или .xlsx."
	importTooLargeText = "Файл слишком большой."
	importFailedText   = "Не удалось загрузить вопросы: %v"
	importDoneText     = "Импорт завершён: добавлено %d, пропущено %d, ошибок %d. Всего вопросов в базе: %d."
)

var errImportTooLarge = errors.New("import file exceeds size limit")

// maxReportedErrors caps the row errors echoed back after an import
const maxReportedErrors = 5

// Bot represents the Telegram bot application
type Bot struct {
	api          botAPI
	conversation Conversation
	questions    QuestionStore
	config       *BotConfig
	httpClient   *http.Client

	mu                 sync.Mutex
	awaitingFileUpload map[int64]bool
	adminUserIDs       map[int64]bool
	// pending holds updates not yet handled, per user. A key is present
	// while a worker for that user is draining it.
	pending map[int64][]tgbotapi.Update

	wg sync.WaitGroup
}

// New creates a bot dispatching updates to conversation
func New(api botAPI, conversation Conversation, questions QuestionStore, config *BotConfig) *Bot {
	if config == nil {
		config = DefaultConfig()
	}
	b := &Bot{
		api:                api,
		conversation:       conversation,
		questions:          questions,
		config:             config,
		httpClient:         http.DefaultClient,
		awaitingFileUpload: make(map[int64]bool),
		adminUserIDs:       make(map[int64]bool),
		pending:            make(map[int64][]tgbotapi.Update),
	}
	for _, id := range config.AdminUserIDs {
		b.adminUserIDs[id] = true
	}
	return b
}

// Run polls for updates until ctx is cancelled. Users are served in
// parallel, each user's updates in the order they arrived; Run waits for
// in-flight updates before returning.
func (b *Bot) Run(ctx context.Context) error {
	commands := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Регистрация"},
		tgbotapi.BotCommand{Command: "test", Description: "Начать тест"},
		tgbotapi.BotCommand{Command: "help", Description: "Справка"},
	)
	if _, err := b.api.Request(commands); err != nil {
		log.Printf("Warning: failed to register bot commands: %v", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.config.PollTimeout
	updates := b.api.GetUpdatesChan(updateConfig)

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(ctx, update)
		}
	}
}

// dispatch queues update behind earlier updates from the same user and
// starts a worker for that user if none is running.
func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	userID := update.Message.From.ID

	b.mu.Lock()
	queue, running := b.pending[userID]
	b.pending[userID] = append(queue, update)
	b.mu.Unlock()
	if running {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.drain(ctx, userID)
	}()
}

func (b *Bot) drain(ctx context.Context, userID int64) {
	for {
		b.mu.Lock()
		queue := b.pending[userID]
		if len(queue) == 0 {
			delete(b.pending, userID)
			b.mu.Unlock()
			return
		}
		next := queue[0]
		b.pending[userID] = queue[1:]
		b.mu.Unlock()

		b.handleUpdate(ctx, next)
	}
}

func (b *Bot) isAdmin(userID int64) bool {
	return b.adminUserIDs[userID]
}

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	message := update.Message
	if message == nil || message.From == nil || message.Chat == nil {
		return
	}
	if !message.Chat.IsPrivate() {
		return
	}
	userID := message.From.ID

	var err error
	switch {
	case message.IsCommand():
		err = b.handleCommand(ctx, message)
	case message.Document != nil && b.isAwaitingUpload(userID):
		err = b.handleImportUpload(ctx, message)
	default:
		err = b.conversation.HandleText(ctx, userID, message.Text)
	}
	if err != nil {
		log.Printf("Error handling message from user %d: %v", userID, err)
	}
}

func (b *Bot) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	switch message.Command() {
	case "start":
		return b.conversation.Start(ctx, userID)
	case "test":
		return b.conversation.BeginTest(ctx, userID)
	case "help":
		return b.reply(message.Chat.ID, helpText)
	case "import":
		if !b.isAdmin(userID) {
			return b.reply(message.Chat.ID, adminOnlyText)
		}
		b.setAwaitingUpload(userID, true)
		return b.reply(message.Chat.ID, importPromptText)
	}
	return b.reply(message.Chat.ID, unknownCommandText)
}

func (b *Bot) isAwaitingUpload(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.awaitingFileUpload[userID]
}

func (b *Bot) setAwaitingUpload(userID int64, awaiting bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if awaiting {
		b.awaitingFileUpload[userID] = true
	} else {
		delete(b.awaitingFileUpload, userID)
	}
}

// handleImportUpload loads an uploaded question file into the bank
func (b *Bot) handleImportUpload(ctx context.Context, message *tgbotapi.Message) error {
	userID := message.From.ID
	doc := message.Document
	b.setAwaitingUpload(userID, false)

	format, err := excel.FormatFromName(doc.FileName)
	if err != nil {
		return b.reply(message.Chat.ID, importFileText)
	}
	if b.config.MaxImportSize > 0 && doc.FileSize > b.config.MaxImportSize {
		return b.reply(message.Chat.ID, importTooLargeText)
	}

	result, err := b.importDocument(ctx, doc.FileID, format)
	if errors.Is(err, errImportTooLarge) {
		return b.reply(message.Chat.ID, importTooLargeText)
	}
	if err != nil {
		_ = b.reply(message.Chat.ID, fmt.Sprintf(importFailedText, err))
		return fmt.Errorf("import %s: %w", doc.FileName, err)
	}

	total, err := b.questions.CountQuestions(ctx)
	if err != nil {
		log.Printf("Error counting questions: %v", err)
	}
	log.Printf("[IMPORT] user_id=%d, file=%s, created=%d, skipped=%d, errors=%d",
		userID, doc.FileName, result.Created, result.Skipped, len(result.Errors))

	text := fmt.Sprintf(importDoneText, result.Created, result.Skipped, len(result.Errors), total)
	for i, e := range result.Errors {
		if i == maxReportedErrors {
			text += fmt.Sprintf("\n... и ещё %d", len(result.Errors)-maxReportedErrors)
			break
		}
		text += "\n" + e
	}
	return b.reply(message.Chat.ID, text)
}

func (b *Bot) importDocument(ctx context.Context, fileID string, format excel.Format) (*excel.ImportResult, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download file: %s", resp.Status)
	}

	var body io.Reader = resp.Body
	if limit := b.config.MaxImportSize; limit > 0 {
		// The size Telegram reports may be missing, so cap the download too.
		data, err := io.ReadAll(io.LimitReader(resp.Body, int64(limit)+1))
		if err != nil {
			return nil, fmt.Errorf("failed to download file: %w", err)
		}
		if len(data) > limit {
			return nil, errImportTooLarge
		}
		body = bytes.NewReader(data)
	}

	config := excel.DefaultImportConfig()
	config.Roles = b.config.ImportRoles
	return excel.Import(ctx, b.questions, body, format, config)
}

func (b *Bot) reply(chatID int64, text string) error {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// ImportRoles lists the roles an import may use: the selectable ones plus
// the fallback pool.
func ImportRoles(roles []string, fallback string) []string {
	out := append([]string(nil), roles...)
	if fallback == "" {
		return out
	}
	for _, r := range roles {
		if r == fallback {
			return out
		}
	}
	return append(out, fallback)
}
