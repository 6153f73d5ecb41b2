package bot

import (
	"context"
	"fmt"

	"github.com/example/quizbot/internal/quiz"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botAPI is the subset of *tgbotapi.BotAPI the bot uses
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// Transport delivers quiz messages through the Telegram Bot API.
// Users are addressed by their id, which is also their private chat id.
type Transport struct {
	api botAPI
}

// NewTransport creates a transport on top of an authorized bot
func NewTransport(api botAPI) *Transport {
	return &Transport{api: api}
}

// Send sends text with options rendered as a one-column reply keyboard
func (t *Transport) Send(ctx context.Context, userID int64, text string, options []string) (quiz.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return quiz.MessageRef{}, err
	}

	msg := tgbotapi.NewMessage(userID, text)
	if len(options) > 0 {
		msg.ReplyMarkup = createKeyboard(options)
	}

	sent, err := t.api.Send(msg)
	if err != nil {
		return quiz.MessageRef{}, fmt.Errorf("failed to send message: %w", err)
	}
	ref := quiz.MessageRef{ChatID: userID, MessageID: sent.MessageID}
	if sent.Chat != nil {
		ref.ChatID = sent.Chat.ID
	}
	return ref, nil
}

// Edit replaces the text of an earlier message
func (t *Transport) Edit(ctx context.Context, ref quiz.MessageRef, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text)
	if _, err := t.api.Request(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// createKeyboard puts every option on its own row
func createKeyboard(options []string) tgbotapi.ReplyKeyboardMarkup {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(o)))
	}
	keyboard := tgbotapi.NewReplyKeyboard(rows...)
	keyboard.ResizeKeyboard = true
	return keyboard
}
