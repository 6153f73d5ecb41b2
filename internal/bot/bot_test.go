package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/quizbot/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu       sync.Mutex
	nextID   int
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	fileURL  string
	sendErr  error
	updates  chan tgbotapi.Update
	stopped  bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

func (f *fakeAPI) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	if m, ok := f.sent[len(f.sent)-1].(tgbotapi.MessageConfig); ok {
		return m.Text
	}
	return ""
}

type call struct {
	kind   string
	userID int64
	text   string
}

type fakeConversation struct {
	mu    sync.Mutex
	calls []call
	// startDelay slows Start down so later updates queue behind it
	startDelay time.Duration
}

func (c *fakeConversation) record(kind string, userID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call{kind, userID, text})
	return nil
}

func (c *fakeConversation) Start(_ context.Context, userID int64) error {
	time.Sleep(c.startDelay)
	return c.record("start", userID, "")
}

func (c *fakeConversation) BeginTest(_ context.Context, userID int64) error {
	return c.record("test", userID, "")
}

func (c *fakeConversation) HandleText(_ context.Context, userID int64, text string) error {
	return c.record("text", userID, text)
}

func (c *fakeConversation) snapshot() []call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]call(nil), c.calls...)
}

type fakeQuestions struct {
	created []models.Question
}

func (q *fakeQuestions) CreateQuestion(_ context.Context, question *models.Question) error {
	q.created = append(q.created, *question)
	return nil
}

func (q *fakeQuestions) QuestionExists(context.Context, string, string) (bool, error) {
	return false, nil
}

func (q *fakeQuestions) CountQuestions(context.Context) (int, error) {
	return len(q.created), nil
}

const admin int64 = 7

func newTestBot() (*Bot, *fakeAPI, *fakeConversation, *fakeQuestions) {
	api := newFakeAPI()
	conv := &fakeConversation{}
	questions := &fakeQuestions{}
	cfg := DefaultConfig()
	cfg.AdminUserIDs = []int64{admin}
	return New(api, conv, questions, cfg), api, conv, questions
}

func textUpdate(userID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID, Type: "private"},
		Text: text,
	}
	if len(text) > 0 && text[0] == '/' {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func TestCommandsRouteToConversation(t *testing.T) {
	b, api, conv, _ := newTestBot()
	ctx := context.Background()

	b.handleUpdate(ctx, textUpdate(1, "/start"))
	b.handleUpdate(ctx, textUpdate(1, "/test"))
	b.handleUpdate(ctx, textUpdate(1, "Anna"))
	b.handleUpdate(ctx, textUpdate(1, "/help"))

	assert.Equal(t, []call{{"start", 1, ""}, {"test", 1, ""}, {"text", 1, "Anna"}}, conv.snapshot())
	assert.Equal(t, helpText, api.lastText())

	b.handleUpdate(ctx, textUpdate(1, "/stats"))
	assert.Equal(t, unknownCommandText, api.lastText())
}

func TestGroupChatsIgnored(t *testing.T) {
	b, _, conv, _ := newTestBot()
	u := textUpdate(1, "hello")
	u.Message.Chat.Type = "group"

	b.handleUpdate(context.Background(), u)
	assert.Empty(t, conv.snapshot())
}

func TestImportRequiresAdmin(t *testing.T) {
	b, api, _, _ := newTestBot()

	b.handleUpdate(context.Background(), textUpdate(2, "/import"))
	assert.Equal(t, adminOnlyText, api.lastText())
	assert.False(t, b.isAwaitingUpload(2))
}

func TestImportUpload(t *testing.T) {
	csvBody := "category,difficulty,question,option1,option2,option3,option4,correct_option,role\n" +
		"http,1,Which status means Not Found?,200,301,404,500,3,qa\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	b, api, conv, questions := newTestBot()
	api.fileURL = srv.URL
	ctx := context.Background()

	b.handleUpdate(ctx, textUpdate(admin, "/import"))
	assert.Equal(t, importPromptText, api.lastText())

	upload := textUpdate(admin, "")
	upload.Message.Document = &tgbotapi.Document{FileID: "f1", FileName: "bank.csv", FileSize: len(csvBody)}
	b.handleUpdate(ctx, upload)

	require.Len(t, questions.created, 1)
	assert.Equal(t, "404", questions.created[0].CorrectAnswer())
	assert.Contains(t, api.lastText(), "добавлено 1")
	assert.False(t, b.isAwaitingUpload(admin))
	assert.Empty(t, conv.snapshot())

	// without /import a document is just a message
	b.handleUpdate(ctx, upload)
	assert.Len(t, questions.created, 1)
	assert.Len(t, conv.snapshot(), 1)
}

func TestImportRejectsUnknownFileType(t *testing.T) {
	b, api, _, questions := newTestBot()
	ctx := context.Background()

	b.handleUpdate(ctx, textUpdate(admin, "/import"))
	upload := textUpdate(admin, "")
	upload.Message.Document = &tgbotapi.Document{FileID: "f1", FileName: "bank.pdf"}
	b.handleUpdate(ctx, upload)

	assert.Equal(t, importFileText, api.lastText())
	assert.Empty(t, questions.created)
}

func TestRunDispatchesUntilCancelled(t *testing.T) {
	b, api, conv, _ := newTestBot()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- textUpdate(3, "/start")
	require.Eventually(t, func() bool { return len(conv.snapshot()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	api.mu.Lock()
	assert.True(t, api.stopped)
	assert.Len(t, api.requests, 1, "bot commands registered once")
	api.mu.Unlock()
}

func TestImportCapsDownloadWhenSizeUnknown(t *testing.T) {
	csvBody := "category,difficulty,question,option1,option2,option3,option4,correct_option,role\n" +
		"http,1,Which status means Not Found?,200,301,404,500,3,qa\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	b, api, _, questions := newTestBot()
	b.config.MaxImportSize = 16
	api.fileURL = srv.URL
	ctx := context.Background()

	b.handleUpdate(ctx, textUpdate(admin, "/import"))
	upload := textUpdate(admin, "")
	upload.Message.Document = &tgbotapi.Document{FileID: "f1", FileName: "bank.csv"}
	b.handleUpdate(ctx, upload)

	assert.Equal(t, importTooLargeText, api.lastText())
	assert.Empty(t, questions.created)
}

func TestRunKeepsPerUserOrder(t *testing.T) {
	b, api, conv, _ := newTestBot()
	conv.startDelay = 30 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	api.updates <- textUpdate(4, "/start")
	api.updates <- textUpdate(4, "Anna")
	api.updates <- textUpdate(5, "Boris")

	require.Eventually(t, func() bool { return len(conv.snapshot()) == 3 }, time.Second, 5*time.Millisecond)

	var user4 []call
	for _, c := range conv.snapshot() {
		if c.userID == 4 {
			user4 = append(user4, c)
		}
	}
	assert.Equal(t, []call{{"start", 4, ""}, {"text", 4, "Anna"}}, user4)
	// another user is not held up by user 4's slow update
	assert.Equal(t, call{"text", 5, "Boris"}, conv.snapshot()[0])

	cancel()
	<-done
	b.mu.Lock()
	assert.Empty(t, b.pending)
	b.mu.Unlock()
}

func TestTransport(t *testing.T) {
	api := newFakeAPI()
	tr := NewTransport(api)
	ctx := context.Background()

	ref, err := tr.Send(ctx, 5, "Вопрос 1/20", []string{"a", "b", "c", "d"})
	require.NoError(t, err)
	assert.Equal(t, int64(5), ref.ChatID)
	assert.Equal(t, 1, ref.MessageID)

	msg := api.sent[0].(tgbotapi.MessageConfig)
	kb, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, kb.ResizeKeyboard)
	require.Len(t, kb.Keyboard, 4)
	assert.Equal(t, "c", kb.Keyboard[2][0].Text)

	_, err = tr.Send(ctx, 5, "plain", nil)
	require.NoError(t, err)
	assert.Nil(t, api.sent[1].(tgbotapi.MessageConfig).ReplyMarkup)

	require.NoError(t, tr.Edit(ctx, ref, "Осталось 29 секунд..."))
	edit := api.requests[0].(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, 1, edit.MessageID)
	assert.Equal(t, "Осталось 29 секунд...", edit.Text)

	api.sendErr = errors.New("blocked by user")
	_, err = tr.Send(ctx, 5, "x", nil)
	assert.ErrorIs(t, err, api.sendErr)
}

func TestImportRoles(t *testing.T) {
	assert.Equal(t, []string{"qa", "generic"}, ImportRoles([]string{"qa"}, "generic"))
	assert.Equal(t, []string{"qa", "generic"}, ImportRoles([]string{"qa", "generic"}, "generic"))
}
