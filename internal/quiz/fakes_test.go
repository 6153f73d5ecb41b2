package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/example/quizbot/pkg/models"
)

var errStoreDown = errors.New("store is down")

// memStore is an in-memory Store
type memStore struct {
	mu        sync.Mutex
	users     map[int64]models.User
	questions []models.Question
	results   []models.Result
	answers   []models.Answer

	failFind       bool
	failQuery      bool
	failAnswers    bool
	failInsertUser bool
	failResults    bool
}

func newMemStore() *memStore {
	return &memStore{users: make(map[int64]models.User)}
}

func (m *memStore) addQuestion(role string, difficulty int) models.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.questions) + 1)
	q := models.Question{
		ID:            id,
		Category:      "cat-" + role,
		Difficulty:    difficulty,
		Text:          fmt.Sprintf("question %d", id),
		Option1:       fmt.Sprintf("q%d-a", id),
		Option2:       fmt.Sprintf("q%d-b", id),
		Option3:       fmt.Sprintf("q%d-c", id),
		Option4:       fmt.Sprintf("q%d-d", id),
		CorrectOption: int(id%4) + 1,
		Role:          role,
	}
	m.questions = append(m.questions, q)
	return q
}

func (m *memStore) addQuestions(role string, difficulty, n int) {
	for i := 0; i < n; i++ {
		m.addQuestion(role, difficulty)
	}
}

func (m *memStore) byText(text string) (models.Question, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, q := range m.questions {
		if q.Text == text {
			return q, true
		}
	}
	return models.Question{}, false
}

func (m *memStore) FindUser(_ context.Context, userID int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFind {
		return nil, errStoreDown
	}
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *memStore) InsertUser(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertUser {
		return errStoreDown
	}
	m.users[user.UserID] = user
	return nil
}

func (m *memStore) QueryQuestions(_ context.Context, f models.QuestionFilter) ([]models.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failQuery {
		return nil, errStoreDown
	}
	excluded := make(map[int64]bool, len(f.ExcludeIDs))
	for _, id := range f.ExcludeIDs {
		excluded[id] = true
	}
	var out []models.Question
	for _, q := range m.questions {
		if f.Role != nil && q.Role != *f.Role {
			continue
		}
		if f.Difficulty != nil && q.Difficulty != *f.Difficulty {
			continue
		}
		if excluded[q.ID] {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

func (m *memStore) InsertResult(_ context.Context, result models.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failResults {
		return errStoreDown
	}
	m.results = append(m.results, result)
	return nil
}

func (m *memStore) InsertAnswer(_ context.Context, answer models.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAnswers {
		return errStoreDown
	}
	m.answers = append(m.answers, answer)
	return nil
}

func (m *memStore) answerRows() []models.Answer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Answer(nil), m.answers...)
}

func (m *memStore) resultRows() []models.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Result(nil), m.results...)
}

type sentMessage struct {
	UserID  int64
	Ref     MessageRef
	Text    string
	Options []string
}

// recordingTransport records everything the engine sends
type recordingTransport struct {
	mu     sync.Mutex
	nextID int
	sent   []sentMessage
	edits  map[int]int
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{edits: make(map[int]int)}
}

func (r *recordingTransport) Send(_ context.Context, userID int64, text string, options []string) (MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	ref := MessageRef{ChatID: userID, MessageID: r.nextID}
	r.sent = append(r.sent, sentMessage{UserID: userID, Ref: ref, Text: text, Options: append([]string(nil), options...)})
	return ref, nil
}

func (r *recordingTransport) Edit(_ context.Context, ref MessageRef, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits[ref.MessageID]++
	return nil
}

func (r *recordingTransport) last() sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return sentMessage{}
	}
	return r.sent[len(r.sent)-1]
}

func (r *recordingTransport) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, m := range r.sent {
		out = append(out, m.Text)
	}
	return out
}

// questions returns the question messages in the order they were sent
func (r *recordingTransport) questions() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []sentMessage
	for _, m := range r.sent {
		if strings.HasPrefix(m.Text, "Вопрос ") {
			out = append(out, m)
		}
	}
	return out
}

func (r *recordingTransport) editCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.edits {
		n += c
	}
	return n
}

// questionText extracts the prompt from a question message
func questionText(m sentMessage) string {
	lines := strings.Split(m.Text, "\n")
	if len(lines) < 3 {
		return ""
	}
	return lines[2]
}
