package quiz

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/quizbot/internal/countdown"
	"github.com/example/quizbot/pkg/models"
	"github.com/google/uuid"
)

// MessageRef identifies a sent message so it can be edited later
type MessageRef struct {
	ChatID    int64
	MessageID int
}

// Transport is the chat side of the bot
type Transport interface {
	// Send delivers text to the user, optionally with quick-reply buttons
	Send(ctx context.Context, userID int64, text string, options []string) (MessageRef, error)
	// Edit replaces the text of a message sent earlier
	Edit(ctx context.Context, ref MessageRef, text string) error
}

// Store is everything the engine reads and writes durably
type Store interface {
	QuestionSource
	FindUser(ctx context.Context, userID int64) (*models.User, error)
	InsertUser(ctx context.Context, user models.User) error
	InsertResult(ctx context.Context, result models.Result) error
	InsertAnswer(ctx context.Context, answer models.Answer) error
}

// Engine is the per-user registration and test state machine.
// Events for one user are serialized on that user's session lock; events
// for different users run in parallel.
type Engine struct {
	cfg       Config
	store     Store
	transport Transport
	selector  *Selector
	rng       *Rand
	sessions  *Registry

	// ctx outlives single updates; timer-driven transitions run under it
	ctx    context.Context
	cancel context.CancelFunc

	now          func() time.Time
	newAttemptID func() string
}

// NewEngine creates an engine with its own session registry
func NewEngine(cfg Config, store Store, transport Transport) *Engine {
	rng := NewRand(cfg.Seed)
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:          cfg,
		store:        store,
		transport:    transport,
		selector:     NewSelector(store, cfg, rng),
		rng:          rng,
		sessions:     NewRegistry(),
		ctx:          ctx,
		cancel:       cancel,
		now:          time.Now,
		newAttemptID: uuid.NewString,
	}
}

// Sessions exposes the registry for inspection
func (e *Engine) Sessions() *Registry {
	return e.sessions
}

// Phase reports where the user currently is
func (e *Engine) Phase(ctx context.Context, userID int64) (Phase, error) {
	if s := e.sessions.Get(userID); s != nil {
		s.mu.Lock()
		p, live := s.Phase, !s.destroyed
		s.mu.Unlock()
		if live && p.keepsSession() {
			return p, nil
		}
	}
	user, err := e.store.FindUser(ctx, userID)
	if err != nil {
		return PhaseUnregistered, err
	}
	if user == nil {
		return PhaseUnregistered, nil
	}
	return PhaseIdle, nil
}

// Start handles /start: greets a registered user or begins registration
func (e *Engine) Start(ctx context.Context, userID int64) error {
	s := e.sessions.acquire(userID)
	defer e.release(s)

	if s.Phase == PhaseInTest {
		e.send(ctx, userID, msgTestInProgress, nil)
		return nil
	}

	user, err := e.store.FindUser(ctx, userID)
	if err != nil {
		e.send(ctx, userID, msgFailure, nil)
		return fmt.Errorf("start: %w", err)
	}
	if user != nil {
		s.Phase = PhaseIdle
		e.send(ctx, userID, fmt.Sprintf(msgWelcomeBack, user.Name, user.Role), e.startOptions())
		return nil
	}

	s.Phase = PhaseAwaitingName
	s.TempName = ""
	e.send(ctx, userID, msgAskName, nil)
	return nil
}

// BeginTest handles /test and the start button
func (e *Engine) BeginTest(ctx context.Context, userID int64) error {
	s := e.sessions.acquire(userID)
	defer e.release(s)

	if s.Phase == PhaseInTest {
		e.send(ctx, userID, msgTestInProgress, nil)
		return nil
	}

	user, err := e.store.FindUser(ctx, userID)
	if err != nil {
		e.send(ctx, userID, msgFailure, nil)
		return fmt.Errorf("begin test: %w", err)
	}
	if user == nil {
		e.send(ctx, userID, msgRegisterFirst, nil)
		return nil
	}
	return e.beginTest(ctx, s, user)
}

// HandleText handles any non-command text from the user
func (e *Engine) HandleText(ctx context.Context, userID int64, text string) error {
	s := e.sessions.acquire(userID)
	defer e.release(s)

	switch s.Phase {
	case PhaseAwaitingName:
		return e.receiveName(ctx, s, text)
	case PhaseAwaitingRole:
		return e.receiveRole(ctx, s, text)
	case PhaseInTest:
		return e.receiveAnswer(ctx, s, text)
	}

	user, err := e.store.FindUser(ctx, userID)
	if err != nil {
		e.send(ctx, userID, msgFailure, nil)
		return fmt.Errorf("handle text: %w", err)
	}
	if user == nil {
		e.send(ctx, userID, msgNameThenRole, nil)
		return nil
	}

	s.Phase = PhaseIdle
	if strings.TrimSpace(text) == StartTestLabel {
		return e.beginTest(ctx, s, user)
	}
	e.send(ctx, userID, msgUnrecognized, e.startOptions())
	return nil
}

// SweepStale drops registrations abandoned for longer than RegistrationTTL
func (e *Engine) SweepStale() int {
	cutoff := e.now().Add(-e.cfg.RegistrationTTL)
	return e.sessions.sweep(func(s *Session) bool {
		return (s.Phase == PhaseAwaitingName || s.Phase == PhaseAwaitingRole) && s.touched.Before(cutoff)
	})
}

// Close stops every countdown and drops all sessions. Unfinished tests are
// not scored.
func (e *Engine) Close() {
	e.cancel()
	for _, s := range e.sessions.snapshot() {
		s.mu.Lock()
		if !s.destroyed {
			s.stopTimer()
			e.sessions.Destroy(s)
		}
		s.mu.Unlock()
	}
}

func (e *Engine) receiveName(ctx context.Context, s *Session, text string) error {
	name := strings.TrimSpace(text)
	if name == "" {
		e.send(ctx, s.UserID, msgAskName, nil)
		return nil
	}

	s.TempName = name
	s.Phase = PhaseAwaitingRole
	e.send(ctx, s.UserID, fmt.Sprintf(msgAskRole, strings.Join(e.cfg.Roles, ", ")), e.cfg.Roles)
	log.Printf("[REGISTER] user_id=%d, name=%s, asking for role", s.UserID, name)
	return nil
}

func (e *Engine) receiveRole(ctx context.Context, s *Session, text string) error {
	role := strings.ToLower(strings.TrimSpace(text))
	if !e.validRole(role) {
		e.send(ctx, s.UserID, fmt.Sprintf(msgUnknownRole, strings.Join(e.cfg.Roles, ", ")), e.cfg.Roles)
		return nil
	}

	user := models.User{UserID: s.UserID, Name: s.TempName, Role: role}
	if err := e.store.InsertUser(ctx, user); err != nil {
		e.send(ctx, s.UserID, msgFailure, e.cfg.Roles)
		return fmt.Errorf("register user %d: %w", s.UserID, err)
	}

	s.TempName = ""
	s.Phase = PhaseIdle
	log.Printf("[REGISTER] user_id=%d, %s registered with role %s", user.UserID, user.Name, user.Role)
	e.send(ctx, s.UserID, fmt.Sprintf(msgRegistered, user.Name, user.Role), e.startOptions())
	return nil
}

func (e *Engine) receiveAnswer(ctx context.Context, s *Session, text string) error {
	if s.outstanding() && s.hasOption(text) {
		return e.resolve(ctx, s, text, false)
	}
	if strings.TrimSpace(text) == StartTestLabel {
		e.send(ctx, s.UserID, msgTestInProgress, nil)
		return nil
	}
	if s.outstanding() {
		e.send(ctx, s.UserID, msgUseButtons, s.Options)
		return nil
	}
	e.send(ctx, s.UserID, msgUnrecognized, nil)
	return nil
}

func (e *Engine) beginTest(ctx context.Context, s *Session, user *models.User) error {
	role := user.Role
	if role == "" {
		role = e.cfg.FallbackRole
	}
	log.Printf("[TEST] user_id=%d, name=%s, role=%s => selecting %d questions", user.UserID, user.Name, role, e.cfg.BatchSize)

	batch, err := e.selector.SelectBatch(ctx, role)
	if err != nil {
		s.Phase = PhaseIdle
		e.send(ctx, s.UserID, msgFailure, e.startOptions())
		return fmt.Errorf("begin test: %w", err)
	}
	if len(batch) == 0 {
		s.Phase = PhaseIdle
		e.send(ctx, s.UserID, msgNoQuestions, e.startOptions())
		return nil
	}

	s.resetTest()
	s.Phase = PhaseInTest
	s.Role = role
	s.Batch = batch
	s.AttemptID = e.newAttemptID()
	log.Printf("[TEST] user_id=%d, got %d questions, attempt %s", s.UserID, len(batch), s.AttemptID)

	return e.askNext(ctx, s)
}

// askNext dispatches the next question or finishes the test.
// The previous countdown is always stopped and joined first.
func (e *Engine) askNext(ctx context.Context, s *Session) error {
	s.stopTimer()

	if s.Cursor >= len(s.Batch) {
		return e.finish(ctx, s)
	}

	q := s.Batch[s.Cursor]
	s.Cursor++
	s.generation++

	opts := q.Options()
	e.rng.Shuffle(len(opts), func(i, j int) {
		opts[i], opts[j] = opts[j], opts[i]
	})
	s.Options = opts
	s.Correct = q.CorrectAnswer()
	s.Answered = false

	text := fmt.Sprintf(msgQuestion, s.Cursor, len(s.Batch), q.Text, seconds(e.cfg.QuestionTimeout))
	e.send(ctx, s.UserID, text, opts)

	ref, err := e.transport.Send(ctx, s.UserID, remainingText(e.cfg.QuestionTimeout), nil)
	if err != nil {
		log.Printf("Error sending countdown to user %d: %v", s.UserID, err)
		ref = MessageRef{}
	}
	s.timer = e.arm(s, s.generation, ref)
	return nil
}

func (e *Engine) arm(s *Session, generation uint64, ref MessageRef) *countdown.Timer {
	var onTick countdown.TickFunc
	if ref.MessageID != 0 {
		onTick = func(remaining time.Duration) {
			// The countdown message may be gone; only expiry matters.
			_ = e.transport.Edit(e.ctx, ref, remainingText(remaining))
		}
	}
	return countdown.Start(e.cfg.QuestionTimeout, e.cfg.TickInterval, onTick, func() {
		e.expire(s, generation)
	})
}

// expire resolves the question armed with generation on session s as
// unanswered, unless a reply got there first. Generations restart with every
// session, so a timer only ever touches the session that armed it.
func (e *Engine) expire(s *Session, generation uint64) {
	s.mu.Lock()
	defer e.release(s)

	if s.destroyed || s.generation != generation || !s.outstanding() {
		return
	}

	log.Printf("[TIMEOUT] user_id=%d, question=%q", s.UserID, truncate(s.current().Text, 30))
	if err := e.resolve(e.ctx, s, "", true); err != nil {
		log.Printf("Error resolving timed out question for user %d: %v", s.UserID, err)
	}
}

// resolve is the single transition for a reply or an expiry. The answered
// flag is set first so whichever comes second is a no-op.
func (e *Engine) resolve(ctx context.Context, s *Session, reply string, timedOut bool) error {
	s.Answered = true
	s.stopTimer()

	q := s.current()
	answer := models.Answer{
		UserID:    s.UserID,
		AttemptID: s.AttemptID,
		Category:  q.Category,
		Question:  q.Text,
	}
	if timedOut {
		answer.UserAnswer = TimeoutAnswer
	} else {
		answer.UserAnswer = reply
		answer.IsCorrect = reply == s.Correct
	}

	if err := e.store.InsertAnswer(ctx, answer); err != nil {
		e.abort(ctx, s)
		return fmt.Errorf("record answer: %w", err)
	}

	switch {
	case timedOut:
		e.send(ctx, s.UserID, msgTimeout, nil)
	case answer.IsCorrect:
		s.Score++
		e.send(ctx, s.UserID, msgCorrect, nil)
	default:
		e.send(ctx, s.UserID, fmt.Sprintf(msgWrong, s.Correct), nil)
	}
	if !timedOut {
		log.Printf("[ANSWER] user_id=%d, chosen=%q, correct=%q, result=%t", s.UserID, reply, s.Correct, answer.IsCorrect)
	}

	return e.askNext(ctx, s)
}

func (e *Engine) finish(ctx context.Context, s *Session) error {
	result := models.Result{
		UserID:    s.UserID,
		AttemptID: s.AttemptID,
		Score:     s.Score,
		Total:     len(s.Batch),
		TestDate:  e.now(),
	}
	s.resetTest()
	s.Phase = PhaseIdle

	if err := e.store.InsertResult(ctx, result); err != nil {
		e.send(ctx, s.UserID, msgFailure, e.startOptions())
		return fmt.Errorf("record result: %w", err)
	}

	e.send(ctx, s.UserID, fmt.Sprintf(msgFinished, result.Score, result.Total), e.startOptions())
	log.Printf("[TEST_END] user_id=%d, score=%d/%d, attempt %s", result.UserID, result.Score, result.Total, result.AttemptID)
	return nil
}

// abort drops a test after a storage failure and returns the user to idle
func (e *Engine) abort(ctx context.Context, s *Session) {
	log.Printf("[TEST_ABORT] user_id=%d, attempt %s", s.UserID, s.AttemptID)
	s.resetTest()
	s.Phase = PhaseIdle
	e.send(ctx, s.UserID, msgFailure, e.startOptions())
}

// release records activity, drops sessions with nothing left to track and
// unlocks.
func (e *Engine) release(s *Session) {
	s.touched = e.now()
	if !s.destroyed && !s.Phase.keepsSession() {
		e.sessions.Destroy(s)
	}
	s.mu.Unlock()
}

func (e *Engine) send(ctx context.Context, userID int64, text string, options []string) {
	if _, err := e.transport.Send(ctx, userID, text, options); err != nil {
		log.Printf("Error sending message to user %d: %v", userID, err)
	}
}

func (e *Engine) startOptions() []string {
	return []string{StartTestLabel}
}

func (e *Engine) validRole(role string) bool {
	for _, r := range e.cfg.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
