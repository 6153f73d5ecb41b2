package quiz

import (
	"sync"
	"time"

	"github.com/example/quizbot/internal/countdown"
	"github.com/example/quizbot/pkg/models"
)

// Phase is where a user is in the registration/test flow
type Phase int

const (
	PhaseUnregistered Phase = iota
	PhaseAwaitingName
	PhaseAwaitingRole
	PhaseIdle
	PhaseInTest
)

func (p Phase) String() string {
	switch p {
	case PhaseUnregistered:
		return "unregistered"
	case PhaseAwaitingName:
		return "awaiting_name"
	case PhaseAwaitingRole:
		return "awaiting_role"
	case PhaseIdle:
		return "idle"
	case PhaseInTest:
		return "in_test"
	}
	return "unknown"
}

// keepsSession reports whether a session in this phase outlives the event
// that touched it. Idle and unregistered users have no session.
func (p Phase) keepsSession() bool {
	return p == PhaseAwaitingName || p == PhaseAwaitingRole || p == PhaseInTest
}

// Session is the transient per-user state. All fields are guarded by mu.
type Session struct {
	mu sync.Mutex

	UserID   int64
	Phase    Phase
	TempName string

	Role      string
	AttemptID string
	Score     int
	Batch     []models.Question
	// Cursor counts dispatched questions; Batch[Cursor-1] is the current one.
	Cursor int
	// Options are the shuffled option texts of the current question.
	Options  []string
	Correct  string
	Answered bool

	generation uint64
	timer      *countdown.Timer
	touched    time.Time
	destroyed  bool
}

// outstanding reports whether a dispatched question still awaits a reply or expiry
func (s *Session) outstanding() bool {
	return s.Phase == PhaseInTest && s.Cursor > 0 && s.Options != nil && !s.Answered
}

func (s *Session) current() models.Question {
	return s.Batch[s.Cursor-1]
}

func (s *Session) hasOption(text string) bool {
	for _, o := range s.Options {
		if o == text {
			return true
		}
	}
	return false
}

// stopTimer cancels the live countdown, if any, and waits for it to exit
func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) resetTest() {
	s.stopTimer()
	s.AttemptID = ""
	s.Score = 0
	s.Batch = nil
	s.Cursor = 0
	s.Options = nil
	s.Correct = ""
	s.Answered = false
}
