package quiz

import (
	"time"
)

// Config represents the configuration of a quiz engine
type Config struct {
	// Number of questions in one test
	BatchSize int
	// Questions taken per difficulty band before backfill
	PerDifficulty int
	// Difficulty bands, easiest first
	Difficulties []int
	// Role whose questions fill a band when the user's role runs short
	FallbackRole string
	// Roles a user may pick during registration
	Roles []string
	// Time a user has to answer one question
	QuestionTimeout time.Duration
	// How often the visible countdown is refreshed
	TickInterval time.Duration
	// Unfinished registrations older than this are dropped by the sweeper
	RegistrationTTL time.Duration
	// Random seed; 0 seeds from the clock
	Seed int64
}

// DefaultConfig returns the default quiz configuration
func DefaultConfig() Config {
	return Config{
		BatchSize:       20,
		PerDifficulty:   5,
		Difficulties:    []int{1, 2, 3},
		FallbackRole:    "generic",
		Roles:           []string{"qa", "sa", "dev_back", "dev_front", "other"},
		QuestionTimeout: 30 * time.Second,
		TickInterval:    time.Second,
		RegistrationTTL: time.Hour,
	}
}
