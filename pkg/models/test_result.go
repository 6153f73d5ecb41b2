package models

import "time"

// Result is the final score of one completed test
type Result struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	AttemptID string    `json:"attempt_id" db:"attempt_id"`
	Score     int       `json:"score" db:"score"`
	Total     int       `json:"total" db:"total"` // Number of questions in the batch
	TestDate  time.Time `json:"test_date" db:"test_date"`
}

// Answer is one audit row per resolved question
type Answer struct {
	ID         int64  `json:"id" db:"id"`
	UserID     int64  `json:"user_id" db:"user_id"`
	AttemptID  string `json:"attempt_id" db:"attempt_id"`
	Category   string `json:"category" db:"category"`
	Question   string `json:"question" db:"question"`
	UserAnswer string `json:"user_answer" db:"user_answer"`
	IsCorrect  bool   `json:"is_correct" db:"is_correct"`
}
