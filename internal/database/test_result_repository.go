package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// TestResultRepository handles the append-only results and user_answers tables
type TestResultRepository struct {
	db *sqlx.DB
}

// NewTestResultRepository creates a new repository instance
func NewTestResultRepository(db *sqlx.DB) *TestResultRepository {
	return &TestResultRepository{db: db}
}

// CreateResult inserts the final score of a test
func (r *TestResultRepository) CreateResult(ctx context.Context, result models.Result) error {
	if result.TestDate.IsZero() {
		result.TestDate = time.Now()
	}
	query := r.db.Rebind(`INSERT INTO results (user_id, attempt_id, score, total, test_date) VALUES (?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, result.UserID, result.AttemptID, result.Score, result.Total, result.TestDate)
	if err != nil {
		return fmt.Errorf("failed to create test result: %w", err)
	}
	return nil
}

// CreateAnswer inserts one audit row for a resolved question
func (r *TestResultRepository) CreateAnswer(ctx context.Context, answer models.Answer) error {
	query := r.db.Rebind(`INSERT INTO user_answers (user_id, attempt_id, category, question, user_answer, is_correct)
		VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, query, answer.UserID, answer.AttemptID, answer.Category,
		answer.Question, answer.UserAnswer, answer.IsCorrect)
	if err != nil {
		return fmt.Errorf("failed to create user answer: %w", err)
	}
	return nil
}

// GetResultsByUserID returns all test results for a user, newest first
func (r *TestResultRepository) GetResultsByUserID(ctx context.Context, userID int64) ([]models.Result, error) {
	var results []models.Result
	query := r.db.Rebind(`SELECT id, user_id, attempt_id, score, total, test_date FROM results
		WHERE user_id = ? ORDER BY test_date DESC, id DESC`)
	if err := r.db.SelectContext(ctx, &results, query, userID); err != nil {
		return nil, fmt.Errorf("failed to get test results: %w", err)
	}
	return results, nil
}

// GetAnswersByAttempt returns the audit rows of one test in insertion order
func (r *TestResultRepository) GetAnswersByAttempt(ctx context.Context, attemptID string) ([]models.Answer, error) {
	var answers []models.Answer
	query := r.db.Rebind(`SELECT id, user_id, attempt_id, category, question, user_answer, is_correct FROM user_answers
		WHERE attempt_id = ? ORDER BY id`)
	if err := r.db.SelectContext(ctx, &answers, query, attemptID); err != nil {
		return nil, fmt.Errorf("failed to get user answers: %w", err)
	}
	return answers, nil
}
