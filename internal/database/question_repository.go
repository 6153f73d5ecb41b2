package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

const questionColumns = `id, category, difficulty, question, option1, option2, option3, option4, correct_option, role`

// QuestionRepository handles database operations for the question bank
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository creates a new repository instance
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Query returns questions matching the filter, ordered by id.
// Randomization is left to the caller.
func (r *QuestionRepository) Query(ctx context.Context, f models.QuestionFilter) ([]models.Question, error) {
	var conds []string
	var args []interface{}

	if f.Role != nil {
		conds = append(conds, "role = ?")
		args = append(args, *f.Role)
	}
	if f.Difficulty != nil {
		conds = append(conds, "difficulty = ?")
		args = append(args, *f.Difficulty)
	}
	if len(f.ExcludeIDs) > 0 {
		conds = append(conds, "id NOT IN (?)")
		args = append(args, f.ExcludeIDs)
	}

	query := "SELECT " + questionColumns + " FROM questions"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id"

	if len(f.ExcludeIDs) > 0 {
		var err error
		query, args, err = sqlx.In(query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to expand question query: %w", err)
		}
	}

	var questions []models.Question
	if err := r.db.SelectContext(ctx, &questions, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to query questions: %w", err)
	}
	return questions, nil
}

// Create inserts a new question and sets its ID
func (r *QuestionRepository) Create(ctx context.Context, q *models.Question) error {
	query := `INSERT INTO questions (category, difficulty, question, option1, option2, option3, option4, correct_option, role)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []interface{}{q.Category, q.Difficulty, q.Text, q.Option1, q.Option2, q.Option3, q.Option4, q.CorrectOption, q.Role}

	if r.db.DriverName() == DriverPostgres {
		// lib/pq has no LastInsertId
		if err := r.db.QueryRowContext(ctx, r.db.Rebind(query+" RETURNING id"), args...).Scan(&q.ID); err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}
		return nil
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	if q.ID, err = result.LastInsertId(); err != nil {
		return fmt.Errorf("failed to create question: %w", err)
	}
	return nil
}

// Count returns the size of the question bank
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM questions"); err != nil {
		return 0, fmt.Errorf("failed to count questions: %w", err)
	}
	return n, nil
}

// Exists reports whether the same question text is already stored for role
func (r *QuestionRepository) Exists(ctx context.Context, text, role string) (bool, error) {
	var n int
	query := r.db.Rebind("SELECT COUNT(*) FROM questions WHERE question = ? AND role = ?")
	if err := r.db.GetContext(ctx, &n, query, text, role); err != nil {
		return false, fmt.Errorf("failed to look up question: %w", err)
	}
	return n > 0, nil
}
