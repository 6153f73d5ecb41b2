package database

import (
	"context"

	"github.com/example/quizbot/pkg/models"
	"github.com/jmoiron/sqlx"
)

// Store bundles the repositories the quiz engine talks to
type Store struct {
	Users     *UserRepository
	Questions *QuestionRepository
	Results   *TestResultRepository
}

// NewStore creates repositories sharing one connection
func NewStore(db *sqlx.DB) *Store {
	return &Store{
		Users:     NewUserRepository(db),
		Questions: NewQuestionRepository(db),
		Results:   NewTestResultRepository(db),
	}
}

func (s *Store) FindUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.Users.GetByID(ctx, userID)
}

func (s *Store) InsertUser(ctx context.Context, user models.User) error {
	return s.Users.Create(ctx, user)
}

func (s *Store) QueryQuestions(ctx context.Context, f models.QuestionFilter) ([]models.Question, error) {
	return s.Questions.Query(ctx, f)
}

func (s *Store) InsertResult(ctx context.Context, result models.Result) error {
	return s.Results.CreateResult(ctx, result)
}

func (s *Store) InsertAnswer(ctx context.Context, answer models.Answer) error {
	return s.Results.CreateAnswer(ctx, answer)
}

func (s *Store) CreateQuestion(ctx context.Context, q *models.Question) error {
	return s.Questions.Create(ctx, q)
}

func (s *Store) QuestionExists(ctx context.Context, text, role string) (bool, error) {
	return s.Questions.Exists(ctx, text, role)
}

func (s *Store) CountQuestions(ctx context.Context) (int, error) {
	return s.Questions.Count(ctx)
}
