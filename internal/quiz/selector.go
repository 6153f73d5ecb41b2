package quiz

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/quizbot/pkg/models"
)

// QuestionSource is the read side of the question bank
type QuestionSource interface {
	QueryQuestions(ctx context.Context, f models.QuestionFilter) ([]models.Question, error)
}

// Selector builds the ordered question batch for one test.
// It holds no per-test state.
type Selector struct {
	source       QuestionSource
	rng          *Rand
	target       int
	perLevel     int
	levels       []int
	fallbackRole string
}

// NewSelector creates a selector using the batch shape from cfg
func NewSelector(source QuestionSource, cfg Config, rng *Rand) *Selector {
	if rng == nil {
		rng = NewRand(cfg.Seed)
	}
	return &Selector{
		source:       source,
		rng:          rng,
		target:       cfg.BatchSize,
		perLevel:     cfg.PerDifficulty,
		levels:       cfg.Difficulties,
		fallbackRole: cfg.FallbackRole,
	}
}

// SelectBatch picks up to the target number of distinct questions for role.
// Each difficulty band is filled from the role first and the fallback role
// second; whatever is still missing is backfilled from any unused question.
// A short or empty batch means the bank ran out, not an error.
func (s *Selector) SelectBatch(ctx context.Context, role string) ([]models.Question, error) {
	used := make(map[int64]bool)
	batch := make([]models.Question, 0, s.target)

	for _, level := range s.levels {
		level := level

		picked, err := s.pick(ctx, &role, &level, s.perLevel, used)
		if err != nil {
			return nil, err
		}
		batch = append(batch, picked...)

		if short := s.perLevel - len(picked); short > 0 && role != s.fallbackRole {
			fallback := s.fallbackRole
			more, err := s.pick(ctx, &fallback, &level, short, used)
			if err != nil {
				return nil, err
			}
			batch = append(batch, more...)
		}
	}

	if len(batch) < s.target {
		rest, err := s.pick(ctx, nil, nil, s.target-len(batch), used)
		if err != nil {
			return nil, err
		}
		batch = append(batch, rest...)
	}

	if len(batch) > s.target {
		batch = batch[:s.target]
	}
	return batch, nil
}

// pick fetches candidates, shuffles them and takes up to n unused ones
func (s *Selector) pick(ctx context.Context, role *string, level *int, n int, used map[int64]bool) ([]models.Question, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.source.QueryQuestions(ctx, models.QuestionFilter{
		Role:       role,
		Difficulty: level,
		ExcludeIDs: usedIDs(used),
	})
	if err != nil {
		return nil, fmt.Errorf("select questions: %w", err)
	}

	s.rng.Shuffle(len(rows), func(i, j int) {
		rows[i], rows[j] = rows[j], rows[i]
	})

	picked := make([]models.Question, 0, n)
	for _, q := range rows {
		if len(picked) == n {
			break
		}
		if used[q.ID] {
			continue
		}
		used[q.ID] = true
		picked = append(picked, q)
	}
	return picked, nil
}

func usedIDs(used map[int64]bool) []int64 {
	ids := make([]int64, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
