package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/quizbot/internal/database"
	"github.com/example/quizbot/internal/quiz"
	"github.com/joho/godotenv"
)

// Config is the process configuration assembled from .env and the environment
type Config struct {
	TelegramToken  string
	Debug          bool
	DatabaseDriver string
	DatabaseURL    string
	AdminUserIDs   []int64
	SweepInterval  time.Duration
	Quiz           quiz.Config
}

// DefaultDatabaseURL is the SQLite file used when DATABASE_URL is unset
const DefaultDatabaseURL = "data/quizbot.db"

// Load reads envFile (if it exists) and then the environment.
// Variables already set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
			}
			log.Printf("No %s file found, using environment only", envFile)
		}
	}

	cfg := &Config{
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseDriver: envOr("DB_DRIVER", database.DriverSQLite),
		DatabaseURL:    envOr("DATABASE_URL", DefaultDatabaseURL),
		SweepInterval:  10 * time.Minute,
		Quiz:           quiz.DefaultConfig(),
	}

	var err error
	if cfg.Debug, err = envBool("BOT_DEBUG", false); err != nil {
		return nil, err
	}
	if cfg.DatabaseDriver != database.DriverSQLite && cfg.DatabaseDriver != database.DriverPostgres {
		return nil, fmt.Errorf("DB_DRIVER must be %s or %s, got %q", database.DriverSQLite, database.DriverPostgres, cfg.DatabaseDriver)
	}
	if cfg.AdminUserIDs, err = envIDs("ADMIN_USER_IDS"); err != nil {
		return nil, err
	}
	if cfg.SweepInterval, err = envDuration("SESSION_SWEEP_INTERVAL", cfg.SweepInterval); err != nil {
		return nil, err
	}

	q := &cfg.Quiz
	if roles := envList("QUIZ_ROLES"); len(roles) > 0 {
		q.Roles = roles
	}
	q.FallbackRole = strings.ToLower(envOr("QUIZ_FALLBACK_ROLE", q.FallbackRole))
	if q.BatchSize, err = envInt("QUIZ_BATCH_SIZE", q.BatchSize); err != nil {
		return nil, err
	}
	if q.PerDifficulty, err = envInt("QUIZ_PER_DIFFICULTY", q.PerDifficulty); err != nil {
		return nil, err
	}
	if q.QuestionTimeout, err = envDuration("QUIZ_QUESTION_TIMEOUT", q.QuestionTimeout); err != nil {
		return nil, err
	}
	if q.TickInterval, err = envDuration("QUIZ_TICK_INTERVAL", q.TickInterval); err != nil {
		return nil, err
	}
	if q.RegistrationTTL, err = envDuration("REGISTRATION_TTL", q.RegistrationTTL); err != nil {
		return nil, err
	}

	if q.BatchSize <= 0 || q.PerDifficulty < 0 {
		return nil, fmt.Errorf("QUIZ_BATCH_SIZE must be positive and QUIZ_PER_DIFFICULTY non-negative")
	}
	if q.QuestionTimeout <= 0 {
		return nil, fmt.Errorf("QUIZ_QUESTION_TIMEOUT must be positive")
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

// envDuration accepts Go durations ("30s") or plain seconds ("30")
func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envIDs(key string) ([]int64, error) {
	var ids []int64
	for _, part := range envList(key) {
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", key, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
