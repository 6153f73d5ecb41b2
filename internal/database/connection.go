package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverSQLite is the default embedded driver
	DriverSQLite = "sqlite3"
	// DriverPostgres is used when DB_DRIVER=postgres
	DriverPostgres = "postgres"
)

// Connect opens the database and makes sure the schema exists
func Connect(driver, dsn string) (*sqlx.DB, error) {
	if driver == "" {
		driver = DriverSQLite
	}

	if driver == DriverSQLite && dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		// Create data directory if it doesn't exist
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		db.SetMaxOpenConns(1) // SQLite doesn't support multiple writers
		db.SetMaxIdleConns(1)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	stmts := sqliteSchema
	if db.DriverName() == DriverPostgres {
		stmts = postgresSchema
	}
	for _, s := range stmts {
		if _, err := db.Exec(s.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", s.table, err)
		}
	}
	return nil
}

type tableDDL struct {
	table string
	ddl   string
}

var sqliteSchema = []tableDDL{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			user_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL
		)`},
	{"questions", `
		CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL DEFAULT '',
			difficulty INTEGER NOT NULL,
			question TEXT NOT NULL,
			option1 TEXT NOT NULL,
			option2 TEXT NOT NULL,
			option3 TEXT NOT NULL,
			option4 TEXT NOT NULL,
			correct_option INTEGER NOT NULL,
			role TEXT NOT NULL
		)`},
	{"results", `
		CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			attempt_id TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			test_date TIMESTAMP NOT NULL
		)`},
	{"user_answers", `
		CREATE TABLE IF NOT EXISTS user_answers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			attempt_id TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			question TEXT NOT NULL,
			user_answer TEXT NOT NULL,
			is_correct BOOLEAN NOT NULL
		)`},
}

var postgresSchema = []tableDDL{
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			user_id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			role TEXT NOT NULL
		)`},
	{"questions", `
		CREATE TABLE IF NOT EXISTS questions (
			id BIGSERIAL PRIMARY KEY,
			category TEXT NOT NULL DEFAULT '',
			difficulty INTEGER NOT NULL,
			question TEXT NOT NULL,
			option1 TEXT NOT NULL,
			option2 TEXT NOT NULL,
			option3 TEXT NOT NULL,
			option4 TEXT NOT NULL,
			correct_option INTEGER NOT NULL,
			role TEXT NOT NULL
		)`},
	{"results", `
		CREATE TABLE IF NOT EXISTS results (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			attempt_id TEXT NOT NULL DEFAULT '',
			score INTEGER NOT NULL,
			total INTEGER NOT NULL DEFAULT 0,
			test_date TIMESTAMPTZ NOT NULL
		)`},
	{"user_answers", `
		CREATE TABLE IF NOT EXISTS user_answers (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			attempt_id TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			question TEXT NOT NULL,
			user_answer TEXT NOT NULL,
			is_correct BOOLEAN NOT NULL
		)`},
}
