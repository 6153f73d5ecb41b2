package models

// User represents a registered Telegram user
type User struct {
	UserID int64  `json:"user_id" db:"user_id"` // Telegram User ID
	Name   string `json:"name" db:"name"`
	Role   string `json:"role" db:"role"`
}
