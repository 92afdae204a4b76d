package models

import "time"

// UserLearningProfile tracks a user's active-day streaks
type UserLearningProfile struct {
	UserID          int64     `json:"user_id" db:"user_id"`
	FirstActiveDate string    `json:"first_active_date" db:"first_active_date"`
	LastActiveDate  string    `json:"last_active_date" db:"last_active_date"`
	CurrentStreak   int       `json:"current_streak" db:"current_streak"`
	LongestStreak   int       `json:"longest_streak" db:"longest_streak"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}
