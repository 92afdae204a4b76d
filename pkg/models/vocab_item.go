package models

import "time"

// MaxStrength is the upper bound of a vocabulary item's recall strength
const MaxStrength = 5

// VocabItem is a word a user is learning together with its spaced repetition state
type VocabItem struct {
	ID           int64      `json:"id" db:"id"`
	UserID       int64      `json:"user_id" db:"user_id"`
	Term         string     `json:"term" db:"term"`
	Translation  string     `json:"translation" db:"translation"`
	Strength     int        `json:"strength" db:"strength"` // 0-5
	LastSeenAt   *time.Time `json:"last_seen_at" db:"last_seen_at"`
	NextReviewAt *time.Time `json:"next_review_at" db:"next_review_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}
