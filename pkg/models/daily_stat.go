package models

import "time"

// DailyLearningStat holds a user's learning counters for one calendar day in
// the user's own time zone. UnknownRatioRaw and Active are derived from the
// counters and rewritten after every counter mutation.
type DailyLearningStat struct {
	UserID             int64     `json:"user_id" db:"user_id"`
	StatDate           string    `json:"stat_date" db:"stat_date"` // YYYY-MM-DD
	TimeZone           string    `json:"time_zone" db:"time_zone"`
	QuizStartedCount   int       `json:"quiz_started_count" db:"quiz_started_count"`
	QuizCompletedCount int       `json:"quiz_completed_count" db:"quiz_completed_count"`
	ReviewCount        int       `json:"review_count" db:"review_count"`
	AnsweredCount      int       `json:"answered_count" db:"answered_count"`
	DidntKnowCount     int       `json:"didnt_know_count" db:"didnt_know_count"`
	UnknownRatioRaw    *float64  `json:"unknown_ratio_raw" db:"unknown_ratio_raw"`
	Active             bool      `json:"active" db:"active"`
	StreakAtEndOfDay   *int      `json:"streak_at_end_of_day" db:"streak_at_end_of_day"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}
