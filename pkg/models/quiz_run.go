package models

import "time"

// QuizRunStatus is the lifecycle state of a quiz run
type QuizRunStatus string

const (
	QuizRunStarted   QuizRunStatus = "started"
	QuizRunCompleted QuizRunStatus = "completed"
	QuizRunExited    QuizRunStatus = "exited"
)

// DefaultQuizSource is used when the caller does not tag a run
const DefaultQuizSource = "vocab_quiz"

// Terminal reports whether no further transition is allowed out of s
func (s QuizRunStatus) Terminal() bool {
	return s == QuizRunCompleted || s == QuizRunExited
}

// QuizRun is a single quiz session
type QuizRun struct {
	ID             string        `json:"id" db:"id"`
	UserID         int64         `json:"user_id" db:"user_id"`
	Source         string        `json:"source" db:"source"`
	PlannedCards   int           `json:"planned_cards" db:"planned_cards"`
	Status         QuizRunStatus `json:"status" db:"status"`
	TimeZone       string        `json:"time_zone" db:"time_zone"` // captured at start
	StartedAt      time.Time     `json:"started_at" db:"started_at"`
	CompletedAt    *time.Time    `json:"completed_at" db:"completed_at"`
	ExitedAt       *time.Time    `json:"exited_at" db:"exited_at"`
	DurationSec    *int          `json:"duration_sec" db:"duration_sec"`
	AnsweredCount  int           `json:"answered_count" db:"answered_count"`
	KnewCount      int           `json:"knew_count" db:"knew_count"`
	DidntKnowCount int           `json:"didnt_know_count" db:"didnt_know_count"`
	UnknownRatio   *float64      `json:"unknown_ratio" db:"unknown_ratio"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// QuizRunAnswer records one answer inside a run. AttemptIndex is the
// caller's idempotency key and is unique per run.
type QuizRunAnswer struct {
	QuizRunID    string    `json:"quiz_run_id" db:"quiz_run_id"`
	AttemptIndex int       `json:"attempt_index" db:"attempt_index"`
	VocabItemID  int64     `json:"vocab_item_id" db:"vocab_item_id"`
	Knew         bool      `json:"knew" db:"knew"`
	AnsweredAt   time.Time `json:"answered_at" db:"answered_at"`
}

// StartQuizResult is returned when a run is created
type StartQuizResult struct {
	QuizRunID string `json:"quiz_run_id"`
	TimeZone  string `json:"time_zone"`
	StatDate  string `json:"stat_date"`
}

// AnswerResult is returned for a recorded or replayed answer
type AnswerResult struct {
	VocabItemID  int64      `json:"vocab_item_id"`
	Strength     int        `json:"strength"`
	NextReviewAt *time.Time `json:"next_review_at"`
	RepeatCount  *int       `json:"repeat_count,omitempty"`
	Replayed     bool       `json:"replayed"`
	DayActive    bool       `json:"day_active"`
}

// FinishResult is returned by complete and exit. The flags report a run
// that had already reached a terminal state before the call.
type FinishResult struct {
	Run              *QuizRun `json:"run"`
	AlreadyCompleted bool     `json:"already_completed"`
	AlreadyExited    bool     `json:"already_exited"`
}
