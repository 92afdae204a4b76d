package models

// DailyTotals is the sum of every user's counters for one day
type DailyTotals struct {
	StatDate      string `json:"stat_date" db:"stat_date"`
	ActiveUsers   int    `json:"active_users" db:"active_users"`
	QuizStarted   int    `json:"quiz_started" db:"quiz_started"`
	QuizCompleted int    `json:"quiz_completed" db:"quiz_completed"`
	Reviews       int    `json:"reviews" db:"reviews"`
	Answered      int    `json:"answered" db:"answered"`
	DidntKnow     int    `json:"didnt_know" db:"didnt_know"`
}

// DateCount is a per-day count such as new users
type DateCount struct {
	Date  string `json:"date" db:"date"`
	Count int    `json:"count" db:"count"`
}

// DayPoint is one day of a user's dashboard series
type DayPoint struct {
	Date          string   `json:"date"`
	Active        bool     `json:"active"`
	QuizStarted   int      `json:"quiz_started"`
	QuizCompleted int      `json:"quiz_completed"`
	Reviews       int      `json:"reviews"`
	Answered      int      `json:"answered"`
	DidntKnow     int      `json:"didnt_know"`
	UnknownRatio  *float64 `json:"unknown_ratio"`
}

// DashboardMetrics is the read-only learning summary shown to a user
type DashboardMetrics struct {
	UserID         int64      `json:"user_id"`
	TimeZone       string     `json:"time_zone"`
	Today          string     `json:"today"`
	CurrentStreak  int        `json:"current_streak"`
	LongestStreak  int        `json:"longest_streak"`
	LastActiveDate *string    `json:"last_active_date"`
	CompletionRate *float64   `json:"completion_rate_7d"`
	UnknownRatio   *float64   `json:"unknown_ratio_7d"`
	Days           []DayPoint `json:"days"`
}

// OverviewDay is one day of the admin overview
type OverviewDay struct {
	DailyTotals
	NewUsers       int      `json:"new_users"`
	CompletionRate *float64 `json:"completion_rate"`
	UnknownRatio   *float64 `json:"unknown_ratio"`
}

// RetentionPoint is one cohort's retention at a fixed offset. Rate is nil
// when the cohort has not been computed yet.
type RetentionPoint struct {
	CohortDate    string   `json:"cohort_date"`
	CohortSize    int      `json:"cohort_size"`
	RetainedUsers int      `json:"retained_users"`
	RetentionRate *float64 `json:"retention_rate"`
}

// AnalyticsOverview is the admin view across all users for a date range
type AnalyticsOverview struct {
	From        string           `json:"from"`
	To          string           `json:"to"`
	Days        []OverviewDay    `json:"days"`
	RetentionD1 []RetentionPoint `json:"retention_d1"`
	RetentionD7 []RetentionPoint `json:"retention_d7"`
}
