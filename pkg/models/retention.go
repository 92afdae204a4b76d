package models

import "time"

// RetentionMetric is the share of a first-active cohort that was active
// again exactly DayOffset days later
type RetentionMetric struct {
	CohortDate    string    `json:"cohort_date" db:"cohort_date"`
	DayOffset     int       `json:"day_offset" db:"day_offset"`
	CohortSize    int       `json:"cohort_size" db:"cohort_size"`
	RetainedUsers int       `json:"retained_users" db:"retained_users"`
	RetentionRate float64   `json:"retention_rate" db:"retention_rate"`
	CalculatedAt  time.Time `json:"calculated_at" db:"calculated_at"`
}

// AnalyticsCursor is the singleton resume point of the maintenance pass
type AnalyticsCursor struct {
	LastReconciledDate *string   `json:"last_reconciled_date" db:"last_reconciled_date"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}
