package models

import "time"

// User is the slice of the account record the analytics engine depends on
type User struct {
	ID        int64     `json:"id" db:"id"`
	Username  string    `json:"username" db:"username"`
	TimeZone  string    `json:"time_zone" db:"time_zone"` // IANA zone name, "UTC" when unset
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
