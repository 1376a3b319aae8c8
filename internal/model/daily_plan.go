package model

import "time"

// DailyPlan is the per-user-per-date plan summary. At most one row exists per (user, date).
type DailyPlan struct {
	ID              uint      `gorm:"primaryKey"`
	UserID          uint      `gorm:"uniqueIndex:idx_daily_plan_user_date;not null"`
	Date            time.Time `gorm:"type:date;uniqueIndex:idx_daily_plan_user_date;not null"`
	CapacityMinutes int
	PlannedMinutes  int
	StartedAt       *time.Time
	CompletedAt     *time.Time
	Notes           string
	Summary         string // JSON encoded DaySummary
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DaySummary is the shutdown summary stored in DailyPlan.Summary.
type DaySummary struct {
	Total             int `json:"total"`
	Completed         int `json:"completed"`
	Deferred          int `json:"deferred"`
	Incomplete        int `json:"incomplete"`
	EstimatedMinutes  int `json:"estimatedMinutes"`
	ActualMinutes     int `json:"actualMinutes"`
	AccuracyPercent   int `json:"accuracyPercent"`
	CompletionPercent int `json:"completionPercent"`
}
