package model

import "time"

// Priority is the stored task priority.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Rank orders priorities from least (0) to most urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// TaskStatus is the single lifecycle status of a task.
type TaskStatus string

const (
	StatusBacklog    TaskStatus = "BACKLOG"
	StatusPlanned    TaskStatus = "PLANNED"
	StatusScheduled  TaskStatus = "SCHEDULED"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusDone       TaskStatus = "DONE"
	StatusDeferred   TaskStatus = "DEFERRED"
	StatusCanceled   TaskStatus = "CANCELED"
)

// CommittedStatuses are the statuses that consume daily capacity.
var CommittedStatuses = []TaskStatus{StatusPlanned, StatusScheduled, StatusInProgress}

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusBacklog, StatusPlanned, StatusScheduled, StatusInProgress,
		StatusDone, StatusDeferred, StatusCanceled:
		return true
	}
	return false
}

// Task represents a single item in the planner.
type Task struct {
	ID               uint       `gorm:"primaryKey"`
	UserID           uint       `gorm:"index;not null"`
	Title            string     `gorm:"not null"`
	Description      string
	Priority         Priority   `gorm:"type:varchar(16);default:MEDIUM"`
	Status           TaskStatus `gorm:"type:varchar(16);index;default:BACKLOG"`
	PlannedDate      *time.Time `gorm:"type:date;index"`
	DueDate          *time.Time
	ScheduledStart   *time.Time
	ScheduledEnd     *time.Time
	EstimateMinutes  *int
	ActualMinutes    int `gorm:"default:0"`
	TimerStartedAt   *time.Time
	SortOrder        int `gorm:"default:0"`
	RolloverCount    int `gorm:"default:0"`
	RolledOverFromID *uint
	DeferredTo       *time.Time `gorm:"type:date"`
	DeferReason      string
	CompletedAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Estimate returns the estimate in minutes, or 0 when none is set.
func (t Task) Estimate() int {
	if t.EstimateMinutes == nil {
		return 0
	}
	return *t.EstimateMinutes
}
