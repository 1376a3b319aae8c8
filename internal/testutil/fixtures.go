package testutil

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"dailyplan/internal/model"
)

// Task options
type TaskOption func(*model.Task)

func WithStatus(s model.TaskStatus) TaskOption {
	return func(t *model.Task) {
		t.Status = s
	}
}

func WithPlannedDate(d time.Time) TaskOption {
	return func(t *model.Task) {
		date := model.DateOf(d)
		t.PlannedDate = &date
	}
}

func WithEstimate(minutes int) TaskOption {
	return func(t *model.Task) {
		t.EstimateMinutes = &minutes
	}
}

func WithPriority(p model.Priority) TaskOption {
	return func(t *model.Task) {
		t.Priority = p
	}
}

func WithCreatedAt(at time.Time) TaskOption {
	return func(t *model.Task) {
		t.CreatedAt = at
	}
}

func NewTestTask(userID uint, title string, opts ...TaskOption) *model.Task {
	t := &model.Task{
		UserID:   userID,
		Title:    title,
		Priority: model.PriorityMedium,
		Status:   model.StatusBacklog,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// CreateUser inserts a user row and returns it.
func CreateUser(t *testing.T, db *gorm.DB, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email}
	if err := db.WithContext(context.Background()).Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateTask inserts a task built from opts and returns it.
func CreateTask(t *testing.T, db *gorm.DB, userID uint, title string, opts ...TaskOption) *model.Task {
	t.Helper()
	task := NewTestTask(userID, title, opts...)
	if err := db.WithContext(context.Background()).Create(task).Error; err != nil {
		t.Fatalf("create task: %v", err)
	}
	return task
}

// Date returns the calendar date y-m-d.
func Date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
