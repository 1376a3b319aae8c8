package service

import (
	"context"
	"time"

	"dailyplan/internal/model"
	"dailyplan/internal/repository"
)

// DefaultCapacityMinutes applies when neither settings nor config provide a capacity.
const DefaultCapacityMinutes = 360

// Capacity is the time budget of one user on one date. AvailableMinutes is
// negative when the day is over-committed.
type Capacity struct {
	Date             time.Time `json:"date"`
	TotalMinutes     int       `json:"totalMinutes"`
	UsedMinutes      int       `json:"usedMinutes"`
	AvailableMinutes int       `json:"availableMinutes"`
}

// CapacityService computes daily capacity from settings and planned tasks.
type CapacityService struct {
	users          *repository.UserRepository
	tasks          *repository.TaskRepository
	defaultMinutes int
}

func NewCapacityService(users *repository.UserRepository, tasks *repository.TaskRepository, defaultMinutes int) *CapacityService {
	if defaultMinutes <= 0 {
		defaultMinutes = DefaultCapacityMinutes
	}
	return &CapacityService{users: users, tasks: tasks, defaultMinutes: defaultMinutes}
}

// DailyCapacity returns the user's configured capacity or the default.
func (s *CapacityService) DailyCapacity(ctx context.Context, userID uint) (int, error) {
	return dailyCapacity(ctx, s.users, userID, s.defaultMinutes)
}

func (s *CapacityService) Compute(ctx context.Context, userID uint, date time.Time) (Capacity, error) {
	total, err := s.DailyCapacity(ctx, userID)
	if err != nil {
		return Capacity{}, err
	}
	used, err := s.tasks.SumCommittedEstimates(ctx, userID, date)
	if err != nil {
		return Capacity{}, err
	}
	return Capacity{
		Date:             model.DateOf(date),
		TotalMinutes:     total,
		UsedMinutes:      used,
		AvailableMinutes: total - used,
	}, nil
}

func dailyCapacity(ctx context.Context, users *repository.UserRepository, userID uint, fallback int) (int, error) {
	settings, err := users.Settings(ctx, userID)
	if err != nil {
		return 0, err
	}
	if settings == nil || settings.DailyCapacityMinutes <= 0 {
		return fallback, nil
	}
	return settings.DailyCapacityMinutes, nil
}
