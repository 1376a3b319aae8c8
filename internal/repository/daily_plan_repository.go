package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
)

// DailyPlanRepository stores per-day plan summaries.
type DailyPlanRepository struct {
	db *gorm.DB
}

func NewDailyPlanRepository(db *gorm.DB) *DailyPlanRepository {
	return &DailyPlanRepository{db: db}
}

// Find returns the plan for (user, date), or nil when none exists.
func (r *DailyPlanRepository) Find(ctx context.Context, userID uint, date time.Time) (*model.DailyPlan, error) {
	var plan model.DailyPlan
	err := r.db.WithContext(ctx).Where("user_id = ? AND date = ?", userID, model.DateOf(date)).First(&plan).Error
	switch {
	case err == nil:
		return &plan, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, apperr.Persistence("find daily plan", err)
	}
}

// UpsertPlanned creates the plan with the capacity snapshot, or updates only
// planned minutes when the plan already exists. The first capacity stays.
func (r *DailyPlanRepository) UpsertPlanned(ctx context.Context, userID uint, date time.Time, capacityMinutes, plannedMinutes int, startedAt time.Time) (*model.DailyPlan, error) {
	plan := model.DailyPlan{
		UserID:          userID,
		Date:            model.DateOf(date),
		CapacityMinutes: capacityMinutes,
		PlannedMinutes:  plannedMinutes,
		StartedAt:       &startedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"planned_minutes", "updated_at"}),
	}).Create(&plan).Error
	if err != nil {
		return nil, apperr.Persistence("upsert daily plan", err)
	}
	return r.Find(ctx, userID, date)
}

// UpsertSummary records the shutdown summary, creating the plan if needed.
func (r *DailyPlanRepository) UpsertSummary(ctx context.Context, userID uint, date time.Time, capacityMinutes int, summary string, completedAt time.Time) (*model.DailyPlan, error) {
	plan := model.DailyPlan{
		UserID:          userID,
		Date:            model.DateOf(date),
		CapacityMinutes: capacityMinutes,
		CompletedAt:     &completedAt,
		Summary:         summary,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"summary", "completed_at", "updated_at"}),
	}).Create(&plan).Error
	if err != nil {
		return nil, apperr.Persistence("upsert daily summary", err)
	}
	return r.Find(ctx, userID, date)
}
