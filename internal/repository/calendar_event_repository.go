package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
)

// CalendarEventRepository manages task ↔ external event join rows.
type CalendarEventRepository struct {
	db *gorm.DB
}

func NewCalendarEventRepository(db *gorm.DB) *CalendarEventRepository {
	return &CalendarEventRepository{db: db}
}

// FindByExternalID returns the user's join row, or nil when none exists.
// The same external event may be linked once per user.
func (r *CalendarEventRepository) FindByExternalID(ctx context.Context, userID uint, provider, externalID string) (*model.CalendarEvent, error) {
	var ev model.CalendarEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND external_id = ?", userID, provider, externalID).
		First(&ev).Error
	switch {
	case err == nil:
		return &ev, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, apperr.Persistence("find calendar event", err)
	}
}

// FindByTask returns the task's event for provider, or nil.
func (r *CalendarEventRepository) FindByTask(ctx context.Context, provider string, taskID uint) (*model.CalendarEvent, error) {
	var ev model.CalendarEvent
	err := r.db.WithContext(ctx).Where("provider = ? AND task_id = ?", provider, taskID).First(&ev).Error
	switch {
	case err == nil:
		return &ev, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, apperr.Persistence("find task event", err)
	}
}

// Upsert stores the join row keyed by (user, provider, external id).
func (r *CalendarEventRepository) Upsert(ctx context.Context, ev *model.CalendarEvent) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}, {Name: "external_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"task_id", "calendar_id", "ical_uid", "start_at", "end_at", "last_synced", "updated_at"}),
	}).Create(ev).Error
	if err != nil {
		return apperr.Persistence("upsert calendar event", err)
	}
	return nil
}

func (r *CalendarEventRepository) DeleteByExternalID(ctx context.Context, userID uint, provider, externalID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND provider = ? AND external_id = ?", userID, provider, externalID).
		Delete(&model.CalendarEvent{})
	if res.Error != nil {
		return false, apperr.Persistence("delete calendar event", res.Error)
	}
	return res.RowsAffected > 0, nil
}
