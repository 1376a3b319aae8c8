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

// SyncStateRepository persists calendar watch channels and sync cursors.
type SyncStateRepository struct {
	db *gorm.DB
}

func NewSyncStateRepository(db *gorm.DB) *SyncStateRepository {
	return &SyncStateRepository{db: db}
}

// Find returns the state for (user, calendar), or nil when none exists.
func (r *SyncStateRepository) Find(ctx context.Context, userID uint, calendarID string) (*model.GoogleSyncState, error) {
	var state model.GoogleSyncState
	err := r.db.WithContext(ctx).Where("user_id = ? AND calendar_id = ?", userID, calendarID).First(&state).Error
	switch {
	case err == nil:
		return &state, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, apperr.Persistence("find sync state", err)
	}
}

// FindActiveChannel looks up a watch by channel and resource id whose expiration is after now.
func (r *SyncStateRepository) FindActiveChannel(ctx context.Context, channelID, resourceID string, now time.Time) (*model.GoogleSyncState, error) {
	var state model.GoogleSyncState
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND resource_id = ? AND expiration > ?", channelID, resourceID, now.UTC()).
		First(&state).Error
	switch {
	case err == nil:
		return &state, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.NotFound("find channel", "channel %s unknown or expired", channelID)
	default:
		return nil, apperr.Persistence("find channel", err)
	}
}

// UpsertWatch stores channel fields keyed by (user, calendar), keeping the sync cursor.
func (r *SyncStateRepository) UpsertWatch(ctx context.Context, userID uint, calendarID, channelID, resourceID string, expiration time.Time) (*model.GoogleSyncState, error) {
	expiration = expiration.UTC()
	state := model.GoogleSyncState{
		UserID:     userID,
		CalendarID: calendarID,
		ChannelID:  &channelID,
		ResourceID: &resourceID,
		Expiration: &expiration,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "calendar_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"channel_id", "resource_id", "expiration", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return nil, apperr.Persistence("upsert watch", err)
	}
	return r.Find(ctx, userID, calendarID)
}

// ClearChannel drops the channel fields but keeps the row and its sync history.
func (r *SyncStateRepository) ClearChannel(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&model.GoogleSyncState{}).Where("id = ?", id).
		Updates(map[string]interface{}{"channel_id": nil, "resource_id": nil, "expiration": nil}).Error
	if err != nil {
		return apperr.Persistence("clear channel", err)
	}
	return nil
}

// SaveSyncToken stores the incremental cursor, creating the row when the calendar
// has never been watched.
func (r *SyncStateRepository) SaveSyncToken(ctx context.Context, userID uint, calendarID, token string, syncedAt time.Time) error {
	syncedAt = syncedAt.UTC()
	state := model.GoogleSyncState{
		UserID:     userID,
		CalendarID: calendarID,
		SyncToken:  &token,
		LastSyncAt: &syncedAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "calendar_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sync_token", "last_sync_at", "updated_at"}),
	}).Create(&state).Error
	if err != nil {
		return apperr.Persistence("save sync token", err)
	}
	return nil
}

// ClearSyncToken discards the cursor so the next sync is a full resync.
func (r *SyncStateRepository) ClearSyncToken(ctx context.Context, userID uint, calendarID string) error {
	err := r.db.WithContext(ctx).Model(&model.GoogleSyncState{}).
		Where("user_id = ? AND calendar_id = ?", userID, calendarID).
		Update("sync_token", nil).Error
	if err != nil {
		return apperr.Persistence("clear sync token", err)
	}
	return nil
}

// ListExpiringBefore returns registered watches whose expiration is before cutoff.
func (r *SyncStateRepository) ListExpiringBefore(ctx context.Context, cutoff time.Time) ([]model.GoogleSyncState, error) {
	var states []model.GoogleSyncState
	err := r.db.WithContext(ctx).
		Where("channel_id IS NOT NULL AND expiration < ?", cutoff.UTC()).
		Order("expiration ASC").
		Find(&states).Error
	if err != nil {
		return nil, apperr.Persistence("list expiring watches", err)
	}
	return states, nil
}

func (r *SyncStateRepository) ListByUser(ctx context.Context, userID uint) ([]model.GoogleSyncState, error) {
	var states []model.GoogleSyncState
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("calendar_id ASC").Find(&states).Error; err != nil {
		return nil, apperr.Persistence("list sync states", err)
	}
	return states, nil
}
