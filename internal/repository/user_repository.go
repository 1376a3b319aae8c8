package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
)

// UserRepository handles users and their planning settings.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return apperr.Persistence("create user", err)
	}
	return nil
}

// UpsertFromTelegram finds or creates a user based on TelegramID and updates basic profile info.
func (r *UserRepository) UpsertFromTelegram(ctx context.Context, telegramID int64, firstName, lastName, username string) (*model.User, error) {
	var user model.User
	db := r.db.WithContext(ctx)
	err := db.Where("telegram_id = ?", telegramID).First(&user).Error
	switch {
	case err == nil:
		updates := map[string]interface{}{
			"first_name": firstName,
			"last_name":  lastName,
			"username":   username,
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, apperr.Persistence("update user", err)
		}
		return &user, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = model.User{
			TelegramID: &telegramID,
			FirstName:  firstName,
			LastName:   lastName,
			Username:   username,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, apperr.Persistence("create user", err)
		}
		return &user, nil
	default:
		return nil, apperr.Persistence("find user", err)
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("find user", "user %d not found", id)
		}
		return nil, apperr.Persistence("find user", err)
	}
	return &user, nil
}

func (r *UserRepository) ListWithTelegram(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("telegram_id IS NOT NULL").Find(&users).Error; err != nil {
		return nil, apperr.Persistence("list telegram users", err)
	}
	return users, nil
}

// Settings returns the user's settings, or nil when no row exists.
func (r *UserRepository) Settings(ctx context.Context, userID uint) (*model.UserSettings, error) {
	var settings model.UserSettings
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&settings).Error
	switch {
	case err == nil:
		return &settings, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, apperr.Persistence("load settings", err)
	}
}

func (r *UserRepository) SaveSettings(ctx context.Context, settings *model.UserSettings) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"daily_capacity_minutes", "day_start", "timezone", "updated_at"}),
	}).Create(settings).Error
	if err != nil {
		return apperr.Persistence("save settings", err)
	}
	return nil
}
