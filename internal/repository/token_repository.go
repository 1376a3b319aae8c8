package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dailyplan/internal/apperr"
	"dailyplan/internal/model"
)

// TokenRepository stores provider credentials obtained by the OAuth collaborator.
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Find returns the user's token for provider, or nil when the account is not linked.
func (r *TokenRepository) Find(ctx context.Context, userID uint, provider string) (*model.IntegrationToken, error) {
	var tok model.IntegrationToken
	err := r.db.WithContext(ctx).Where("user_id = ? AND provider = ?", userID, provider).First(&tok).Error
	switch {
	case err == nil:
		return &tok, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, apperr.Persistence("find token", err)
	}
}

func (r *TokenRepository) Save(ctx context.Context, tok *model.IntegrationToken) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "token_type", "expiry", "updated_at"}),
	}).Create(tok).Error
	if err != nil {
		return apperr.Persistence("save token", err)
	}
	return nil
}
