package repository

import (
	"context"
	"time"

	"costcompass/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TokenRepository persists refresh tokens. Tokens are rotated on use, so a
// row lives at most one refresh cycle.
type TokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	Find(ctx context.Context, token string) (*model.RefreshToken, error)
	Delete(ctx context.Context, token string) error
	DeleteForUser(ctx context.Context, userID uuid.UUID) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type tokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) Create(ctx context.Context, token *model.RefreshToken) error {
	return GetDB(ctx, r.db).Create(token).Error
}

func (r *tokenRepository) Find(ctx context.Context, token string) (*model.RefreshToken, error) {
	var row model.RefreshToken
	if err := GetDB(ctx, r.db).First(&row, "token = ?", token).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *tokenRepository) Delete(ctx context.Context, token string) error {
	return GetDB(ctx, r.db).Where("token = ?", token).Delete(&model.RefreshToken{}).Error
}

func (r *tokenRepository) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	return GetDB(ctx, r.db).Where("user_id = ?", userID).Delete(&model.RefreshToken{}).Error
}

func (r *tokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := GetDB(ctx, r.db).
		Where("expires_at <= ?", now).
		Delete(&model.RefreshToken{})
	return result.RowsAffected, result.Error
}
