package repository

import (
	"context"
	"errors"
	"time"

	"costcompass/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PropertyRepository manages properties and their access grants.
//
// Every access query excludes rows past expires_at — the query layer is the
// single database-side enforcement point for expiry. The cleanup sweep only
// reclaims storage.
type PropertyRepository interface {
	Create(ctx context.Context, property *model.Property) error
	Update(ctx context.Context, property *model.Property) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Property, error)
	List(ctx context.Context) ([]model.Property, error)

	FindAccess(ctx context.Context, userID, propertyID uuid.UUID) (*model.PropertyAccess, error)
	UpsertAccess(ctx context.Context, access *model.PropertyAccess) error
	DeleteAccess(ctx context.Context, userID, propertyID uuid.UUID) error
	ListAccessByProperty(ctx context.Context, propertyID uuid.UUID) ([]model.PropertyAccess, error)
	ListAccessByUser(ctx context.Context, userID uuid.UUID) ([]model.PropertyAccess, error)
	AccessiblePropertyIDs(ctx context.Context, userID uuid.UUID, levels []string) ([]uuid.UUID, error)
	DeleteExpiredAccess(ctx context.Context, now time.Time) (int64, error)
}

type propertyRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPropertyRepository(db *gorm.DB) PropertyRepository {
	return &propertyRepository{db: db, now: time.Now}
}

func (r *propertyRepository) Create(ctx context.Context, property *model.Property) error {
	return GetDB(ctx, r.db).Create(property).Error
}

func (r *propertyRepository) Update(ctx context.Context, property *model.Property) error {
	return GetDB(ctx, r.db).Save(property).Error
}

func (r *propertyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Property, error) {
	var property model.Property
	if err := GetDB(ctx, r.db).Preload("Currency").First(&property, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &property, nil
}

func (r *propertyRepository) List(ctx context.Context) ([]model.Property, error) {
	var properties []model.Property
	if err := GetDB(ctx, r.db).Preload("Currency").Order("name asc").Find(&properties).Error; err != nil {
		return nil, err
	}
	return properties, nil
}

// unexpired scopes an access query to live rows.
func (r *propertyRepository) unexpired(db *gorm.DB) *gorm.DB {
	return db.Where("expires_at IS NULL OR expires_at > ?", r.now())
}

func (r *propertyRepository) FindAccess(ctx context.Context, userID, propertyID uuid.UUID) (*model.PropertyAccess, error) {
	var access model.PropertyAccess
	err := r.unexpired(GetDB(ctx, r.db)).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		First(&access).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &access, nil
}

// UpsertAccess creates the (user, property) access row or replaces its
// level, grantor and expiry if one already exists.
func (r *propertyRepository) UpsertAccess(ctx context.Context, access *model.PropertyAccess) error {
	db := GetDB(ctx, r.db)

	var existing model.PropertyAccess
	err := db.Where("user_id = ? AND property_id = ?", access.UserID, access.PropertyID).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.Create(access).Error
		}
		return err
	}

	existing.AccessLevel = access.AccessLevel
	existing.GrantedBy = access.GrantedBy
	existing.GrantedAt = r.now()
	existing.ExpiresAt = access.ExpiresAt
	if err := db.Save(&existing).Error; err != nil {
		return err
	}
	*access = existing
	return nil
}

func (r *propertyRepository) DeleteAccess(ctx context.Context, userID, propertyID uuid.UUID) error {
	return GetDB(ctx, r.db).
		Where("user_id = ? AND property_id = ?", userID, propertyID).
		Delete(&model.PropertyAccess{}).Error
}

func (r *propertyRepository) ListAccessByProperty(ctx context.Context, propertyID uuid.UUID) ([]model.PropertyAccess, error) {
	var rows []model.PropertyAccess
	err := r.unexpired(GetDB(ctx, r.db)).
		Preload("User").
		Where("property_id = ?", propertyID).
		Order("granted_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *propertyRepository) ListAccessByUser(ctx context.Context, userID uuid.UUID) ([]model.PropertyAccess, error) {
	var rows []model.PropertyAccess
	err := r.unexpired(GetDB(ctx, r.db)).
		Preload("Property").
		Where("user_id = ?", userID).
		Order("granted_at asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *propertyRepository) AccessiblePropertyIDs(ctx context.Context, userID uuid.UUID, levels []string) ([]uuid.UUID, error) {
	if len(levels) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := r.unexpired(GetDB(ctx, r.db).Model(&model.PropertyAccess{})).
		Where("user_id = ? AND access_level IN ?", userID, levels).
		Pluck("property_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// DeleteExpiredAccess removes rows past their expiry. Queries already
// exclude them; this sweep reclaims the storage.
func (r *propertyRepository) DeleteExpiredAccess(ctx context.Context, now time.Time) (int64, error) {
	result := GetDB(ctx, r.db).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Delete(&model.PropertyAccess{})
	return result.RowsAffected, result.Error
}
