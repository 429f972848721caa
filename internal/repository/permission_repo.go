package repository

import (
	"context"
	"errors"

	"costcompass/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PermissionRepository manages the permission catalog rows and the
// persisted role → permission matrix.
type PermissionRepository interface {
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	FindPermissionByID(ctx context.Context, id uuid.UUID) (*model.Permission, error)
	FindPermissionByCode(ctx context.Context, code string) (*model.Permission, error)
	FindOrCreatePermission(ctx context.Context, perm *model.Permission) error

	RolePermissions(ctx context.Context, role string) ([]model.Permission, error)
	RolePermissionCodes(ctx context.Context, role string) ([]string, error)
	IsAssigned(ctx context.Context, role string, permissionID uuid.UUID) (bool, error)
	Assign(ctx context.Context, role string, permissionID uuid.UUID) error
	Remove(ctx context.Context, role string, permissionID uuid.UUID) error
	RemoveAll(ctx context.Context, role string) error
}

type permissionRepository struct {
	db *gorm.DB
}

func NewPermissionRepository(db *gorm.DB) PermissionRepository {
	return &permissionRepository{db: db}
}

func (r *permissionRepository) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	var perms []model.Permission
	if err := GetDB(ctx, r.db).Order("category asc, code asc").Find(&perms).Error; err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) FindPermissionByID(ctx context.Context, id uuid.UUID) (*model.Permission, error) {
	var perm model.Permission
	if err := GetDB(ctx, r.db).First(&perm, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) FindPermissionByCode(ctx context.Context, code string) (*model.Permission, error) {
	var perm model.Permission
	if err := GetDB(ctx, r.db).First(&perm, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &perm, nil
}

func (r *permissionRepository) FindOrCreatePermission(ctx context.Context, perm *model.Permission) error {
	return GetDB(ctx, r.db).
		Where("code = ?", perm.Code).
		FirstOrCreate(perm).Error
}

func (r *permissionRepository) RolePermissions(ctx context.Context, role string) ([]model.Permission, error) {
	var perms []model.Permission
	err := GetDB(ctx, r.db).
		Joins("INNER JOIN role_permissions rp ON rp.permission_id = permissions.id").
		Where("rp.role = ?", role).
		Order("permissions.code asc").
		Find(&perms).Error
	if err != nil {
		return nil, err
	}
	return perms, nil
}

func (r *permissionRepository) RolePermissionCodes(ctx context.Context, role string) ([]string, error) {
	var codes []string
	err := GetDB(ctx, r.db).Raw(`
		SELECT p.code FROM permissions p
		INNER JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role = ?
	`, role).Pluck("code", &codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *permissionRepository) IsAssigned(ctx context.Context, role string, permissionID uuid.UUID) (bool, error) {
	var rp model.RolePermission
	err := GetDB(ctx, r.db).
		Where("role = ? AND permission_id = ?", role, permissionID).
		First(&rp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *permissionRepository) Assign(ctx context.Context, role string, permissionID uuid.UUID) error {
	return GetDB(ctx, r.db).Create(&model.RolePermission{
		Role:         role,
		PermissionID: permissionID,
	}).Error
}

func (r *permissionRepository) Remove(ctx context.Context, role string, permissionID uuid.UUID) error {
	return GetDB(ctx, r.db).
		Where("role = ? AND permission_id = ?", role, permissionID).
		Delete(&model.RolePermission{}).Error
}

func (r *permissionRepository) RemoveAll(ctx context.Context, role string) error {
	return GetDB(ctx, r.db).
		Where("role = ?", role).
		Delete(&model.RolePermission{}).Error
}
