package repository

import (
	"context"
	"time"

	"costcompass/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TemplateRepository covers permission templates, delegations and
// compliance policies.
type TemplateRepository interface {
	CreateTemplate(ctx context.Context, tpl *model.PermissionTemplate) error
	FindTemplateByID(ctx context.Context, id uuid.UUID) (*model.PermissionTemplate, error)
	ListTemplates(ctx context.Context) ([]model.PermissionTemplate, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
	SetTemplatePermissions(ctx context.Context, tplID uuid.UUID, permissionIDs []uuid.UUID) error

	CreateDelegation(ctx context.Context, d *model.Delegation) error
	FindDelegationByID(ctx context.Context, id uuid.UUID) (*model.Delegation, error)
	ListDelegations(ctx context.Context, userID *uuid.UUID) ([]model.Delegation, error)
	MarkDelegationRevoked(ctx context.Context, id uuid.UUID, at time.Time) error

	ListPolicies(ctx context.Context, activeOnly bool) ([]model.CompliancePolicy, error)
	CreatePolicy(ctx context.Context, p *model.CompliancePolicy) error
	ListAccessForRole(ctx context.Context, role string) ([]model.PropertyAccess, error)
}

type templateRepository struct {
	db *gorm.DB
}

func NewTemplateRepository(db *gorm.DB) TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) CreateTemplate(ctx context.Context, tpl *model.PermissionTemplate) error {
	return GetDB(ctx, r.db).Create(tpl).Error
}

func (r *templateRepository) FindTemplateByID(ctx context.Context, id uuid.UUID) (*model.PermissionTemplate, error) {
	var tpl model.PermissionTemplate
	if err := GetDB(ctx, r.db).Preload("Permissions").First(&tpl, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *templateRepository) ListTemplates(ctx context.Context) ([]model.PermissionTemplate, error) {
	var tpls []model.PermissionTemplate
	if err := GetDB(ctx, r.db).Preload("Permissions").Order("name asc").Find(&tpls).Error; err != nil {
		return nil, err
	}
	return tpls, nil
}

func (r *templateRepository) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	var tpl model.PermissionTemplate
	if err := db.First(&tpl, "id = ?", id).Error; err != nil {
		return err
	}
	if err := db.Model(&tpl).Association("Permissions").Clear(); err != nil {
		return err
	}
	return db.Delete(&tpl).Error
}

func (r *templateRepository) SetTemplatePermissions(ctx context.Context, tplID uuid.UUID, permissionIDs []uuid.UUID) error {
	db := GetDB(ctx, r.db)
	var tpl model.PermissionTemplate
	if err := db.First(&tpl, "id = ?", tplID).Error; err != nil {
		return err
	}

	var perms []model.Permission
	if len(permissionIDs) > 0 {
		if err := db.Where("id IN ?", permissionIDs).Find(&perms).Error; err != nil {
			return err
		}
	}
	return db.Model(&tpl).Association("Permissions").Replace(perms)
}

func (r *templateRepository) CreateDelegation(ctx context.Context, d *model.Delegation) error {
	return GetDB(ctx, r.db).Create(d).Error
}

func (r *templateRepository) FindDelegationByID(ctx context.Context, id uuid.UUID) (*model.Delegation, error) {
	var d model.Delegation
	if err := GetDB(ctx, r.db).First(&d, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *templateRepository) ListDelegations(ctx context.Context, userID *uuid.UUID) ([]model.Delegation, error) {
	db := GetDB(ctx, r.db)
	if userID != nil {
		db = db.Where("from_user_id = ? OR to_user_id = ?", *userID, *userID)
	}
	var ds []model.Delegation
	if err := db.Order("created_at desc").Find(&ds).Error; err != nil {
		return nil, err
	}
	return ds, nil
}

func (r *templateRepository) MarkDelegationRevoked(ctx context.Context, id uuid.UUID, at time.Time) error {
	return GetDB(ctx, r.db).Model(&model.Delegation{}).Where("id = ?", id).Update("revoked_at", at).Error
}

func (r *templateRepository) ListPolicies(ctx context.Context, activeOnly bool) ([]model.CompliancePolicy, error) {
	db := GetDB(ctx, r.db)
	if activeOnly {
		db = db.Where("is_active = true")
	}
	var policies []model.CompliancePolicy
	if err := db.Order("name asc").Find(&policies).Error; err != nil {
		return nil, err
	}
	return policies, nil
}

func (r *templateRepository) CreatePolicy(ctx context.Context, p *model.CompliancePolicy) error {
	return GetDB(ctx, r.db).Create(p).Error
}

// ListAccessForRole returns the live access rows held by users with the
// given role, for compliance scanning.
func (r *templateRepository) ListAccessForRole(ctx context.Context, role string) ([]model.PropertyAccess, error) {
	var rows []model.PropertyAccess
	err := GetDB(ctx, r.db).
		Joins("INNER JOIN users u ON u.id = property_accesses.user_id").
		Where("u.role = ?", role).
		Where("property_accesses.expires_at IS NULL OR property_accesses.expires_at > now()").
		Preload("User").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
