package model

import (
	"time"

	"github.com/google/uuid"
)

// Permission represents a single named capability that roles or users can
// hold. Codes follow the category.resource.action shape.
type Permission struct {
	ID       uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code     string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"code"` // e.g. "financial.food_costs.read"
	Name     string    `gorm:"type:varchar(255);not null" json:"name"`
	Category string    `gorm:"type:varchar(50);not null;index" json:"category"` // "financial", "properties", "users"...
	Action   string    `gorm:"type:varchar(50);not null" json:"action"`
}

// RolePermission is the persisted, mutable form of the role → permission
// matrix. Roles are an enumerated set, so the role column stores the tag
// directly rather than a foreign key. (role, permission_id) pairs are
// unique.
type RolePermission struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Role         string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_role_permission" json:"role"`
	PermissionID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_role_permission" json:"permission_id"`
	Permission   Permission `gorm:"foreignKey:PermissionID;constraint:OnDelete:CASCADE;" json:"permission"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}
