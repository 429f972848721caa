package model

import (
	"time"

	"github.com/google/uuid"
)

// PermissionTemplate bundles a fixed list of permissions under a name.
// Applying a template to a role is sugar for repeated assign calls.
type PermissionTemplate struct {
	ID          uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string       `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Description string       `gorm:"type:text" json:"description"`
	Permissions []Permission `gorm:"many2many:template_permissions;" json:"permissions"`
	CreatedBy   *uuid.UUID   `gorm:"type:uuid" json:"created_by"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

// Delegation records a time-boxed, revocable re-grant of one user's
// property access to another. The actual capability lives in the
// PropertyAccess row it creates; this row tracks provenance and revocation.
type Delegation struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	FromUserID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"from_user_id"`
	FromUser    User       `gorm:"foreignKey:FromUserID" json:"-"`
	ToUserID    uuid.UUID  `gorm:"type:uuid;not null;index" json:"to_user_id"`
	ToUser      User       `gorm:"foreignKey:ToUserID" json:"-"`
	PropertyID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"property_id"`
	Property    Property   `gorm:"foreignKey:PropertyID" json:"-"`
	AccessLevel string     `gorm:"type:varchar(20);not null" json:"access_level"`
	ExpiresAt   time.Time  `gorm:"not null" json:"expires_at"`
	RevokedAt   *time.Time `json:"revoked_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// CompliancePolicy caps the access level members of a role may hold on any
// property. Scans report violations; nothing is enforced at request time.
type CompliancePolicy struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name           string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Role           string    `gorm:"type:varchar(50);not null" json:"role"`
	MaxAccessLevel string    `gorm:"type:varchar(20);not null" json:"max_access_level"`
	IsActive       bool      `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
}
