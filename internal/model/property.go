package model

import (
	"time"

	"github.com/google/uuid"
)

// Property is the tenant/business-unit scoping boundary for data isolation.
type Property struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code       string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	Name       string     `gorm:"type:varchar(255);not null" json:"name"`
	City       string     `gorm:"type:varchar(100)" json:"city"`
	CurrencyID *uuid.UUID `gorm:"type:uuid" json:"currency_id"`
	Currency   *Currency  `gorm:"foreignKey:CurrencyID" json:"currency,omitempty"`
	IsActive   bool       `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PropertyAccess grants a user an access level on one property. A user has
// at most one access level per property. Rows past expires_at are filtered
// out by every query and removed by the cleanup sweep.
type PropertyAccess struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_property" json:"user_id"`
	User        User       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE;" json:"-"`
	PropertyID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_user_property;index" json:"property_id"`
	Property    Property   `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE;" json:"-"`
	AccessLevel string     `gorm:"type:varchar(20);not null" json:"access_level"`
	GrantedBy   *uuid.UUID `gorm:"type:uuid" json:"granted_by"`
	GrantedAt   time.Time  `gorm:"autoCreateTime" json:"granted_at"`
	ExpiresAt   *time.Time `gorm:"index" json:"expires_at"`
}
