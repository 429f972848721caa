package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategoryType enum constants
const (
	CategoryTypeFood     = "food"
	CategoryTypeBeverage = "beverage"
)

// Currency is a registry entry with an exchange rate against the base
// currency (USD).
type Currency struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code         string          `gorm:"type:varchar(10);uniqueIndex;not null" json:"code"` // ISO 4217, e.g. "USD"
	Name         string          `gorm:"type:varchar(100);not null" json:"name"`
	Symbol       string          `gorm:"type:varchar(10)" json:"symbol"`
	ExchangeRate decimal.Decimal `gorm:"type:decimal(18,6);not null;default:1" json:"exchange_rate"` // 1 if USD
	IsDefault    bool            `gorm:"default:false" json:"is_default"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Outlet is a revenue center within a property (restaurant, bar, banquet).
type Outlet struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PropertyID uuid.UUID `gorm:"type:uuid;not null;index" json:"property_id"`
	Property   Property  `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE;" json:"-"`
	Name       string    `gorm:"type:varchar(255);not null" json:"name"`
	IsActive   bool      `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Category groups cost entries, typed food or beverage.
type Category struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name        string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Type        string    `gorm:"type:varchar(20);not null;index" json:"type"` // food or beverage
	Description string    `gorm:"type:text" json:"description"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// DailyCostEntry is one day's recorded cost for an outlet and category.
type DailyCostEntry struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PropertyID uuid.UUID `gorm:"type:uuid;not null;index:idx_entry_property_date" json:"property_id"`
	Property   Property  `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE;" json:"-"`
	OutletID   uuid.UUID `gorm:"type:uuid;not null;index" json:"outlet_id"`
	Outlet     Outlet    `gorm:"foreignKey:OutletID" json:"-"`
	CategoryID uuid.UUID `gorm:"type:uuid;not null;index" json:"category_id"`
	Category   Category  `gorm:"foreignKey:CategoryID" json:"category"`
	EntryDate  time.Time `gorm:"type:date;not null;index:idx_entry_property_date" json:"entry_date"`

	Amount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"` // In the property's currency
	Note   string          `gorm:"type:text" json:"note"`

	CreatedBy *uuid.UUID `gorm:"type:uuid" json:"created_by"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Budget holds the monthly food and beverage targets for a property. A nil
// outlet scopes the budget to the whole property.
type Budget struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	PropertyID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_budget_scope" json:"property_id"`
	Property   Property   `gorm:"foreignKey:PropertyID;constraint:OnDelete:CASCADE;" json:"-"`
	OutletID   *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_budget_scope" json:"outlet_id"`
	Year       int        `gorm:"not null;uniqueIndex:idx_budget_scope" json:"year"`
	Month      int        `gorm:"not null;uniqueIndex:idx_budget_scope" json:"month"` // 1-12

	FoodBudget     decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"food_budget"`
	BeverageBudget decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"beverage_budget"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
