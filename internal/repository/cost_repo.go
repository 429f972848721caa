package repository

import (
	"context"
	"errors"
	"time"

	"costcompass/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CostTotals aggregates entry amounts by category type over a period.
type CostTotals struct {
	Food     decimal.Decimal
	Beverage decimal.Decimal
}

// CostRepository covers outlets, categories, currencies, daily cost entries
// and budgets.
type CostRepository interface {
	// Currencies
	ListCurrencies(ctx context.Context) ([]model.Currency, error)
	UpsertCurrency(ctx context.Context, currency *model.Currency) error

	// Outlets
	ListOutlets(ctx context.Context, propertyID uuid.UUID) ([]model.Outlet, error)
	CreateOutlet(ctx context.Context, outlet *model.Outlet) error
	UpdateOutlet(ctx context.Context, outlet *model.Outlet) error
	FindOutletByID(ctx context.Context, id uuid.UUID) (*model.Outlet, error)

	// Categories
	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, category *model.Category) error
	FindCategoryByID(ctx context.Context, id uuid.UUID) (*model.Category, error)

	// Daily cost entries
	CreateEntry(ctx context.Context, entry *model.DailyCostEntry) error
	UpdateEntry(ctx context.Context, entry *model.DailyCostEntry) error
	DeleteEntry(ctx context.Context, id uuid.UUID) error
	FindEntryByID(ctx context.Context, id uuid.UUID) (*model.DailyCostEntry, error)
	ListEntries(ctx context.Context, scope func(*gorm.DB) *gorm.DB, from, to time.Time, page, limit int) ([]model.DailyCostEntry, int64, error)
	SumEntries(ctx context.Context, propertyID uuid.UUID, outletID *uuid.UUID, from, to time.Time) (CostTotals, error)

	// Budgets
	UpsertBudget(ctx context.Context, budget *model.Budget) error
	FindBudget(ctx context.Context, propertyID uuid.UUID, outletID *uuid.UUID, year, month int) (*model.Budget, error)
}

type costRepository struct {
	db *gorm.DB
}

func NewCostRepository(db *gorm.DB) CostRepository {
	return &costRepository{db: db}
}

func (r *costRepository) ListCurrencies(ctx context.Context) ([]model.Currency, error) {
	var currencies []model.Currency
	if err := GetDB(ctx, r.db).Order("code asc").Find(&currencies).Error; err != nil {
		return nil, err
	}
	return currencies, nil
}

func (r *costRepository) UpsertCurrency(ctx context.Context, currency *model.Currency) error {
	db := GetDB(ctx, r.db)
	var existing model.Currency
	if err := db.Where("code = ?", currency.Code).First(&existing).Error; err != nil {
		return db.Create(currency).Error
	}
	currency.ID = existing.ID
	currency.CreatedAt = existing.CreatedAt
	return db.Save(currency).Error
}

func (r *costRepository) ListOutlets(ctx context.Context, propertyID uuid.UUID) ([]model.Outlet, error) {
	var outlets []model.Outlet
	if err := GetDB(ctx, r.db).Where("property_id = ?", propertyID).Order("name asc").Find(&outlets).Error; err != nil {
		return nil, err
	}
	return outlets, nil
}

func (r *costRepository) CreateOutlet(ctx context.Context, outlet *model.Outlet) error {
	return GetDB(ctx, r.db).Create(outlet).Error
}

func (r *costRepository) UpdateOutlet(ctx context.Context, outlet *model.Outlet) error {
	return GetDB(ctx, r.db).Save(outlet).Error
}

func (r *costRepository) FindOutletByID(ctx context.Context, id uuid.UUID) (*model.Outlet, error) {
	var outlet model.Outlet
	if err := GetDB(ctx, r.db).First(&outlet, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &outlet, nil
}

func (r *costRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	var categories []model.Category
	if err := GetDB(ctx, r.db).Order("type asc, name asc").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *costRepository) CreateCategory(ctx context.Context, category *model.Category) error {
	return GetDB(ctx, r.db).Create(category).Error
}

func (r *costRepository) FindCategoryByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	var category model.Category
	if err := GetDB(ctx, r.db).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *costRepository) CreateEntry(ctx context.Context, entry *model.DailyCostEntry) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *costRepository) UpdateEntry(ctx context.Context, entry *model.DailyCostEntry) error {
	return GetDB(ctx, r.db).Save(entry).Error
}

func (r *costRepository) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.DailyCostEntry{}).Error
}

func (r *costRepository) FindEntryByID(ctx context.Context, id uuid.UUID) (*model.DailyCostEntry, error) {
	var entry model.DailyCostEntry
	if err := GetDB(ctx, r.db).Preload("Category").First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListEntries pages cost entries in a period. The scope function carries
// the caller's property isolation filter; passing an unscoped query here is
// a data leak.
func (r *costRepository) ListEntries(ctx context.Context, scope func(*gorm.DB) *gorm.DB, from, to time.Time, page, limit int) ([]model.DailyCostEntry, int64, error) {
	var entries []model.DailyCostEntry
	var total int64

	db := scope(GetDB(ctx, r.db).Model(&model.DailyCostEntry{})).
		Where("entry_date >= ? AND entry_date <= ?", from, to)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Category").Order("entry_date desc, created_at desc").Offset(offset).Limit(limit).Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *costRepository) SumEntries(ctx context.Context, propertyID uuid.UUID, outletID *uuid.UUID, from, to time.Time) (CostTotals, error) {
	type row struct {
		Type  string
		Total decimal.Decimal
	}
	var rows []row

	db := GetDB(ctx, r.db).
		Table("daily_cost_entries e").
		Select("c.type AS type, COALESCE(SUM(e.amount), 0) AS total").
		Joins("INNER JOIN categories c ON c.id = e.category_id").
		Where("e.property_id = ? AND e.entry_date >= ? AND e.entry_date <= ?", propertyID, from, to)
	if outletID != nil {
		db = db.Where("e.outlet_id = ?", *outletID)
	}
	if err := db.Group("c.type").Scan(&rows).Error; err != nil {
		return CostTotals{}, err
	}

	totals := CostTotals{Food: decimal.Zero, Beverage: decimal.Zero}
	for _, r := range rows {
		switch r.Type {
		case model.CategoryTypeFood:
			totals.Food = r.Total
		case model.CategoryTypeBeverage:
			totals.Beverage = r.Total
		}
	}
	return totals, nil
}

func (r *costRepository) UpsertBudget(ctx context.Context, budget *model.Budget) error {
	db := GetDB(ctx, r.db)
	existing, err := r.FindBudget(ctx, budget.PropertyID, budget.OutletID, budget.Year, budget.Month)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return db.Create(budget).Error
		}
		return err
	}
	existing.FoodBudget = budget.FoodBudget
	existing.BeverageBudget = budget.BeverageBudget
	if err := db.Save(existing).Error; err != nil {
		return err
	}
	*budget = *existing
	return nil
}

func (r *costRepository) FindBudget(ctx context.Context, propertyID uuid.UUID, outletID *uuid.UUID, year, month int) (*model.Budget, error) {
	db := GetDB(ctx, r.db).Where("property_id = ? AND year = ? AND month = ?", propertyID, year, month)
	if outletID == nil {
		db = db.Where("outlet_id IS NULL")
	} else {
		db = db.Where("outlet_id = ?", *outletID)
	}

	var budget model.Budget
	if err := db.First(&budget).Error; err != nil {
		return nil, err
	}
	return &budget, nil
}
