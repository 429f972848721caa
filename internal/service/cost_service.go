package service

import (
	"context"
	"fmt"
	"time"

	"costcompass/internal/model"
	"costcompass/internal/permission"
	"costcompass/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// --- DTOs ---

type CurrencyRequest struct {
	Code         string          `json:"code" binding:"required"`
	Name         string          `json:"name" binding:"required"`
	Symbol       string          `json:"symbol"`
	ExchangeRate decimal.Decimal `json:"exchange_rate" binding:"required"`
	IsDefault    bool            `json:"is_default"`
}

type OutletRequest struct {
	PropertyID string `json:"property_id" binding:"required"`
	Name       string `json:"name" binding:"required"`
	IsActive   *bool  `json:"is_active"`
}

type CategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Type        string `json:"type" binding:"required"`
	Description string `json:"description"`
}

type CostEntryRequest struct {
	PropertyID string          `json:"property_id" binding:"required"`
	OutletID   string          `json:"outlet_id" binding:"required"`
	CategoryID string          `json:"category_id" binding:"required"`
	EntryDate  string          `json:"entry_date" binding:"required"` // YYYY-MM-DD
	Amount     decimal.Decimal `json:"amount" binding:"required"`
	Note       string          `json:"note"`
}

type CostEntryResponse struct {
	ID           string          `json:"id"`
	PropertyID   string          `json:"property_id"`
	OutletID     string          `json:"outlet_id"`
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name,omitempty"`
	CategoryType string          `json:"category_type,omitempty"`
	EntryDate    string          `json:"entry_date"`
	Amount       decimal.Decimal `json:"amount"`
	Note         string          `json:"note,omitempty"`
}

type BudgetRequest struct {
	PropertyID     string          `json:"property_id" binding:"required"`
	OutletID       *string         `json:"outlet_id"`
	Year           int             `json:"year" binding:"required"`
	Month          int             `json:"month" binding:"required"`
	FoodBudget     decimal.Decimal `json:"food_budget"`
	BeverageBudget decimal.Decimal `json:"beverage_budget"`
}

// VarianceLine compares one category type's actual spend to its budget.
type VarianceLine struct {
	Budget      decimal.Decimal `json:"budget"`
	Actual      decimal.Decimal `json:"actual"`
	Variance    decimal.Decimal `json:"variance"`
	VariancePct decimal.Decimal `json:"variance_pct"`
}

type VarianceReport struct {
	PropertyID string       `json:"property_id"`
	OutletID   *string      `json:"outlet_id,omitempty"`
	Year       int          `json:"year"`
	Month      int          `json:"month"`
	Food       VarianceLine `json:"food"`
	Beverage   VarianceLine `json:"beverage"`
	Total      VarianceLine `json:"total"`
}

// --- Interface ---

// CostService covers the cost-management domain: currencies, outlets,
// categories, daily entries, budgets and the monthly variance report. Every
// property-scoped operation verifies the caller's access level or applies
// their isolation filter before touching data.
type CostService interface {
	ListCurrencies(ctx context.Context) ([]model.Currency, error)
	UpsertCurrency(ctx context.Context, req CurrencyRequest) (*model.Currency, error)

	ListOutlets(ctx context.Context, sub permission.Subject, propertyID string) ([]model.Outlet, error)
	CreateOutlet(ctx context.Context, sub permission.Subject, req OutletRequest) (*model.Outlet, error)

	ListCategories(ctx context.Context) ([]model.Category, error)
	CreateCategory(ctx context.Context, req CategoryRequest) (*model.Category, error)

	CreateEntry(ctx context.Context, sub permission.Subject, req CostEntryRequest) (*CostEntryResponse, error)
	UpdateEntry(ctx context.Context, sub permission.Subject, id string, req CostEntryRequest) (*CostEntryResponse, error)
	DeleteEntry(ctx context.Context, sub permission.Subject, id string) error
	ListEntries(ctx context.Context, sub permission.Subject, from, to string, page, limit int) ([]CostEntryResponse, int64, error)

	UpsertBudget(ctx context.Context, sub permission.Subject, req BudgetRequest) (*model.Budget, error)
	Variance(ctx context.Context, sub permission.Subject, propertyID string, outletID *string, year, month int) (*VarianceReport, error)
}

type costService struct {
	repo  repository.CostRepository
	tm    repository.TransactionManager
	eval  *permission.Evaluator
	audit AuditService
}

func NewCostService(
	repo repository.CostRepository,
	tm repository.TransactionManager,
	eval *permission.Evaluator,
	audit AuditService,
) CostService {
	return &costService{repo: repo, tm: tm, eval: eval, audit: audit}
}

// --- Currencies and categories ---

func (s *costService) ListCurrencies(ctx context.Context) ([]model.Currency, error) {
	return s.repo.ListCurrencies(ctx)
}

func (s *costService) UpsertCurrency(ctx context.Context, req CurrencyRequest) (*model.Currency, error) {
	if req.ExchangeRate.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("exchange rate must be positive")
	}
	currency := model.Currency{
		Code:         req.Code,
		Name:         req.Name,
		Symbol:       req.Symbol,
		ExchangeRate: req.ExchangeRate,
		IsDefault:    req.IsDefault,
	}
	if err := s.repo.UpsertCurrency(ctx, &currency); err != nil {
		return nil, fmt.Errorf("failed to upsert currency: %w", err)
	}
	return &currency, nil
}

func (s *costService) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.repo.ListCategories(ctx)
}

func (s *costService) CreateCategory(ctx context.Context, req CategoryRequest) (*model.Category, error) {
	if req.Type != model.CategoryTypeFood && req.Type != model.CategoryTypeBeverage {
		return nil, fmt.Errorf("category type must be '%s' or '%s'", model.CategoryTypeFood, model.CategoryTypeBeverage)
	}
	category := model.Category{Name: req.Name, Type: req.Type, Description: req.Description}
	if err := s.repo.CreateCategory(ctx, &category); err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return &category, nil
}

// --- Outlets ---

func (s *costService) ListOutlets(ctx context.Context, sub permission.Subject, propertyID string) ([]model.Outlet, error) {
	propID, err := uuid.Parse(propertyID)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", err)
	}
	if err := s.eval.RequirePropertyAccess(ctx, sub, propID, permission.LevelReadOnly); err != nil {
		return nil, err
	}
	return s.repo.ListOutlets(ctx, propID)
}

func (s *costService) CreateOutlet(ctx context.Context, sub permission.Subject, req OutletRequest) (*model.Outlet, error) {
	propID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", err)
	}
	if err := s.eval.RequirePropertyAccess(ctx, sub, propID, permission.LevelManagement); err != nil {
		return nil, err
	}

	outlet := model.Outlet{PropertyID: propID, Name: req.Name, IsActive: true}
	if req.IsActive != nil {
		outlet.IsActive = *req.IsActive
	}
	if err := s.repo.CreateOutlet(ctx, &outlet); err != nil {
		return nil, fmt.Errorf("failed to create outlet: %w", err)
	}
	return &outlet, nil
}

// --- Daily entries ---

func (s *costService) CreateEntry(ctx context.Context, sub permission.Subject, req CostEntryRequest) (*CostEntryResponse, error) {
	entry, err := s.buildEntry(ctx, sub, req)
	if err != nil {
		return nil, err
	}
	entry.CreatedBy = &sub.ID

	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.CreateEntry(txCtx, entry)
	}); err != nil {
		return nil, fmt.Errorf("failed to create cost entry: %w", err)
	}

	s.audit.Record(ctx, &sub.ID, model.ActionCreateCostEntry, "cost_entry", entry.ID.String(), req)
	resp := toEntryResponse(*entry)
	return &resp, nil
}

func (s *costService) UpdateEntry(ctx context.Context, sub permission.Subject, id string, req CostEntryRequest) (*CostEntryResponse, error) {
	entryID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid entry id: %w", err)
	}
	existing, err := s.repo.FindEntryByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("cost entry not found: %w", err)
	}
	// Access is checked against the stored row, not the payload, so an edit
	// cannot move an entry into a property the caller lacks.
	if err := s.eval.RequirePropertyAccess(ctx, sub, existing.PropertyID, permission.LevelDataEntry); err != nil {
		return nil, err
	}

	updated, err := s.buildEntry(ctx, sub, req)
	if err != nil {
		return nil, err
	}
	if updated.PropertyID != existing.PropertyID {
		return nil, fmt.Errorf("cost entry cannot change property")
	}

	existing.OutletID = updated.OutletID
	existing.CategoryID = updated.CategoryID
	existing.EntryDate = updated.EntryDate
	existing.Amount = updated.Amount
	existing.Note = updated.Note

	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.UpdateEntry(txCtx, existing)
	}); err != nil {
		return nil, fmt.Errorf("failed to update cost entry: %w", err)
	}

	s.audit.Record(ctx, &sub.ID, model.ActionUpdateCostEntry, "cost_entry", id, req)
	resp := toEntryResponse(*existing)
	return &resp, nil
}

func (s *costService) DeleteEntry(ctx context.Context, sub permission.Subject, id string) error {
	entryID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid entry id: %w", err)
	}
	existing, err := s.repo.FindEntryByID(ctx, entryID)
	if err != nil {
		return fmt.Errorf("cost entry not found: %w", err)
	}
	if err := s.eval.RequirePropertyAccess(ctx, sub, existing.PropertyID, permission.LevelDataEntry); err != nil {
		return err
	}

	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.DeleteEntry(txCtx, entryID)
	}); err != nil {
		return fmt.Errorf("failed to delete cost entry: %w", err)
	}

	s.audit.Record(ctx, &sub.ID, model.ActionDeleteCostEntry, "cost_entry", id, nil)
	return nil
}

// ListEntries returns entries for the period restricted to the caller's
// accessible properties.
func (s *costService) ListEntries(ctx context.Context, sub permission.Subject, from, to string, page, limit int) ([]CostEntryResponse, int64, error) {
	fromDate, err := time.Parse(dateLayout, from)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid from date: %w", err)
	}
	toDate, err := time.Parse(dateLayout, to)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid to date: %w", err)
	}
	if toDate.Before(fromDate) {
		return nil, 0, fmt.Errorf("period end before start")
	}
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 50
	}

	filter, err := s.eval.PropertiesFilter(ctx, sub, permission.LevelReadOnly)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build property filter: %w", err)
	}

	entries, total, err := s.repo.ListEntries(ctx, filter.Apply, fromDate, toDate, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch cost entries: %w", err)
	}

	res := make([]CostEntryResponse, 0, len(entries))
	for _, e := range entries {
		res = append(res, toEntryResponse(e))
	}
	return res, total, nil
}

// --- Budgets and variance ---

func (s *costService) UpsertBudget(ctx context.Context, sub permission.Subject, req BudgetRequest) (*model.Budget, error) {
	propID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", err)
	}
	if req.Month < 1 || req.Month > 12 {
		return nil, fmt.Errorf("month must be 1-12")
	}
	if req.FoodBudget.IsNegative() || req.BeverageBudget.IsNegative() {
		return nil, fmt.Errorf("budget amounts cannot be negative")
	}
	if err := s.eval.RequirePropertyAccess(ctx, sub, propID, permission.LevelManagement); err != nil {
		return nil, err
	}

	budget := model.Budget{
		PropertyID:     propID,
		Year:           req.Year,
		Month:          req.Month,
		FoodBudget:     req.FoodBudget,
		BeverageBudget: req.BeverageBudget,
	}
	if req.OutletID != nil {
		outletID, err := uuid.Parse(*req.OutletID)
		if err != nil {
			return nil, fmt.Errorf("invalid outlet id: %w", err)
		}
		budget.OutletID = &outletID
	}

	if err := s.tm.RunInTx(ctx, func(txCtx context.Context) error {
		return s.repo.UpsertBudget(txCtx, &budget)
	}); err != nil {
		return nil, fmt.Errorf("failed to upsert budget: %w", err)
	}

	s.audit.Record(ctx, &sub.ID, model.ActionUpsertBudget, "budget", budget.ID.String(), req)
	return &budget, nil
}

func (s *costService) Variance(ctx context.Context, sub permission.Subject, propertyID string, outletID *string, year, month int) (*VarianceReport, error) {
	propID, err := uuid.Parse(propertyID)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", err)
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("month must be 1-12")
	}
	if err := s.eval.RequirePropertyAccess(ctx, sub, propID, permission.LevelReadOnly); err != nil {
		return nil, err
	}

	var outID *uuid.UUID
	if outletID != nil {
		parsed, err := uuid.Parse(*outletID)
		if err != nil {
			return nil, fmt.Errorf("invalid outlet id: %w", err)
		}
		outID = &parsed
	}

	budget, err := s.repo.FindBudget(ctx, propID, outID, year, month)
	if err != nil {
		// A missing budget still yields a report, with zero targets.
		budget = &model.Budget{FoodBudget: decimal.Zero, BeverageBudget: decimal.Zero}
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)
	totals, err := s.repo.SumEntries(ctx, propID, outID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to sum cost entries: %w", err)
	}

	report := &VarianceReport{
		PropertyID: propertyID,
		OutletID:   outletID,
		Year:       year,
		Month:      month,
		Food:       computeVariance(totals.Food, budget.FoodBudget),
		Beverage:   computeVariance(totals.Beverage, budget.BeverageBudget),
		Total: computeVariance(
			totals.Food.Add(totals.Beverage),
			budget.FoodBudget.Add(budget.BeverageBudget),
		),
	}
	return report, nil
}

// computeVariance builds one report line. The percentage is against budget
// and rounds to two decimals; a zero budget yields a zero percentage rather
// than a division error.
func computeVariance(actual, budget decimal.Decimal) VarianceLine {
	variance := actual.Sub(budget)
	pct := decimal.Zero
	if !budget.IsZero() {
		pct = variance.Div(budget).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return VarianceLine{
		Budget:      budget,
		Actual:      actual,
		Variance:    variance,
		VariancePct: pct,
	}
}

// --- Helpers ---

// buildEntry validates the payload and the caller's data_entry access on the
// target property.
func (s *costService) buildEntry(ctx context.Context, sub permission.Subject, req CostEntryRequest) (*model.DailyCostEntry, error) {
	propID, err := uuid.Parse(req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", err)
	}
	outletID, err := uuid.Parse(req.OutletID)
	if err != nil {
		return nil, fmt.Errorf("invalid outlet id: %w", err)
	}
	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("invalid category id: %w", err)
	}
	entryDate, err := time.Parse(dateLayout, req.EntryDate)
	if err != nil {
		return nil, fmt.Errorf("invalid entry date: %w", err)
	}
	if req.Amount.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	if err := s.eval.RequirePropertyAccess(ctx, sub, propID, permission.LevelDataEntry); err != nil {
		return nil, err
	}

	outlet, err := s.repo.FindOutletByID(ctx, outletID)
	if err != nil {
		return nil, fmt.Errorf("outlet not found: %w", err)
	}
	if outlet.PropertyID != propID {
		return nil, fmt.Errorf("outlet does not belong to the property")
	}
	if _, err := s.repo.FindCategoryByID(ctx, categoryID); err != nil {
		return nil, fmt.Errorf("category not found: %w", err)
	}

	return &model.DailyCostEntry{
		PropertyID: propID,
		OutletID:   outletID,
		CategoryID: categoryID,
		EntryDate:  entryDate,
		Amount:     req.Amount,
		Note:       req.Note,
	}, nil
}

func toEntryResponse(e model.DailyCostEntry) CostEntryResponse {
	return CostEntryResponse{
		ID:           e.ID.String(),
		PropertyID:   e.PropertyID.String(),
		OutletID:     e.OutletID.String(),
		CategoryID:   e.CategoryID.String(),
		CategoryName: e.Category.Name,
		CategoryType: e.Category.Type,
		EntryDate:    e.EntryDate.Format(dateLayout),
		Amount:       e.Amount,
		Note:         e.Note,
	}
}
