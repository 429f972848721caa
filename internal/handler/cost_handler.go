package handler

import (
	"net/http"
	"strconv"

	"costcompass/internal/middleware"
	"costcompass/internal/service"
	"costcompass/pkg/pagination"
	"costcompass/pkg/response"

	"github.com/gin-gonic/gin"
)

type CostHandler struct {
	costService service.CostService
	mw          *middleware.Middleware
}

func NewCostHandler(costService service.CostService, mw *middleware.Middleware) *CostHandler {
	return &CostHandler{costService: costService, mw: mw}
}

func (h *CostHandler) RegisterRoutes(router *gin.RouterGroup) {
	costs := router.Group("/api/costs")
	costs.Use(h.mw.Authenticate())
	{
		costs.GET("/entries", h.mw.RequireAnyPermission("financial.food_costs.read", "financial.beverage_costs.read"), h.ListEntries)
		costs.POST("/entries", h.mw.RequireAnyPermission("financial.food_costs.create", "financial.beverage_costs.create"), h.CreateEntry)
		costs.PUT("/entries/:id", h.mw.RequireAnyPermission("financial.food_costs.update", "financial.beverage_costs.update"), h.UpdateEntry)
		costs.DELETE("/entries/:id", h.mw.RequireAnyPermission("financial.food_costs.delete", "financial.beverage_costs.delete"), h.DeleteEntry)

		costs.POST("/budgets", h.mw.RequirePermission("financial.budgets.manage"), h.UpsertBudget)
		costs.GET("/variance", h.mw.RequirePermission("reports.variance.read"), h.Variance)
	}

	settings := router.Group("/api/settings")
	settings.Use(h.mw.Authenticate())
	{
		settings.GET("/currencies", h.mw.RequirePermission("settings.currencies.read"), h.ListCurrencies)
		settings.PUT("/currencies", h.mw.RequirePermission("settings.currencies.manage"), h.UpsertCurrency)
		settings.GET("/categories", h.mw.RequirePermission("settings.categories.read"), h.ListCategories)
		settings.POST("/categories", h.mw.RequirePermission("settings.categories.manage"), h.CreateCategory)
		settings.GET("/outlets/:propertyId", h.mw.RequirePermission("settings.outlets.read"), h.ListOutlets)
		settings.POST("/outlets", h.mw.RequirePermission("settings.outlets.manage"), h.CreateOutlet)
	}
}

// --- Entries ---

// ListEntries handles GET /api/costs/entries?from=&to=&page=&limit=
func (h *CostHandler) ListEntries(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	p := pagination.Parse(c)
	entries, total, err := h.costService.ListEntries(c.Request.Context(), sub, c.Query("from"), c.Query("to"), p.Page, p.Limit)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, entries, p.Page, p.Limit, total))
}

// CreateEntry records one day's cost for an outlet and category
func (h *CostHandler) CreateEntry(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.CostEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	entry, err := h.costService.CreateEntry(c.Request.Context(), sub, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, entry))
}

// UpdateEntry edits an existing cost entry
func (h *CostHandler) UpdateEntry(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.CostEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	entry, err := h.costService.UpdateEntry(c.Request.Context(), sub, c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, entry))
}

// DeleteEntry removes a cost entry
func (h *CostHandler) DeleteEntry(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	if err := h.costService.DeleteEntry(c.Request.Context(), sub, c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Entry deleted"}))
}

// --- Budgets and variance ---

// UpsertBudget creates or replaces a monthly budget
func (h *CostHandler) UpsertBudget(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.BudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	budget, err := h.costService.UpsertBudget(c.Request.Context(), sub, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, budget))
}

// Variance handles GET /api/costs/variance?property_id=&outlet_id=&year=&month=
// @Summary      Budget variance report
// @Description  Compares actual food and beverage spend against the monthly budget
// @Tags         costs
// @Produce      json
// @Param        property_id  query     string  true   "Property ID"
// @Param        outlet_id    query     string  false  "Outlet ID"
// @Param        year         query     int     true   "Year"
// @Param        month        query     int     true   "Month 1-12"
// @Success      200          {object}  response.Response{data=service.VarianceReport}
// @Failure      400          {object}  response.Response
// @Failure      403          {object}  response.Response
// @Router       /api/costs/variance [get]
func (h *CostHandler) Variance(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	year, _ := strconv.Atoi(c.Query("year"))
	month, _ := strconv.Atoi(c.Query("month"))

	var outletID *string
	if v := c.Query("outlet_id"); v != "" {
		outletID = &v
	}

	report, err := h.costService.Variance(c.Request.Context(), sub, c.Query("property_id"), outletID, year, month)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// --- Settings ---

func (h *CostHandler) ListCurrencies(c *gin.Context) {
	currencies, err := h.costService.ListCurrencies(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, currencies))
}

func (h *CostHandler) UpsertCurrency(c *gin.Context) {
	var req service.CurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	currency, err := h.costService.UpsertCurrency(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, currency))
}

func (h *CostHandler) ListCategories(c *gin.Context) {
	categories, err := h.costService.ListCategories(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, categories))
}

func (h *CostHandler) CreateCategory(c *gin.Context) {
	var req service.CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	category, err := h.costService.CreateCategory(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, category))
}

func (h *CostHandler) ListOutlets(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	outlets, err := h.costService.ListOutlets(c.Request.Context(), sub, c.Param("propertyId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, outlets))
}

func (h *CostHandler) CreateOutlet(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.OutletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	outlet, err := h.costService.CreateOutlet(c.Request.Context(), sub, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, outlet))
}
