package handler

import (
	"net/http"

	"costcompass/internal/middleware"
	"costcompass/internal/service"
	"costcompass/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type TemplateHandler struct {
	templateService service.TemplateService
	mw              *middleware.Middleware
}

func NewTemplateHandler(templateService service.TemplateService, mw *middleware.Middleware) *TemplateHandler {
	return &TemplateHandler{templateService: templateService, mw: mw}
}

func (h *TemplateHandler) RegisterRoutes(router *gin.RouterGroup) {
	templates := router.Group("/api/templates")
	templates.Use(h.mw.Authenticate(), h.mw.RequirePermission("system.templates.manage"))
	{
		templates.GET("", h.ListTemplates)
		templates.POST("", h.CreateTemplate)
		templates.DELETE("/:id", h.DeleteTemplate)
		templates.POST("/:id/apply/:role", h.ApplyTemplate)
	}

	delegations := router.Group("/api/delegations")
	delegations.Use(h.mw.Authenticate(), h.mw.RequirePermission("system.delegations.manage"))
	{
		delegations.GET("", h.ListDelegations)
		delegations.POST("", h.CreateDelegation)
		delegations.DELETE("/:id", h.RevokeDelegation)
	}

	compliance := router.Group("/api/compliance")
	compliance.Use(h.mw.Authenticate())
	{
		compliance.GET("/policies", h.mw.RequirePermission("system.compliance.read"), h.ListPolicies)
		compliance.POST("/policies", h.mw.RequireRole(), h.CreatePolicy) // super_admin only
		compliance.GET("/scan", h.mw.RequirePermission("system.compliance.read"), h.Scan)
	}
}

// --- Templates ---

func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := h.templateService.ListTemplates(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, templates))
}

func (h *TemplateHandler) CreateTemplate(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	tpl, err := h.templateService.CreateTemplate(c.Request.Context(), &sub.ID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, tpl))
}

func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := h.templateService.DeleteTemplate(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Template deleted"}))
}

// ApplyTemplate assigns every permission in the template to the role
func (h *TemplateHandler) ApplyTemplate(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	result, err := h.templateService.ApplyTemplateToRole(c.Request.Context(), &sub.ID, c.Param("id"), c.Param("role"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// --- Delegations ---

func (h *TemplateHandler) ListDelegations(c *gin.Context) {
	var userID *uuid.UUID
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user id"))
			return
		}
		userID = &parsed
	}

	delegations, err := h.templateService.ListDelegations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, delegations))
}

func (h *TemplateHandler) CreateDelegation(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.CreateDelegationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	delegation, err := h.templateService.CreateDelegation(c.Request.Context(), sub, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, delegation))
}

func (h *TemplateHandler) RevokeDelegation(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	if err := h.templateService.RevokeDelegation(c.Request.Context(), sub, c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Delegation revoked"}))
}

// --- Compliance ---

func (h *TemplateHandler) ListPolicies(c *gin.Context) {
	policies, err := h.templateService.ListPolicies(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, policies))
}

func (h *TemplateHandler) CreatePolicy(c *gin.Context) {
	var req service.CreatePolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	policy, err := h.templateService.CreatePolicy(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, policy))
}

// Scan reports access grants exceeding active compliance policy caps
func (h *TemplateHandler) Scan(c *gin.Context) {
	violations, err := h.templateService.ComplianceScan(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{
		"violations": violations,
		"count":      len(violations),
	}))
}
