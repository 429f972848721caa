package handler

import (
	"net/http"

	"costcompass/internal/middleware"
	"costcompass/internal/service"
	"costcompass/pkg/response"

	"github.com/gin-gonic/gin"
)

type RoleHandler struct {
	rolePermService service.RolePermissionService
	mw              *middleware.Middleware
}

func NewRoleHandler(rolePermService service.RolePermissionService, mw *middleware.Middleware) *RoleHandler {
	return &RoleHandler{rolePermService: rolePermService, mw: mw}
}

func (h *RoleHandler) RegisterRoutes(router *gin.RouterGroup) {
	roles := router.Group("/api/roles")
	roles.Use(h.mw.Authenticate())
	{
		roles.GET("", h.mw.RequirePermission("roles.read"), h.ListRoles)
		roles.GET("/:role", h.mw.RequirePermission("roles.read"), h.GetRole)
		roles.POST("/:role/permissions/:permissionId", h.mw.RequirePermission("roles.manage"), h.AssignPermission)
		roles.DELETE("/:role/permissions/:permissionId", h.mw.RequirePermission("roles.manage"), h.RemovePermission)
		roles.POST("/:role/permissions", h.mw.RequirePermission("roles.manage"), h.BulkAssign)
		roles.DELETE("/:role/permissions", h.mw.RequirePermission("roles.manage"), h.BulkRemove)
		roles.POST("/:role/copy-from/:fromRole", h.mw.RequirePermission("roles.manage"), h.CopyPermissions)
	}

	// Permission catalog
	perms := router.Group("/api/permissions")
	perms.Use(h.mw.Authenticate(), h.mw.RequirePermission("roles.read"))
	{
		perms.GET("", h.ListCatalog)
	}
}

// ListRoles returns every role with its current permission set
func (h *RoleHandler) ListRoles(c *gin.Context) {
	roles, err := h.rolePermService.ListRoles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, roles))
}

// GetRole returns one role's permission set
func (h *RoleHandler) GetRole(c *gin.Context) {
	role, err := h.rolePermService.GetRole(c.Request.Context(), c.Param("role"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, role))
}

// ListCatalog returns all available permissions
func (h *RoleHandler) ListCatalog(c *gin.Context) {
	perms, err := h.rolePermService.ListCatalog(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, perms))
}

// AssignPermission adds one permission to a role. Assigning an already
// granted permission succeeds and reports already_assigned.
func (h *RoleHandler) AssignPermission(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	result, err := h.rolePermService.AssignPermission(c.Request.Context(), &sub.ID, c.Param("role"), c.Param("permissionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// RemovePermission removes one permission from a role
func (h *RoleHandler) RemovePermission(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	if err := h.rolePermService.RemovePermission(c.Request.Context(), &sub.ID, c.Param("role"), c.Param("permissionId")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Permission removed"}))
}

// BulkAssign adds a batch of permissions to a role
func (h *RoleHandler) BulkAssign(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.BulkPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.rolePermService.BulkAssign(c.Request.Context(), &sub.ID, c.Param("role"), req.PermissionIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// BulkRemove removes a batch of permissions from a role
func (h *RoleHandler) BulkRemove(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.BulkPermissionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	result, err := h.rolePermService.BulkRemove(c.Request.Context(), &sub.ID, c.Param("role"), req.PermissionIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// CopyPermissions copies another role's permissions onto the target role
func (h *RoleHandler) CopyPermissions(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	result, err := h.rolePermService.CopyRolePermissions(c.Request.Context(), &sub.ID, c.Param("fromRole"), c.Param("role"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}
