package handler

import (
	"net/http"

	"costcompass/internal/middleware"
	"costcompass/internal/service"
	"costcompass/pkg/response"

	"github.com/gin-gonic/gin"
)

type PropertyHandler struct {
	propertyService service.PropertyService
	mw              *middleware.Middleware
}

func NewPropertyHandler(propertyService service.PropertyService, mw *middleware.Middleware) *PropertyHandler {
	return &PropertyHandler{propertyService: propertyService, mw: mw}
}

func (h *PropertyHandler) RegisterRoutes(router *gin.RouterGroup) {
	props := router.Group("/api/properties")
	props.Use(h.mw.Authenticate())
	{
		props.GET("", h.mw.RequirePermission("properties.read"), h.ListProperties)
		props.GET("/:id", h.mw.RequirePermission("properties.read"), h.GetProperty)
		props.POST("", h.mw.RequirePermission("properties.manage"), h.CreateProperty)
		props.PUT("/:id", h.mw.RequirePermission("properties.manage"), h.UpdateProperty)

		// Access grant administration
		props.GET("/:id/access", h.mw.RequirePermission("properties.access.read"), h.ListAccess)
		props.POST("/:id/access", h.mw.RequirePermission("properties.access.manage"), h.GrantAccess)
		props.PUT("/:id/access/:userId", h.mw.RequirePermission("properties.access.manage"), h.UpdateAccess)
		props.DELETE("/:id/access/:userId", h.mw.RequirePermission("properties.access.manage"), h.RevokeAccess)
	}

	access := router.Group("/api/users/:id/access")
	access.Use(h.mw.Authenticate(), h.mw.RequirePermission("properties.access.read"))
	{
		access.GET("", h.ListUserAccess)
	}
}

// ListProperties returns the properties visible to the caller
func (h *PropertyHandler) ListProperties(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	properties, err := h.propertyService.ListProperties(c.Request.Context(), sub)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, properties))
}

// GetProperty returns one property
func (h *PropertyHandler) GetProperty(c *gin.Context) {
	property, err := h.propertyService.GetProperty(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, property))
}

// CreateProperty creates a property
func (h *PropertyHandler) CreateProperty(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	property, err := h.propertyService.CreateProperty(c.Request.Context(), &sub.ID, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, property))
}

// UpdateProperty updates a property's details
func (h *PropertyHandler) UpdateProperty(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.UpdatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	property, err := h.propertyService.UpdateProperty(c.Request.Context(), &sub.ID, c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, property))
}

// ListAccess returns the live access grants on a property
func (h *PropertyHandler) ListAccess(c *gin.Context) {
	grants, err := h.propertyService.ListAccess(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, grants))
}

// ListUserAccess returns one user's property grants
func (h *PropertyHandler) ListUserAccess(c *gin.Context) {
	grants, err := h.propertyService.ListUserAccess(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, grants))
}

// GrantAccess handles POST /api/properties/:id/access
// @Summary      Grant property access
// @Description  Grants a user an access level on a property, optionally expiring
// @Tags         properties
// @Accept       json
// @Produce      json
// @Param        id       path      string                       true  "Property ID"
// @Param        payload  body      service.GrantAccessRequest   true  "Grant"
// @Success      200      {object}  response.Response{data=service.PropertyAccessResponse}
// @Failure      400      {object}  response.Response
// @Failure      403      {object}  response.Response
// @Router       /api/properties/{id}/access [post]
func (h *PropertyHandler) GrantAccess(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.GrantAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	grant, err := h.propertyService.GrantAccess(c.Request.Context(), &sub.ID, c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, grant))
}

// UpdateAccess changes a user's access level or expiry on a property
func (h *PropertyHandler) UpdateAccess(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.UpdateAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	grant, err := h.propertyService.UpdateAccess(c.Request.Context(), &sub.ID, c.Param("id"), c.Param("userId"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, grant))
}

// RevokeAccess removes a user's access to a property
func (h *PropertyHandler) RevokeAccess(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	if err := h.propertyService.RevokeAccess(c.Request.Context(), &sub.ID, c.Param("id"), c.Param("userId")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Access revoked"}))
}
