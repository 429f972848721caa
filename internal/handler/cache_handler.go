package handler

import (
	"net/http"

	"costcompass/internal/middleware"
	"costcompass/internal/permission"
	"costcompass/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CacheHandler exposes the permission cache for operational inspection.
// The cache has no TTL, so clearing it here is the manual escape hatch when
// something looks stale.
type CacheHandler struct {
	eval *permission.Evaluator
	mw   *middleware.Middleware
}

func NewCacheHandler(eval *permission.Evaluator, mw *middleware.Middleware) *CacheHandler {
	return &CacheHandler{eval: eval, mw: mw}
}

func (h *CacheHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/admin/cache")
	group.Use(h.mw.Authenticate(), h.mw.RequirePermission("system.cache.manage"))
	{
		group.GET("/stats", h.Stats)
		group.POST("/clear", h.Clear)
		group.POST("/warm", h.Warm)
	}
}

// Stats returns hit/miss counters and entry counts
func (h *CacheHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, response.Success(http.StatusOK, h.eval.Cache().GetStats()))
}

type clearCacheRequest struct {
	// Scope is one of: all, role, user, property
	Scope string `json:"scope" binding:"required"`
	ID    string `json:"id"`
}

// Clear invalidates cache entries by scope
func (h *CacheHandler) Clear(c *gin.Context) {
	var req clearCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	cache := h.eval.Cache()
	switch req.Scope {
	case "all":
		cache.Clear()
	case "role":
		if !permission.ValidRole(permission.Role(req.ID)) {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Unknown role"))
			return
		}
		cache.InvalidateRole(permission.Role(req.ID))
	case "user":
		id, err := uuid.Parse(req.ID)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user id"))
			return
		}
		cache.InvalidateUser(id)
	case "property":
		id, err := uuid.Parse(req.ID)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid property id"))
			return
		}
		cache.InvalidateProperty(id)
	default:
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Scope must be one of: all, role, user, property"))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Cache cleared", "scope": req.Scope}))
}

type warmCacheRequest struct {
	UserIDs     []string `json:"user_ids"`
	PropertyIDs []string `json:"property_ids"`
}

// Warm pre-populates the cache for the given users and properties
func (h *CacheHandler) Warm(c *gin.Context) {
	var req warmCacheRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	userIDs := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid user id: "+raw))
			return
		}
		userIDs = append(userIDs, id)
	}
	propertyIDs := make([]uuid.UUID, 0, len(req.PropertyIDs))
	for _, raw := range req.PropertyIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid property id: "+raw))
			return
		}
		propertyIDs = append(propertyIDs, id)
	}

	if err := h.eval.Warm(c.Request.Context(), userIDs, propertyIDs); err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Cache warmed"}))
}
