package handler

import (
	"net/http"

	"costcompass/internal/middleware"
	"costcompass/internal/service"
	"costcompass/pkg/pagination"
	"costcompass/pkg/response"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	userService service.UserService
	mw          *middleware.Middleware
}

// NewUserHandler sets up the routing dependencies for User endpoints
func NewUserHandler(userService service.UserService, mw *middleware.Middleware) *UserHandler {
	return &UserHandler{userService: userService, mw: mw}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/api/users")
	users.Use(h.mw.Authenticate())
	{
		users.GET("", h.mw.RequirePermission("users.read"), h.ListUsers)
		users.GET("/:id", h.mw.RequirePermission("users.read"), h.GetUser)
		users.POST("", h.mw.RequirePermission("users.manage"), h.CreateUser)
		users.PUT("/:id", h.mw.RequirePermission("users.manage"), h.UpdateUser)
		users.POST("/:id/deactivate", h.mw.RequirePermission("users.deactivate"), h.DeactivateUser)
		users.POST("/:id/permissions/:permissionId", h.mw.RequirePermission("users.permissions.manage"), h.GrantPermission)
		users.DELETE("/:id/permissions/:permissionId", h.mw.RequirePermission("users.permissions.manage"), h.RevokePermission)
	}
}

// CreateUser handles POST /api/users
// @Summary      Create user
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateUserRequest  true  "User"
// @Success      201      {object}  response.Response{data=service.UserResponse}
// @Failure      400      {object}  response.Response
// @Router       /api/users [post]
func (h *UserHandler) CreateUser(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.CreateUser(c.Request.Context(), sub, req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, user))
}

// ListUsers returns a paginated list of users
func (h *UserHandler) ListUsers(c *gin.Context) {
	p := pagination.Parse(c)
	users, total, err := h.userService.ListUsers(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, users, p.Page, p.Limit, total))
}

// GetUser returns a single user with their explicit grants
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUserByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// UpdateUser updates a user's profile and role
func (h *UserHandler) UpdateUser(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	var req service.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	user, err := h.userService.UpdateUser(c.Request.Context(), sub, c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, user))
}

// DeactivateUser disables an account. Accounts are never deleted.
func (h *UserHandler) DeactivateUser(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	if err := h.userService.DeactivateUser(c.Request.Context(), sub, c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "User deactivated successfully"}))
}

// GrantPermission adds an explicit permission grant on top of the user's role
func (h *UserHandler) GrantPermission(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	if err := h.userService.GrantPermission(c.Request.Context(), &sub.ID, c.Param("id"), c.Param("permissionId")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Permission granted"}))
}

// RevokePermission removes an explicit permission grant
func (h *UserHandler) RevokePermission(c *gin.Context) {
	sub, ok := subject(c)
	if !ok {
		return
	}

	if err := h.userService.RevokePermission(c.Request.Context(), &sub.ID, c.Param("id"), c.Param("permissionId")); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Permission revoked"}))
}
