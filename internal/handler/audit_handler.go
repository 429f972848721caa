package handler

import (
	"net/http"

	"costcompass/internal/middleware"
	"costcompass/internal/service"
	"costcompass/pkg/pagination"
	"costcompass/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
	mw           *middleware.Middleware
}

func NewAuditHandler(auditService service.AuditService, mw *middleware.Middleware) *AuditHandler {
	return &AuditHandler{auditService: auditService, mw: mw}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/api/audit-logs")
	group.Use(h.mw.Authenticate(), h.mw.RequirePermission("audit.read"))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves strictly paginated records with actors pre-loaded
// @Summary      Get audit logs
// @Description  Retrieves the audit trail of permission and data mutations
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page   query     int  false  "Page number (default 1)"
// @Param        limit  query     int  false  "Number of items per page (default 20)"
// @Success      200    {object}  response.Response{data=object}
// @Router       /api/audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	p := pagination.Parse(c)

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), p.Page, p.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve audit logs: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Paged(http.StatusOK, logs, p.Page, p.Limit, total))
}
