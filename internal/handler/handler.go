package handler

import (
	"net/http"

	"costcompass/internal/middleware"
	"costcompass/internal/permission"
	"costcompass/pkg/response"

	"github.com/gin-gonic/gin"
)

// subject pulls the authenticated subject out of the context, aborting with
// 401 when the auth middleware did not run.
func subject(c *gin.Context) (permission.Subject, bool) {
	sub, ok := middleware.SubjectFrom(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, permission.ErrAuthenticationRequired.Error()))
		return permission.Subject{}, false
	}
	return sub, true
}
