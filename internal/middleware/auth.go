package middleware

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"costcompass/internal/permission"
	"costcompass/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const subjectKey = "authSubject"

func GetJWTSecret() []byte {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		if os.Getenv("GIN_MODE") == "release" {
			panic("FATAL: JWT_SECRET environment variable is required in production mode")
		}
		secret = "default_super_secret_key" // Development fallback only — DO NOT use in production
	}
	return []byte(secret)
}

// SetTokenCookies sets access_token and refresh_token as HttpOnly cookies
func SetTokenCookies(c *gin.Context, accessToken, refreshToken string) {
	// Production (cross-origin): SameSiteNoneMode + Secure=true
	// Development (same-site):   SameSiteLaxMode  + Secure=false
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" || os.Getenv("RENDER") != "" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	// access_token: 24h, path=/, domain="", secure, HttpOnly
	c.SetCookie("access_token", accessToken, 3600*24, "/", "", secure, true)
	// refresh_token: 7 days, path=/, domain="", secure, HttpOnly
	c.SetCookie("refresh_token", refreshToken, 3600*24*7, "/", "", secure, true)
}

// ClearTokenCookies removes access_token and refresh_token cookies
func ClearTokenCookies(c *gin.Context) {
	sameSite := http.SameSiteLaxMode
	secure := false
	if os.Getenv("GIN_MODE") == "release" || os.Getenv("RENDER") != "" {
		sameSite = http.SameSiteNoneMode
		secure = true
	}

	c.SetSameSite(sameSite)
	c.SetCookie("access_token", "", -1, "/", "", secure, true)
	c.SetCookie("refresh_token", "", -1, "/", "", secure, true)
}

// Middleware guards routes using the permission evaluator. All denials go
// through the standard response envelope: 401 when the caller is anonymous,
// 403 when authenticated but not allowed.
type Middleware struct {
	eval *permission.Evaluator
}

func New(eval *permission.Evaluator) *Middleware {
	return &Middleware{eval: eval}
}

// SubjectFrom returns the authenticated subject set by Authenticate.
func SubjectFrom(c *gin.Context) (permission.Subject, bool) {
	v, ok := c.Get(subjectKey)
	if !ok {
		return permission.Subject{}, false
	}
	sub, ok := v.(permission.Subject)
	return sub, ok
}

// Authenticate validates the JWT and stores the subject in the context.
// The token is read from the access_token cookie, the Authorization header,
// or a token query parameter (EventSource and browser WebSocket clients
// cannot set headers).
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, permission.ErrAuthenticationRequired.Error()))
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return GetJWTSecret(), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token claims"))
			return
		}

		subClaim, _ := claims["sub"].(string)
		userID, err := uuid.Parse(subClaim)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid token subject"))
			return
		}
		roleClaim, ok := claims["role"].(string)
		if !ok || !permission.ValidRole(permission.Role(roleClaim)) {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Role not found in token"))
			return
		}

		c.Set(subjectKey, permission.Subject{ID: userID, Role: permission.Role(roleClaim)})
		c.Next()
	}
}

// RequireRole allows only subjects whose role is in allowedRoles.
// super_admin always passes.
func (m *Middleware) RequireRole(allowedRoles ...permission.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, ok := SubjectFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, permission.ErrAuthenticationRequired.Error()))
			return
		}
		if sub.Role == permission.RoleSuperAdmin || permission.HasAnyRole(sub, allowedRoles...) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, "Access denied: insufficient role"))
	}
}

// RequirePermission allows only subjects holding every one of codes.
func (m *Middleware) RequirePermission(codes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, ok := SubjectFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, permission.ErrAuthenticationRequired.Error()))
			return
		}
		allowed, err := m.eval.HasAllPermissions(c.Request.Context(), sub, codes...)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}
		if !allowed {
			denial := &permission.DeniedError{Permission: strings.Join(codes, ", ")}
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, denial.Error()))
			return
		}
		c.Next()
	}
}

// RequireAnyPermission allows subjects holding at least one of codes.
func (m *Middleware) RequireAnyPermission(codes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, ok := SubjectFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, permission.ErrAuthenticationRequired.Error()))
			return
		}
		allowed, err := m.eval.HasAnyPermission(c.Request.Context(), sub, codes...)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify permissions"))
			return
		}
		if !allowed {
			denial := &permission.DeniedError{Permission: strings.Join(codes, ", ")}
			c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, denial.Error()))
			return
		}
		c.Next()
	}
}

// RequirePropertyAccess checks the subject's access level on the property
// named by the given route parameter.
func (m *Middleware) RequirePropertyAccess(param string, level permission.AccessLevel) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, ok := SubjectFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, permission.ErrAuthenticationRequired.Error()))
			return
		}
		propertyID, err := uuid.Parse(c.Param(param))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid property id"))
			return
		}

		if err := m.eval.RequirePropertyAccess(c.Request.Context(), sub, propertyID, level); err != nil {
			var denied *permission.PropertyAccessDeniedError
			if errors.As(err, &denied) {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Error(http.StatusForbidden, denied.Error()))
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to verify property access"))
			return
		}
		c.Next()
	}
}

// extractToken tries the cookie, then the Authorization header, then the
// token query parameter.
func extractToken(c *gin.Context) string {
	if token, err := c.Cookie("access_token"); err == nil && token != "" {
		return token
	}
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}
	return c.Query("token")
}
