package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.ControlService/implementation/jwt"
	rqcmodels "gitlab.com/c2tech1/rqc.control_server/src/production/RQC.Models"
)

// Key types for request context
type contextKey string

const (
	ActorContextKey contextKey = "actor"
	RoleContextKey  contextKey = "role"
)

// IdentityMiddleware resolves the requesting operator for the audit trail.
// An unverifiable or missing token degrades the actor to "anonymous" rather
// than blocking the request: availability of hardware control is favored
// over strict audit completeness.
type IdentityMiddleware struct {
	jwtService *jwt.Service
	config     Config
}

// Config holds middleware configuration
type Config struct {
	AccessTokenHeader string
	AccessTokenCookie string
}

// DefaultConfig returns a default middleware configuration
func DefaultConfig() Config {
	return Config{
		AccessTokenHeader: "Authorization",
		AccessTokenCookie: "access_token",
	}
}

// NewIdentityMiddleware creates a new identity middleware
func NewIdentityMiddleware(jwtService *jwt.Service, config Config) *IdentityMiddleware {
	return &IdentityMiddleware{
		jwtService: jwtService,
		config:     config,
	}
}

// extractToken gets a token from either header or cookie
func extractToken(r *http.Request, headerName, cookieName string) string {
	token := r.Header.Get(headerName)
	if token != "" {
		if strings.HasPrefix(token, "Bearer ") {
			return strings.TrimPrefix(token, "Bearer ")
		}
		return token
	}

	if cookieName != "" {
		cookie, err := r.Cookie(cookieName)
		if err == nil {
			return cookie.Value
		}
	}

	return ""
}

// Identify resolves actor and role into the gin context. Never aborts.
func (m *IdentityMiddleware) Identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := rqcmodels.AnonymousActor
		role := rqcmodels.AnonymousActor

		if token := extractToken(c.Request, m.config.AccessTokenHeader, m.config.AccessTokenCookie); token != "" {
			if claims, err := m.jwtService.ValidateAccessToken(token); err == nil {
				actor = claims.UserID
				role = claims.Role
			}
		}

		c.Set(string(ActorContextKey), actor)
		c.Set(string(RoleContextKey), role)

		c.Next()
	}
}

// GetActorFromGinContext retrieves the resolved actor from the Gin context
func GetActorFromGinContext(c *gin.Context) string {
	if actor, ok := c.Get(string(ActorContextKey)); ok {
		if s, ok := actor.(string); ok && s != "" {
			return s
		}
	}
	return rqcmodels.AnonymousActor
}

// GetRoleFromGinContext retrieves the resolved role from the Gin context
func GetRoleFromGinContext(c *gin.Context) string {
	if role, ok := c.Get(string(RoleContextKey)); ok {
		if s, ok := role.(string); ok && s != "" {
			return s
		}
	}
	return rqcmodels.AnonymousActor
}
