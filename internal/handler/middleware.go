package handler

import (
	"net/http"
	"strings"
	"time"

	"toyshop/internal/domain"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	sessionOwner    = "owner"
	sessionUsername = "username"
	sessionRoles    = "roles"

	ctxOwner = "owner"

	roleAdmin = domain.RoleAdmin
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request")
			return
		}
		entry.Debug("request")
	}
}

// principal is what the session remembers about the logged-in user.
type principal struct {
	Owner    string
	Username string
	Roles    []string
}

func currentPrincipal(c *gin.Context) (principal, bool) {
	s := sessions.Default(c)
	owner, _ := s.Get(sessionOwner).(string)
	if owner == "" {
		return principal{}, false
	}
	username, _ := s.Get(sessionUsername).(string)
	roles, _ := s.Get(sessionRoles).(string)
	p := principal{Owner: owner, Username: username}
	if roles != "" {
		p.Roles = strings.Split(roles, ",")
	}
	return p, true
}

func (p principal) hasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Error:   "UNAUTHENTICATED",
				Message: "login required",
			})
			return
		}
		c.Set(ctxOwner, p.Owner)
		c.Next()
	}
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := currentPrincipal(c)
		if !ok || !p.hasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error:   "FORBIDDEN",
				Message: "missing role " + role,
			})
			return
		}
		c.Next()
	}
}

func owner(c *gin.Context) string {
	return c.GetString(ctxOwner)
}
