package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"toyshop/internal/service"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	users  service.UserService
	logger logrus.FieldLogger
}

type SignupRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
	Email    string `json:"email" form:"email"`
}

type LoginRequest struct {
	Username string `json:"username" form:"username" binding:"required"`
	Password string `json:"password" form:"password" binding:"required"`
}

type AuthInfo struct {
	Authenticated bool     `json:"authenticated"`
	Username      string   `json:"username,omitempty"`
	Roles         []string `json:"roles,omitempty"`
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid signup request", err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	switch {
	case errors.Is(err, service.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "USER_EXISTS", Message: err.Error()})
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		badRequest(c, "invalid signup request", err)
		return
	case err != nil:
		internalError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid login request", err)
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "BAD_CREDENTIALS", Message: err.Error()})
		return
	}
	if err != nil {
		internalError(c, h.logger, err)
		return
	}

	s := sessions.Default(c)
	s.Set(sessionOwner, strconv.FormatInt(u.User.ID, 10))
	s.Set(sessionUsername, u.User.Username)
	s.Set(sessionRoles, strings.Join(u.Roles, ","))
	if err := s.Save(); err != nil {
		internalError(c, h.logger, err)
		return
	}

	h.logger.WithField("username", u.User.Username).Info("user logged in")
	c.JSON(http.StatusOK, AuthInfo{Authenticated: true, Username: u.User.Username, Roles: u.Roles})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := s.Save(); err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/products")
}

func (h *AuthHandler) Info(c *gin.Context) {
	p, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusOK, AuthInfo{})
		return
	}
	c.JSON(http.StatusOK, AuthInfo{Authenticated: true, Username: p.Username, Roles: p.Roles})
}

func badRequest(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "INVALID_INPUT",
		Message: msg,
		Details: err.Error(),
	})
}

func internalError(c *gin.Context, logger logrus.FieldLogger, err error) {
	logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "INTERNAL",
		Message: "something went wrong",
	})
}
