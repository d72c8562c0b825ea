package ledger

import (
	"errors"
	"net/http"

	"toyshop/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Handler struct {
	svc    *Service
	logger logrus.FieldLogger
}

func NewHandler(svc *Service, logger logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the ledger API. Everything except /health needs a bearer token.
func (h *Handler) Register(r gin.IRouter, verifier TokenVerifier) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})

	api := r.Group("/", Authenticate(verifier))
	api.GET("/balance", RequireScope(ScopeRead), h.Balance)
	api.GET("/payments/:orderId", RequireScope(ScopeRead), h.PaymentStatus)
	api.POST("/pay", RequireScope(ScopeWrite), h.Pay)
	api.POST("/confirm", RequireScope(ScopeWrite), h.Confirm)
	api.POST("/refund", RequireScope(ScopeWrite), h.Refund)
}

func (h *Handler) internalError(c *gin.Context, err error) {
	h.logger.WithError(err).WithField("path", c.FullPath()).Error("ledger request failed")
	c.JSON(http.StatusInternalServerError, ErrorResponse{
		Error:   "INTERNAL",
		Message: "ledger error",
	})
}

func badRequest(c *gin.Context, msg string, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error:   "INVALID_INPUT",
		Message: msg,
		Details: err.Error(),
	})
}

func (h *Handler) Balance(c *gin.Context) {
	resp, err := h.svc.Balance(c.Request.Context(), c.Query("accountId"))
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Pay(c *gin.Context) {
	var req domain.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	resp, err := h.svc.Pay(c.Request.Context(), req)
	if errors.Is(err, ErrInvalidAmount) {
		badRequest(c, "Invalid amount", err)
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Confirm(c *gin.Context) {
	var req domain.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	resp, err := h.svc.Confirm(c.Request.Context(), req)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Refund(c *gin.Context) {
	var req domain.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}
	resp, err := h.svc.Refund(c.Request.Context(), req)
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) PaymentStatus(c *gin.Context) {
	resp, err := h.svc.PaymentStatus(c.Request.Context(), c.Param("orderId"))
	if errors.Is(err, ErrTransactionNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "NOT_FOUND",
			Message: "no payment for order",
		})
		return
	}
	if err != nil {
		h.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
