package handler

import (
	"errors"
	"net/http"
	"strconv"

	"toyshop/internal/domain"
	"toyshop/internal/infrastructure/payment"
	"toyshop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type OrderHandler struct {
	orders   service.OrderService
	checkout service.CheckoutService
	logger   logrus.FieldLogger
}

type OrderPage struct {
	Order    domain.OrderView `json:"order"`
	Balance  decimal.Decimal  `json:"currentBalance"`
	Currency string           `json:"currency"`
}

func (h *OrderHandler) List(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), owner(c))
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "NOT_FOUND", Message: service.ErrOrderNotFound.Error()})
		return
	}

	order, err := h.orders.GetOrder(c.Request.Context(), owner(c), id)
	if errors.Is(err, service.ErrOrderNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "NOT_FOUND", Message: err.Error()})
		return
	}
	if err != nil {
		internalError(c, h.logger, err)
		return
	}

	page := OrderPage{Order: *order}
	bal, err := h.checkout.CurrentBalance(c.Request.Context(), owner(c))
	if err != nil {
		h.logger.WithError(err).Warn("balance unavailable on order page")
	} else {
		page.Balance, page.Currency = bal.Balance, bal.Currency
	}
	c.JSON(http.StatusOK, page)
}

func (h *OrderHandler) Balance(c *gin.Context) {
	bal, err := h.checkout.CurrentBalance(c.Request.Context(), owner(c))
	if payment.IsIntegrationError(err) {
		h.logger.WithError(err).Warn("balance lookup failed")
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "PAYMENT_UNAVAILABLE", Message: err.Error()})
		return
	}
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, bal)
}
