package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"toyshop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CartHandler struct {
	carts    service.CartService
	checkout service.CheckoutService
	logger   logrus.FieldLogger
}

// CheckoutPage is the cart page re-rendered after a checkout that did not
// end in an order.
type CheckoutPage struct {
	service.CartPage
	Error string `json:"error"`
}

func (h *CartHandler) Show(c *gin.Context) {
	page, err := h.checkout.PrepareCart(c.Request.Context(), owner(c))
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *CartHandler) PreparePayment(c *gin.Context) {
	h.Show(c)
}

func (h *CartHandler) Add(c *gin.Context) {
	h.mutate(c, h.carts.AddProduct)
}

func (h *CartHandler) Decrease(c *gin.Context) {
	h.mutate(c, h.carts.DecreaseProduct)
}

func (h *CartHandler) Increase(c *gin.Context) {
	h.mutate(c, h.carts.IncreaseProduct)
}

func (h *CartHandler) Remove(c *gin.Context) {
	h.mutate(c, h.carts.RemoveProduct)
}

// mutate applies one cart line operation and sends the browser back to the cart.
func (h *CartHandler) mutate(c *gin.Context, op func(ctx context.Context, owner string, productID int64) error) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_INPUT",
			Message: "Invalid product ID",
			Details: "Product ID must be a positive integer",
		})
		return
	}

	err = op(c.Request.Context(), owner(c), productID)
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, service.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "CHECKOUT_IN_PROGRESS", Message: err.Error()})
	case err != nil:
		internalError(c, h.logger, err)
	default:
		c.Redirect(http.StatusSeeOther, "/cart")
	}
}

// Checkout runs the whole checkout and payment. A completed order redirects to
// the order page; anything else re-renders the cart with the reason.
func (h *CartHandler) Checkout(c *gin.Context) {
	result, err := h.checkout.CheckoutAndPay(c.Request.Context(), owner(c))
	if err != nil {
		internalError(c, h.logger, err)
		return
	}

	if result.RedirectURL != "" {
		c.Redirect(http.StatusSeeOther, result.RedirectURL)
		return
	}

	code := http.StatusOK
	if result.IntegrationFailure {
		code = http.StatusBadGateway
	}
	c.JSON(code, CheckoutPage{CartPage: result.Page, Error: result.Error})
}
