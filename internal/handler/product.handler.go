package handler

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"toyshop/internal/domain"
	"toyshop/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type ProductHandler struct {
	products  service.ProductService
	carts     service.CartService
	uploadDir string
	logger    logrus.FieldLogger
}

type ProductListResponse struct {
	Products  []domain.Product `json:"products"`
	CartCount int              `json:"cartCount"`
	Keyword   string           `json:"keyword,omitempty"`
	Sort      string           `json:"sort,omitempty"`
}

type CreateProductRequest struct {
	Name        string `form:"name" binding:"required"`
	Description string `form:"description"`
	Price       int64  `form:"price" binding:"gte=0"`
	Quantity    int    `form:"quantity" binding:"gte=0"`
}

// List serves GET /products?keyword=&sort=&size=. Logged-in users also get
// the number of items in their cart.
func (h *ProductHandler) List(c *gin.Context) {
	size, _ := strconv.Atoi(c.Query("size"))
	q := service.ListQuery{Keyword: c.Query("keyword"), Sort: c.Query("sort"), Size: size}

	products, err := h.products.List(c.Request.Context(), q)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}

	resp := ProductListResponse{Products: products, Keyword: q.Keyword, Sort: q.Sort}
	if p, ok := currentPrincipal(c); ok {
		view, err := h.carts.GetCartView(c.Request.Context(), p.Owner)
		if err != nil {
			h.logger.WithError(err).WithField("owner", p.Owner).Warn("cart badge unavailable")
		} else {
			resp.CartCount = view.TotalQuantity()
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ProductHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "INVALID_INPUT",
			Message: "Invalid product ID",
			Details: "Product ID must be a positive integer",
		})
		return
	}

	product, err := h.products.GetByID(c.Request.Context(), id)
	if errors.Is(err, service.ErrProductNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "NOT_FOUND", Message: err.Error()})
		return
	}
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) Search(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		c.JSON(http.StatusOK, []domain.Product{})
		return
	}
	products, err := h.products.Search(c.Request.Context(), keyword)
	if err != nil {
		internalError(c, h.logger, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, products)
}

// Create handles the admin multipart form. The optional "image" file is stored
// under the upload dir and served from /uploads.
func (h *ProductHandler) Create(c *gin.Context) {
	var req CreateProductRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "invalid product", err)
		return
	}

	product := &domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
	}

	if file, err := c.FormFile("image"); err == nil {
		name := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), filepath.Base(file.Filename))
		if err := c.SaveUploadedFile(file, filepath.Join(h.uploadDir, name)); err != nil {
			internalError(c, h.logger, fmt.Errorf("save upload: %w", err))
			return
		}
		product.ImageURL = "/uploads/" + name
	} else if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
		badRequest(c, "invalid image upload", err)
		return
	}

	if err := h.products.Save(c.Request.Context(), product); err != nil {
		internalError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{"product_id": product.ID, "name": product.Name}).Info("product created")
	c.JSON(http.StatusCreated, product)
}
