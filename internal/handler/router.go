package handler

import (
	"net/http"
	"time"

	"toyshop/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const sessionName = "toyshop_session"

type Deps struct {
	Users    service.UserService
	Products service.ProductService
	Carts    service.CartService
	Checkout service.CheckoutService
	Orders   service.OrderService
	Logger   logrus.FieldLogger

	SessionSecret      string
	UploadDir          string
	CORSAllowedOrigins []string
	// Health reports dependency status for /health; nil means always up.
	Health func() map[string]string
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	store := cookie.NewStore([]byte(d.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: 86400 * 7, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions(sessionName, store))

	r.Static("/uploads", d.UploadDir)
	r.GET("/health", func(c *gin.Context) {
		if d.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "up"})
			return
		}
		stats := d.Health()
		code := http.StatusOK
		if stats["status"] != "up" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, stats)
	})

	auth := &AuthHandler{users: d.Users, logger: d.Logger}
	r.POST("/signup", auth.Signup)
	r.POST("/login", auth.Login)
	r.GET("/logout", auth.Logout)
	r.GET("/api/auth-info", auth.Info)

	products := &ProductHandler{products: d.Products, carts: d.Carts, uploadDir: d.UploadDir, logger: d.Logger}
	r.GET("/products", products.List)
	r.GET("/products/search", products.Search)
	r.GET("/products/:id", products.Get)
	r.POST("/products", RequireAuth(), RequireRole(roleAdmin), products.Create)

	carts := &CartHandler{carts: d.Carts, checkout: d.Checkout, logger: d.Logger}
	cart := r.Group("/cart", RequireAuth())
	cart.GET("", carts.Show)
	cart.GET("/prepare-payment", carts.PreparePayment)
	cart.POST("/add/:productId", carts.Add)
	cart.POST("/decrease/:productId", carts.Decrease)
	cart.POST("/increase/:productId", carts.Increase)
	cart.POST("/remove/:productId", carts.Remove)
	cart.POST("/checkout", carts.Checkout)
	cart.POST("/confirm-payment", carts.Checkout)

	orders := &OrderHandler{orders: d.Orders, checkout: d.Checkout, logger: d.Logger}
	authed := r.Group("/", RequireAuth())
	authed.GET("/orders", orders.List)
	authed.GET("/orders/:id", orders.Get)
	authed.GET("/balance", orders.Balance)

	return r
}
