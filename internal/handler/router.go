package handler

import (
	"fmt"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flicky/food-ordering-api/internal/middleware"
	"github.com/flicky/food-ordering-api/internal/service"
)

type RouterConfig struct {
	Log             *slog.Logger
	AllowedOrigins  []string
	TrustedProxies  []string
	AuthRateLimiter *middleware.RateLimiter

	AuthService     *service.AuthService
	CategoryService *service.CategoryService
	ProductService  *service.ProductService
	OrderService    *service.OrderService
	Health          *HealthHandler
}

// NewRouter wires the HTTP API. Forwarding headers are honoured only from
// cfg.TrustedProxies so per-IP limits key on an address the client cannot pick.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	authH := NewAuthHandler(cfg.AuthService)
	categoryH := NewCategoryHandler(cfg.CategoryService)
	productH := NewProductHandler(cfg.ProductService)
	orderH := NewOrderHandler(cfg.OrderService)

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), middleware.Metrics(), middleware.CORS(cfg.AllowedOrigins))
	if cfg.Log != nil {
		router.Use(middleware.RequestLogger(cfg.Log))
	}

	if cfg.Health != nil {
		router.GET("/healthz", cfg.Health.Healthz)
		router.GET("/readyz", cfg.Health.Readyz)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authenticated := middleware.AuthMiddleware(cfg.AuthService)
	adminOnly := middleware.AdminOnly()

	api := router.Group("/api")
	{
		auth := api.Group("/auth")
		if cfg.AuthRateLimiter != nil {
			auth.Use(cfg.AuthRateLimiter.Handler())
		}
		auth.POST("/register", authH.Register)
		auth.POST("/login", authH.Login)
		auth.GET("/me", authenticated, authH.Me)

		categories := api.Group("/categories")
		categories.GET("", categoryH.List)
		categories.POST("", authenticated, adminOnly, categoryH.Create)

		products := api.Group("/products")
		products.GET("", productH.List)
		products.GET("/all", authenticated, adminOnly, productH.ListAll)
		products.GET("/:id", productH.GetByID)
		products.POST("", authenticated, adminOnly, productH.Create)
		products.PUT("/:id", authenticated, adminOnly, productH.Update)
		products.DELETE("/:id", authenticated, adminOnly, productH.Delete)

		orders := api.Group("/orders", authenticated)
		orders.POST("", orderH.Create)
		orders.GET("/my", orderH.ListMine)
		orders.GET("/all", adminOnly, orderH.ListAll)
		orders.GET("/stats", adminOnly, orderH.Stats)
		orders.GET("/:id", orderH.Get)
		orders.PUT("/:id/status", adminOnly, orderH.UpdateStatus)
	}

	return router, nil
}
