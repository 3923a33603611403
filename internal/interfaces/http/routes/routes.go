// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/storefront-backend/internal/config"
	"github.com/your-org/storefront-backend/internal/interfaces/http/handlers"
	"github.com/your-org/storefront-backend/internal/interfaces/http/middleware"
)

// Handlers aggregates the wired HTTP handlers. Construction happens in
// cmd/api where the services live.
type Handlers struct {
	Auth     *handlers.AuthHandler
	Cart     *handlers.CartHandler
	Checkout *handlers.CheckoutHandler
	Order    *handlers.OrderHandler
	Payment  *handlers.PaymentHandler
	Webhook  *handlers.WebhookHandler
	Address  *handlers.UserAddressHandler
	Profile  *handlers.UserProfileHandler
}

// SetupRoutes mounts all API routes on the given group
func SetupRoutes(rg *gin.RouterGroup, h *Handlers, cfg *config.Config) {
	setupAuthRoutes(rg, h, cfg)
	setupCartRoutes(rg, h, cfg)
	setupCheckoutRoutes(rg, h, cfg)
	setupOrderRoutes(rg, h, cfg)
	setupPaymentRoutes(rg, h, cfg)
	setupUserRoutes(rg, h, cfg)
	setupWebhookRoutes(rg, h)
}

func setupAuthRoutes(rg *gin.RouterGroup, h *Handlers, cfg *config.Config) {
	auth := rg.Group("/auth")
	{
		// Register and login read X-Cart-Session so a guest cart can be
		// merged into the account.
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", h.Auth.Logout)

		protected := auth.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.POST("/logout-all", h.Auth.LogoutAll)
		}
	}
}

func setupCartRoutes(rg *gin.RouterGroup, h *Handlers, cfg *config.Config) {
	// Cart works for guests and authenticated users alike.
	cart := rg.Group("/cart")
	cart.Use(middleware.OptionalAuthMiddleware(cfg))
	{
		cart.GET("", h.Cart.GetCart)
		cart.DELETE("", h.Cart.ClearCart)
		cart.POST("/items", h.Cart.AddItem)
		cart.PUT("/items/:productId", h.Cart.UpdateItem)
		cart.DELETE("/items/:productId", h.Cart.RemoveItem)
	}
}

func setupCheckoutRoutes(rg *gin.RouterGroup, h *Handlers, cfg *config.Config) {
	checkout := rg.Group("/checkout")
	checkout.Use(middleware.AuthMiddleware(cfg))
	{
		checkout.POST("", h.Checkout.Initiate)
		checkout.GET("/agencies", h.Checkout.ListAgencies)
		checkout.GET("/:sessionId", h.Checkout.Status)
		checkout.PUT("/:sessionId/delivery", h.Checkout.SetDelivery)
		checkout.PUT("/:sessionId/payment-method", h.Checkout.SetPaymentMethod)
		checkout.POST("/:sessionId/order", h.Checkout.CreateOrder)
	}
}

func setupOrderRoutes(rg *gin.RouterGroup, h *Handlers, cfg *config.Config) {
	orders := rg.Group("/orders")
	orders.Use(middleware.AuthMiddleware(cfg))
	{
		orders.GET("", h.Order.ListOrders)
		orders.GET("/:id", h.Order.GetOrder)
		orders.POST("/:id/cancel", h.Order.CancelOrder)
	}
}

func setupPaymentRoutes(rg *gin.RouterGroup, h *Handlers, cfg *config.Config) {
	payments := rg.Group("/payments")
	{
		// Method and bank listings back the checkout UI before login.
		payments.GET("/methods", h.Payment.ListMethods)
		payments.GET("/banks", h.Payment.ListBanks)

		protected := payments.Group("")
		protected.Use(middleware.AuthMiddleware(cfg))
		{
			protected.POST("", h.Payment.ProcessPayment)
			protected.POST("/card-token", h.Payment.TokenizeCard)
			protected.GET("/:orderId/verify", h.Payment.VerifyPayment)
		}
	}
}

func setupUserRoutes(rg *gin.RouterGroup, h *Handlers, cfg *config.Config) {
	users := rg.Group("/users")
	users.Use(middleware.AuthMiddleware(cfg))
	{
		users.GET("/profile", h.Profile.GetProfile)
		users.PUT("/profile", h.Profile.UpdateProfile)
		users.PUT("/password", h.Profile.ChangePassword)

		users.GET("/addresses", h.Address.ListAddresses)
		users.POST("/addresses", h.Address.CreateAddress)
		users.GET("/addresses/:id", h.Address.GetAddress)
		users.PUT("/addresses/:id", h.Address.UpdateAddress)
		users.DELETE("/addresses/:id", h.Address.DeleteAddress)
		users.PUT("/addresses/:id/default", h.Address.SetDefaultAddress)
	}
}

func setupWebhookRoutes(rg *gin.RouterGroup, h *Handlers) {
	// Gateways authenticate through payload signatures, not JWTs.
	webhooks := rg.Group("/webhooks")
	{
		webhooks.POST("/payments/:provider", h.Webhook.HandlePaymentWebhook)
	}
}
