package routes

import (
	"net/http"

	"checkout-service/controllers"
	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterPaymentRoutes(r *gin.Engine, cc *controllers.CheckoutController, oc *controllers.OrderController) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Stripe webhook (no auth, signature-verified)
	r.POST("/payments/webhook", cc.StripeWebhook)

	payments := r.Group("/payments")
	payments.Use(middleware.AuthMiddleware())
	payments.POST("/create-checkout-session", cc.CreateCheckoutSession)
	payments.GET("/orders", oc.ListOrders)
	payments.GET("/orders/:orderReference", oc.GetOrderStatus)
	payments.POST("/orders/:orderReference/cancel", oc.CancelOrder)
}
