package controllers

import (
	"io"
	"net/http"

	"checkout-service/middleware"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type CheckoutController struct {
	Checkout   *services.CheckoutService
	Reconciler *services.WebhookReconciler
	Logger     *zap.Logger
}

// CreateCheckoutSession validates the submitted cart and opens a hosted
// payment session for the authenticated user.
func (cc *CheckoutController) CreateCheckoutSession(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var items []services.CartItem
	if err := c.ShouldBindJSON(&items); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, svcErr := cc.Checkout.CreateCheckoutSession(c.Request.Context(), userID, items)
	if svcErr != nil {
		if svcErr.Kind == services.KindExternal && result != nil {
			// The order exists but the payment session does not; report the
			// reference so the client can retry or let the order expire.
			c.JSON(svcErr.StatusCode, gin.H{
				"error":           svcErr.Message,
				"order_reference": result.OrderReference,
			})
			return
		}
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	c.JSON(http.StatusOK, result)
}

// StripeWebhook receives provider events. Only authentication and parse
// failures are rejected; business-level outcomes are always acknowledged.
func (cc *CheckoutController) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		cc.Logger.Warn("Failed to read webhook body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook payload"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if svcErr := cc.Reconciler.Handle(c.Request.Context(), payload, sigHeader); svcErr != nil {
		c.JSON(svcErr.StatusCode, gin.H{"error": svcErr.Message})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
