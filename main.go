package main

import (
	"log"
	"strings"

	"checkout-service/config"
	"checkout-service/controllers"
	"checkout-service/database"
	"checkout-service/kafka"
	"checkout-service/middleware"
	"checkout-service/repository"
	"checkout-service/routes"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("[CheckoutService] Failed to load config:", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("[CheckoutService] Failed to initialize logger:", err)
	}
	defer logger.Sync()

	db, err := database.Connect(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to connect to DB", zap.Error(err))
	}

	orderRepo := repository.NewGormOrderRepository(db)
	uow := repository.NewGormUnitOfWork(db)

	stripeSvc := services.NewStripeService(
		cfg.StripeSecretKey, cfg.StripeWebhookKey, cfg.FrontendURL, cfg.Currency)

	producer := kafka.NewOrderEventProducer(
		strings.Split(cfg.KafkaBrokers, ","), cfg.OrderEventsTopic, logger)
	defer producer.Close()

	checkoutSvc := services.NewCheckoutService(
		orderRepo, stripeSvc, producer, logger, cfg.Currency, cfg.StripeTimeout)
	reconciler := services.NewWebhookReconciler(
		stripeSvc, uow, producer, logger, cfg.Currency)
	orderSvc := services.NewOrderService(orderRepo, uow, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))

	cc := &controllers.CheckoutController{
		Checkout:   checkoutSvc,
		Reconciler: reconciler,
		Logger:     logger,
	}
	oc := &controllers.OrderController{
		Orders: orderSvc,
		Logger: logger,
	}
	routes.RegisterPaymentRoutes(r, cc, oc)

	logger.Info("CheckoutService running", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
