package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wangablestudio/paysplit/config"
	"github.com/wangablestudio/paysplit/engine"
	"github.com/wangablestudio/paysplit/gateway"
	"github.com/wangablestudio/paysplit/handlers"
	"github.com/wangablestudio/paysplit/middleware"
	"github.com/wangablestudio/paysplit/receipts"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	gw, err := gateway.NewClient(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to build gateway client: %v", err)
	}

	issuer := receipts.NewIssuer(cfg, logger)

	eng := engine.New(db, gw, issuer, engine.Options{
		SigningPassword: cfg.TerminalPassword,
		NotificationURL: cfg.BackendURL + "/api/v1/payment/notification",
		Logger:          logger,
	})

	// Outbox runner drains post-transition work with retry/backoff
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.RunOutbox(ctx, 10*time.Second)

	// Setup router
	router := gin.Default()

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "paysplit-api",
		})
	})

	// API routes
	api := router.Group("/api/v1")
	{
		paymentHandler := handlers.NewPaymentHandler(eng)
		api.POST("/payment/init", paymentHandler.InitPayment)
		api.POST("/payment/notification", paymentHandler.Notification)
		api.GET("/payment/state/:paymentId", paymentHandler.GetState)
		api.GET("/payment/order/:orderId", paymentHandler.GetByOrderID)

		partnerHandler := handlers.NewPartnerHandler(db, gw)
		memberHandler := handlers.NewMemberHandler(db, gw)
		api.GET("/members", memberHandler.List)

		// Manual lifecycle triggers and directory maintenance are
		// operator-only
		authorized := api.Group("/", middleware.JwtAuthMiddleware(cfg))
		authorized.POST("/payment/confirm", paymentHandler.Confirm)
		authorized.POST("/payment/payout", paymentHandler.Payout)
		authorized.POST("/partner/register", partnerHandler.Register)
		authorized.POST("/members/refresh", memberHandler.Refresh)
	}

	// Start server
	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting paysplit API server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
