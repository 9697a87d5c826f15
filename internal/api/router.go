package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/api/handlers"
	"opalpixel/invoicing/internal/api/middleware"
	"opalpixel/invoicing/internal/config"
	"opalpixel/invoicing/internal/email"
	"opalpixel/invoicing/internal/services"
)

// Services are the core operations the REST API exposes.
type Services struct {
	Users    services.IUserService
	Invoices services.IInvoiceService
	Receipts services.IReceiptService
}

// SetupRouter configures and returns the main Gin engine. ctx bounds the
// rate limiter's background cleanup.
func SetupRouter(ctx context.Context, cfg *config.Config, svc Services, logger *zap.Logger) *gin.Engine {
	r := gin.New()

	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, cfg, logger)

	// Apply global middleware first (order matters)
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORSMiddleware())
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewRestAuthHandler(svc.Users, cfg.JwtSecret, cfg.JwtTTL, logger)
	invoiceHandler := handlers.NewRestInvoiceHandler(svc.Invoices, svc.Receipts, logger)
	receiptHandler := handlers.NewRestReceiptHandler(svc.Receipts, logger)
	userHandler := handlers.NewRestUserHandler(svc.Users, logger)

	v1 := r.Group("/v1")
	{
		// Public Routes
		v1.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
		v1.POST("/auth/login", authHandler.Login)

		// Authenticated Routes
		authRequired := v1.Group("/")
		authRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret))
		{
			authRequired.GET("/auth/me", authHandler.Me)

			authRequired.GET("/invoices", invoiceHandler.ListInvoices)
			authRequired.POST("/invoices", invoiceHandler.CreateInvoice)
			authRequired.GET("/invoices/next-number", invoiceHandler.NextNumber)
			authRequired.GET("/invoices/:id", invoiceHandler.GetInvoice)
			authRequired.PUT("/invoices/:id", invoiceHandler.UpdateInvoice)
			authRequired.PATCH("/invoices/:id", invoiceHandler.UpdateInvoice)
			authRequired.DELETE("/invoices/:id", invoiceHandler.DeleteInvoice)
			authRequired.POST("/invoices/:id/pay", invoiceHandler.PayInvoice)
			authRequired.GET("/invoices/:id/receipt", invoiceHandler.GetInvoiceReceipt)

			authRequired.GET("/receipts", receiptHandler.ListReceipts)
			authRequired.GET("/receipts/:id", receiptHandler.GetReceipt)

			authRequired.GET("/users/:id", userHandler.GetUserByID)
		}

		// Admin Routes
		adminRequired := v1.Group("/admin")
		adminRequired.Use(middleware.AuthMiddleware(cfg.JwtSecret), middleware.AdminMiddleware())
		{
			adminRequired.GET("/users", userHandler.ListUsers)
			adminRequired.POST("/users", userHandler.CreateUser)
			adminRequired.PUT("/users/:id", userHandler.UpdateUser)
			adminRequired.PATCH("/users/:id", userHandler.UpdateUser)
			adminRequired.DELETE("/users/:id", userHandler.DeleteUser)
			adminRequired.PUT("/users/:id/password", userHandler.SetPassword)
		}
	}

	return r
}

// SetupServiceRouter configures and returns the service Gin engine. rdb may
// be nil, in which case getTestEmail is unavailable.
func SetupServiceRouter(rdb *redis.Client, shutdownChan chan<- struct{}, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	r.POST("/api", func(c *gin.Context) {
		var req struct {
			Method    string          `json:"method"`
			Arguments json.RawMessage `json:"arguments"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			logger.Info("received shutdown command via service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				logger.Warn("shutdown channel already signaled")
			}
		case "getTestEmail":
			if rdb == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Redis not configured"})
				return
			}
			var args []string // ["kind", "email"]
			if err := json.Unmarshal(req.Arguments, &args); err != nil || len(args) != 2 {
				c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [kind, email]"})
				return
			}
			emailData, err := fetchTestEmail(c.Request.Context(), rdb, email.MockEmailKindKey(args[1], args[0]))
			if err != nil {
				if errors.Is(err, redis.Nil) {
					c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Test email not found"})
					return
				}
				logger.Error("service API: reading test email failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"success": true, "data": emailData})

		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// fetchTestEmail polls Redis briefly for a mock email and deletes it once read.
func fetchTestEmail(ctx context.Context, rdb *redis.Client, key string) (map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var raw string
	var err error
	for i := 0; i < 10; i++ {
		raw, err = rdb.Get(ctx, key).Result()
		if err == nil {
			rdb.Del(ctx, key)
			break
		}
		if !errors.Is(err, redis.Nil) {
			return nil, err
		}
		time.Sleep(200 * time.Millisecond)
	}
	if err != nil {
		return nil, err
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("failed to parse stored email data: %w", err)
	}
	return data, nil
}
