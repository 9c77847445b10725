package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/keyflowhq/keyflow_backend/config"
	"github.com/keyflowhq/keyflow_backend/handlers"
	"github.com/keyflowhq/keyflow_backend/middlewares"
	"github.com/keyflowhq/keyflow_backend/models"
	"github.com/keyflowhq/keyflow_backend/workflow"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// customErrorLogger logs only requests that accumulated gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func registerRoutes(r *gin.Engine, api *handlers.API) {
	apiGroup := r.Group("/api")

	// Unauthenticated auth surface.
	auth := apiGroup.Group("/auth")
	auth.POST("/login", api.Login)
	auth.POST("/pin-login", api.PinLogin)
	auth.POST("/demo-login", api.DemoLogin)
	auth.POST("/accept-invite", api.AcceptInvite)

	// Public lookups for the login and signup screens.
	apiGroup.GET("/invites/validate/:token", api.ValidateInvite)
	apiGroup.GET("/dealerships/public", api.ListDealershipsPublic)

	protected := apiGroup.Group("")
	protected.Use(middlewares.RequireAuth())
	protected.GET("/auth/me", api.Me)
	protected.POST("/auth/change-pin", api.ChangePin)

	keys := protected.Group("/keys")
	keys.GET("", api.ListKeys)
	keys.POST("", api.CreateKey)
	keys.POST("/bulk-import", api.BulkImportKeys)
	keys.GET("/overdue", api.OverdueKeys)
	keys.GET("/export", api.ExportKeysExcel)
	keys.GET("/:id", api.GetKey)
	keys.PUT("/:id", api.UpdateKey)
	keys.DELETE("/:id", api.RetireKey)
	keys.POST("/:id/checkout", api.CheckoutKey)
	keys.POST("/:id/return", api.ReturnKey)
	keys.POST("/:id/move-bay", api.MoveKeyBay)
	keys.GET("/:id/history", api.KeyHistory)
	keys.GET("/:id/sessions", api.KeyCheckoutHistory)
	keys.POST("/:id/attention", api.FlagKeyAttention)
	keys.POST("/:id/attention/fixed", api.MarkKeyFixed)
	keys.DELETE("/:id/attention", api.ClearKeyAttention)
	keys.GET("/:id/repairs", api.ListKeyRepairRequests)
	keys.POST("/:id/pdi", api.SetKeyPdiStatus)
	keys.GET("/:id/pdi/history", api.KeyPdiHistory)
	keys.POST("/:id/photo", keyPhotoUploadHandler(api))

	protected.GET("/repairs", api.ListRepairRequests)
	protected.GET("/history/export", api.ExportHistoryExcel)
	protected.GET("/stats", api.DashboardStats)
	protected.GET("/service-bays", api.ServiceBays)
	protected.GET("/demo-limits", api.GetDemoLimits)

	users := protected.Group("/users")
	users.GET("", api.ListUsers)
	users.POST("", api.CreateUser)
	users.DELETE("/:id", api.DeleteUser)

	invites := protected.Group("/invites")
	invites.GET("", api.ListInvites)
	invites.POST("", api.CreateInvite)
	invites.DELETE("/:id", api.RevokeInvite)

	dealerships := protected.Group("/dealerships")
	dealerships.GET("", api.ListDealerships)
	dealerships.POST("", api.CreateDealership)
	dealerships.GET("/me", api.GetDealership)
	dealerships.PUT("/me", api.UpdateDealership)
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful
	// drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so the startup probe passes. Until the DB
	// is ready, app endpoints return 503; demo endpoints never touch it.
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil && !strings.HasPrefix(c.Request.URL.Path, "/api/auth/demo") {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(middlewares.AuthMiddleware())
	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	dbStore := models.NewDBLifecycleStore()
	demoStore := models.NewMemoryLifecycleStore()
	engine := models.NewKeyLifecycle(dbStore, demoStore, logger)
	api := handlers.NewAPI(engine)
	registerRoutes(r, api)

	if uploadDir := os.Getenv("UPLOAD_DIR"); uploadDir != "" {
		r.Static("/uploads", uploadDir)
	} else {
		r.Static("/uploads", "uploads")
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, err := db.DB()
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "database"}).WithError(err).Error("failed to get sql.DB handle")
	}
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	sweeperCtx, cancelSweeper := context.WithCancel(context.Background())
	defer cancelSweeper()
	go workflow.NewAlertSweeper(dbStore, logger).Run(sweeperCtx)

	logger.WithFields(logrus.Fields{
		"port": port,
	}).Info("keyflow backend listening")
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Stop background workers before draining.
	cancelSweeper()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
