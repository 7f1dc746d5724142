package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/sharath018/bgv-verification-backend/config"
	"github.com/sharath018/bgv-verification-backend/database"
	"github.com/sharath018/bgv-verification-backend/internal/access"
	"github.com/sharath018/bgv-verification-backend/internal/activitylog"
	"github.com/sharath018/bgv-verification-backend/internal/admin"
	"github.com/sharath018/bgv-verification-backend/internal/branch"
	"github.com/sharath018/bgv-verification-backend/internal/clientapplication"
	"github.com/sharath018/bgv-verification-backend/internal/cmt"
	"github.com/sharath018/bgv-verification-backend/internal/customer"
	"github.com/sharath018/bgv-verification-backend/internal/mailer"
	"github.com/sharath018/bgv-verification-backend/middleware"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Setup wires repositories, services and handlers and mounts every route
// group. Route paths stay flat (/branch, /admin, ...) to match what the
// frontend already calls.
func Setup(r *gin.Engine, cfg *config.Config) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/")
	api.Use(middleware.RateLimiter())
	api.Use(middleware.ClientIP())

	// ========== Shared infrastructure ==========
	logRepo := activitylog.NewRepository(database.DB)
	logSvc := activitylog.NewService(logRepo)

	accessRepo := access.NewRepository(database.DB)
	accessSvc := access.NewService(accessRepo, cfg)

	mailRepo := mailer.NewRepository(database.DB)
	mailSvc := mailer.NewService(mailRepo, cfg)

	customerRepo := customer.NewRepository(database.DB)

	// ========== Branch (and sub-user) auth ==========
	branchRepo := branch.NewRepository(database.DB)
	branchSvc := branch.NewService(branchRepo, accessSvc, logSvc, mailSvc, cfg)
	branchHandler := branch.NewHandler(branchSvc)

	branchGroup := api.Group("/branch")
	{
		branchGroup.POST("/login", branchHandler.Login)
		branchGroup.POST("/validate-login", branchHandler.ValidateLogin)
		branchGroup.GET("/logout", branchHandler.Logout)
		branchGroup.POST("/forgot-password-request", branchHandler.ForgotPasswordRequest)
		branchGroup.POST("/forgot-password", branchHandler.ForgotPassword)
	}

	// ========== Admin auth + activity logs ==========
	adminRepo := admin.NewRepository(database.DB)
	adminSvc := admin.NewService(adminRepo, accessSvc, logSvc, mailSvc, cfg)
	adminHandler := admin.NewHandler(adminSvc)
	logHandler := activitylog.NewHandler(logSvc, accessSvc)

	adminGroup := api.Group("/admin")
	{
		adminGroup.POST("/login", adminHandler.Login)
		adminGroup.GET("/logout", adminHandler.Logout)
		adminGroup.POST("/forgot-password-request", adminHandler.ForgotPasswordRequest)
		adminGroup.POST("/forgot-password", adminHandler.ForgotPassword)
		adminGroup.GET("/activity-logs", logHandler.List)
	}

	// ========== Client applications ==========
	appRepo := clientapplication.NewRepository(database.DB)
	appSvc := clientapplication.NewService(appRepo, customerRepo, logSvc, mailSvc)
	appHandler := clientapplication.NewHandler(appSvc, accessSvc, cfg)

	appGroup := api.Group("/client-application")
	{
		appGroup.POST("/create", appHandler.Create)
		appGroup.POST("/bulk-create", appHandler.BulkCreate)
		appGroup.GET("/list", appHandler.List)
		appGroup.PUT("/update", appHandler.Update)
		appGroup.DELETE("/delete", appHandler.Delete)
		appGroup.POST("/upload", appHandler.Upload)
	}

	// ========== Client master tracker ==========
	cmtRepo := cmt.NewRepository(database.DB)
	cmtSvc := cmt.NewService(cmtRepo, appRepo, customerRepo, logSvc, mailSvc, cfg)
	cmtHandler := cmt.NewHandler(cmtSvc, accessSvc, cfg)

	cmtGroup := api.Group("/client-master-tracker")
	{
		cmtGroup.GET("/list", cmtHandler.List)
		cmtGroup.GET("/application-by-id", cmtHandler.ApplicationByID)
		cmtGroup.GET("/annexure-data", cmtHandler.AnnexureData)
		cmtGroup.POST("/generate-report", cmtHandler.GenerateReport)
		cmtGroup.POST("/upload", cmtHandler.Upload)
		cmtGroup.GET("/export", cmtHandler.Export)
	}
}
