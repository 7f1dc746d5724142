package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sharath018/bgv-verification-backend/config"
	"github.com/sharath018/bgv-verification-backend/database"
	"github.com/sharath018/bgv-verification-backend/internal/activitylog"
	"github.com/sharath018/bgv-verification-backend/internal/admin"
	"github.com/sharath018/bgv-verification-backend/internal/branch"
	"github.com/sharath018/bgv-verification-backend/internal/clientapplication"
	"github.com/sharath018/bgv-verification-backend/internal/cmt"
	"github.com/sharath018/bgv-verification-backend/internal/customer"
	"github.com/sharath018/bgv-verification-backend/internal/mailer"
	"github.com/sharath018/bgv-verification-backend/routes"
	"github.com/sharath018/bgv-verification-backend/utils"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg)

	// Init Redis (password-reset tokens)
	if err := utils.InitRedis(); err != nil {
		log.Fatalf("❌ Redis init failed: %v", err)
	}

	// Init Kafka (mail dispatch queue); disabled when no brokers configured
	utils.InitializeKafka()

	mailRepo := mailer.NewRepository(db)
	mailSvc := mailer.NewService(mailRepo, cfg)
	mailer.StartKafkaConsumer(mailSvc)

	log.Println("🔄 Running database migrations...")
	if err := db.AutoMigrate(
		&admin.Admin{},
		&branch.Branch{},
		&branch.SubUser{},
		&customer.Customer{},
		&clientapplication.ClientApplication{},
		&cmt.CMTApplication{},
		&cmt.AnnexureRecord{},
		&mailer.EmailTemplate{},
		&mailer.SMTPCredential{},
		&activitylog.ActivityLog{},
	); err != nil {
		panic(fmt.Sprintf("❌ DB AutoMigrate failed: %v", err))
	}
	log.Println("✅ Database migrations completed")

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL, "http://localhost:5173", "http://127.0.0.1:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Content-Length", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if err := os.MkdirAll(cfg.UploadDir, os.ModePerm); err != nil {
		panic(fmt.Sprintf("❌ Failed to create upload directory: %v", err))
	}

	// Uploaded documents, served read-only. Paths are stored relative to
	// the upload root.
	router.GET("/uploads/*filepath", func(c *gin.Context) {
		serveUpload(c, cfg.UploadDir)
	})

	routes.Setup(router, cfg)

	fmt.Printf("🚀 Server starting on port %s\n", cfg.Port)
	fmt.Printf("📁 Upload directory: %s\n", cfg.UploadDir)

	if err := router.Run(":" + cfg.Port); err != nil {
		panic(fmt.Sprintf("Failed to start server: %v", err))
	}
}

// serveUpload streams one stored file, refusing any path that escapes the
// upload root.
func serveUpload(c *gin.Context, uploadDir string) {
	rel := strings.TrimPrefix(c.Param("filepath"), "/")
	if rel == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Invalid file path"})
		return
	}

	cleanPath := filepath.Clean(filepath.Join(uploadDir, rel))
	if !strings.HasPrefix(cleanPath, filepath.Clean(uploadDir)+string(os.PathSeparator)) {
		c.JSON(http.StatusForbidden, gin.H{"status": false, "message": "Access denied"})
		return
	}

	info, err := os.Stat(cleanPath)
	if os.IsNotExist(err) || (err == nil && info.IsDir()) {
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "File not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "File access error"})
		return
	}

	filename := filepath.Base(cleanPath)
	contentType := contentTypeFor(filename)
	c.Header("Content-Type", contentType)
	c.Header("Content-Length", fmt.Sprintf("%d", info.Size()))
	if strings.HasPrefix(contentType, "image/") || contentType == "application/pdf" {
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", filename))
	} else {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	}
	c.File(cleanPath)
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".xls":
		return "application/vnd.ms-excel"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".txt":
		return "text/plain"
	case ".csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}
