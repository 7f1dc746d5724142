package cmt

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sharath018/bgv-verification-backend/config"
	"github.com/sharath018/bgv-verification-backend/internal/access"
	"github.com/sharath018/bgv-verification-backend/internal/clientapplication"
)

const resource = "cmt_application"

type Handler struct {
	service   Service
	access    access.Service
	uploadDir string
	backend   string
}

func NewHandler(s Service, accessSvc access.Service, cfg *config.Config) *Handler {
	return &Handler{
		service:   s,
		access:    accessSvc,
		uploadDir: cfg.UploadDir,
		backend:   cfg.BackendURL,
	}
}

// ===============================
// Tracker list
// ===============================

// List returns the per-customer tracker summary.
// @Summary Client master tracker listing
// @Tags ClientMasterTracker
// @Produce json
// @Router /client-master-tracker/list [get]
func (h *Handler) List(c *gin.Context) {
	adminID := queryUint(c, "admin_id")
	token := c.Query("_token")
	if adminID == 0 || token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "admin_id and _token are required"})
		return
	}

	rotated, ok := access.Gate(c, h.access, access.ActorAdmin, adminID, token, resource, "view")
	if !ok {
		return
	}

	rows, err := h.service.TrackerList(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to fetch tracker data"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  true,
		"message": "Tracker data fetched",
		"token":   rotated,
		"data":    rows,
	})
}

// ===============================
// Application by id
// ===============================

func (h *Handler) ApplicationByID(c *gin.Context) {
	adminID := queryUint(c, "admin_id")
	token := c.Query("_token")
	applicationID := c.Query("application_id")
	if adminID == 0 || token == "" || applicationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "application_id, admin_id and _token are required"})
		return
	}

	rotated, ok := access.Gate(c, h.access, access.ActorAdmin, adminID, token, resource, "view")
	if !ok {
		return
	}

	agg, err := h.service.ApplicationByID(c.Request.Context(), applicationID)
	if err != nil {
		if errors.Is(err, clientapplication.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Application not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to fetch application"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  true,
		"message": "Application fetched",
		"token":   rotated,
		"data":    agg,
	})
}

// ===============================
// Annexure data
// ===============================

func (h *Handler) AnnexureData(c *gin.Context) {
	adminID := queryUint(c, "admin_id")
	token := c.Query("_token")
	applicationID := c.Query("application_id")
	table := c.Query("db_table")
	if adminID == 0 || token == "" || applicationID == "" || table == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "application_id, db_table, admin_id and _token are required"})
		return
	}

	rotated, ok := access.Gate(c, h.access, access.ActorAdmin, adminID, token, resource, "view")
	if !ok {
		return
	}

	row, err := h.service.AnnexureData(c.Request.Context(), applicationID, table)
	if err != nil {
		switch {
		case errors.Is(err, ErrAnnexureNotFound):
			c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Annexure data not found"})
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Report not generated for this application yet"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to fetch annexure data"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  true,
		"message": "Annexure data fetched",
		"token":   rotated,
		"data":    row,
	})
}

// ===============================
// Generate report
// ===============================

type generateReportReq struct {
	AdminID       uint                   `json:"admin_id"`
	Token         string                 `json:"_token"`
	BranchID      uint                   `json:"branch_id"`
	CustomerID    uint                   `json:"customer_id"`
	ApplicationID string                 `json:"application_id"`
	UpdatedJSON   map[string]interface{} `json:"updated_json"`
	Annexure      []AnnexureInput        `json:"annexure"`
	SendMail      *bool                  `json:"send_mail"`
}

// GenerateReport writes the tracker aggregate plus annexures and fires the
// derived notification.
func (h *Handler) GenerateReport(c *gin.Context) {
	var req generateReportReq
	if err := c.ShouldBindJSON(&req); err != nil || req.AdminID == 0 || req.Token == "" || req.ApplicationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "admin_id, _token and application_id are required"})
		return
	}

	rotated, ok := access.Gate(c, h.access, access.ActorAdmin, req.AdminID, req.Token, resource, "generate_report")
	if !ok {
		return
	}

	sendMail := true
	if req.SendMail != nil {
		sendMail = *req.SendMail
	}

	result, err := h.service.GenerateReport(c.Request.Context(), GenerateReportInput{
		BranchID:      req.BranchID,
		CustomerID:    req.CustomerID,
		ApplicationID: req.ApplicationID,
		UpdatedJSON:   req.UpdatedJSON,
		Annexures:     req.Annexure,
		SendMail:      sendMail,
	}, access.ActorAdmin, req.AdminID, clientIP(c))
	if err != nil {
		if errors.Is(err, clientapplication.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Application not found"})
			return
		}
		if errors.Is(err, ErrUnknownAnnexureTable) {
			c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to save report"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      true,
		"message":     result.Message,
		"token":       rotated,
		"email_code":  result.EmailCode,
		"mail_queued": result.MailQueued,
		"data":        result.CMT,
	})
}

// ===============================
// Upload
// ===============================

// Upload stores report documents for an application. An explicit
// email_status of 1, 2 or 3 fires the matching notification directly,
// bypassing the derivation.
func (h *Handler) Upload(c *gin.Context) {
	adminID := formUint(c, "admin_id")
	token := c.PostForm("_token")
	applicationID := c.PostForm("application_id")
	if adminID == 0 || token == "" || applicationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "application_id, admin_id and _token are required"})
		return
	}

	rotated, ok := access.Gate(c, h.access, access.ActorAdmin, adminID, token, resource, "upload")
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil || len(form.File["files"]) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "At least one file is required"})
		return
	}

	cmtRow, err := h.service.Get(c.Request.Context(), applicationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Report not generated for this application yet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to load report record"})
		return
	}

	dir := filepath.Join(h.uploadDir, fmt.Sprintf("customer_%d", cmtRow.CustomerID), "cmt")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to prepare upload directory"})
		return
	}

	var paths []string
	for _, f := range form.File["files"] {
		name := uniqueFilename(f.Filename)
		dst := filepath.Join(dir, name)
		if err := c.SaveUploadedFile(f, dst); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to store file"})
			return
		}
		if rel, relErr := filepath.Rel(h.uploadDir, dst); relErr == nil {
			paths = append(paths, filepath.ToSlash(rel))
		} else {
			paths = append(paths, dst)
		}
	}

	cmtRow, err = h.service.SaveUploads(c.Request.Context(), applicationID, paths)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to save uploaded file paths"})
		return
	}

	message := "Files uploaded"
	emailStatus, _ := strconv.Atoi(c.PostForm("email_status"))
	if emailStatus >= EmailFinalReport && emailStatus <= EmailReadyForReport {
		if err := h.service.TriggerEmail(c.Request.Context(), applicationID, emailStatus); err != nil {
			message = "Files uploaded, notification could not be sent"
		} else {
			message = "Files uploaded, notification sent"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  true,
		"message": message,
		"token":   rotated,
		"data":    cmtRow,
	})
}

// ===============================
// Export
// ===============================

func (h *Handler) Export(c *gin.Context) {
	adminID := queryUint(c, "admin_id")
	token := c.Query("_token")
	if adminID == 0 || token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "admin_id and _token are required"})
		return
	}

	if _, ok := access.Gate(c, h.access, access.ActorAdmin, adminID, token, resource, "export"); !ok {
		return
	}

	format := c.DefaultQuery("format", FormatExcel)
	data, filename, contentType, err := h.service.ExportTracker(c.Request.Context(), format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, contentType, data)
}

// ===============================
// helpers
// ===============================

func queryUint(c *gin.Context, name string) uint {
	v, _ := strconv.ParseUint(c.Query(name), 10, 32)
	return uint(v)
}

func formUint(c *gin.Context, name string) uint {
	v, _ := strconv.ParseUint(c.PostForm(name), 10, 32)
	return uint(v)
}

func clientIP(c *gin.Context) string {
	if ip, exists := c.Get("client_ip"); exists {
		if s, ok := ip.(string); ok {
			return s
		}
	}
	return c.ClientIP()
}

func uniqueFilename(original string) string {
	ext := filepath.Ext(original)
	base := strings.TrimSuffix(filepath.Base(original), ext)
	return fmt.Sprintf("%s_%s%s", base, uuid.NewString()[:8], ext)
}
