package clientapplication

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sharath018/bgv-verification-backend/config"
	"github.com/sharath018/bgv-verification-backend/internal/access"
)

const resource = "client_application"

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

type actorRef struct {
	AdminID   uint   `json:"admin_id" form:"admin_id"`
	BranchID  uint   `json:"branch_id" form:"branch_id"`
	SubUserID uint   `json:"sub_user_id" form:"sub_user_id"`
	Token     string `json:"_token" form:"_token"`
}

func (a actorRef) resolve() (access.ActorKind, uint) {
	switch {
	case a.AdminID > 0:
		return access.ActorAdmin, a.AdminID
	case a.SubUserID > 0:
		return access.ActorSubUser, a.SubUserID
	default:
		return access.ActorBranch, a.BranchID
	}
}

func (a actorRef) valid() bool {
	return a.Token != "" && (a.AdminID > 0 || a.BranchID > 0 || a.SubUserID > 0)
}

// ===============================
// Create
// ===============================

type createReq struct {
	actorRef
	ApplicantInput
}

// Create registers one applicant under the caller's branch.
// @Summary Create client application
// @Tags ClientApplication
// @Accept json
// @Produce json
// @Router /client-application/create [post]
func (h *Handler) Create(c *gin.Context) {
	var req createReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() || req.BranchID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "branch_id, _token and applicant fields are required"})
		return
	}

	kind, actorID := req.resolve()
	rotated, ok := access.Gate(c, h.access, kind, actorID, req.Token, resource, "add")
	if !ok {
		return
	}

	app, err := h.service.Create(c.Request.Context(), req.BranchID, req.ApplicantInput, kind, actorID, clientIP(c))
	if err != nil {
		h.respondCreateError(c, err, rotated)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":      true,
		"message":     "Application created",
		"token":       rotated,
		"application": app,
	})
}

// ===============================
// Bulk create
// ===============================

type bulkCreateReq struct {
	actorRef
	Applicants []ApplicantInput `json:"applicants"`
}

// BulkCreate persists a batch of applicants all-or-nothing.
func (h *Handler) BulkCreate(c *gin.Context) {
	var req bulkCreateReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() || req.BranchID == 0 || len(req.Applicants) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "branch_id, _token and at least one applicant are required"})
		return
	}

	kind, actorID := req.resolve()
	rotated, ok := access.Gate(c, h.access, kind, actorID, req.Token, resource, "add")
	if !ok {
		return
	}

	apps, err := h.service.BulkCreate(c.Request.Context(), req.BranchID, req.Applicants, kind, actorID, clientIP(c))
	if err != nil {
		h.respondCreateError(c, err, rotated)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":       true,
		"message":      fmt.Sprintf("%d applications created", len(apps)),
		"token":        rotated,
		"applications": apps,
	})
}

// ===============================
// List
// ===============================

func (h *Handler) List(c *gin.Context) {
	ref := actorRefFromQuery(c)
	if !ref.valid() {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "branch_id and _token are required"})
		return
	}

	kind, actorID := ref.resolve()
	rotated, ok := access.Gate(c, h.access, kind, actorID, ref.Token, resource, "view")
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	filter := Filter{
		BranchID:   ref.BranchID,
		CustomerID: queryUint(c, "customer_id"),
		Status:     c.Query("status"),
		Search:     c.Query("search"),
		Page:       page,
		Limit:      limit,
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to fetch applications"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       true,
		"message":      "Applications fetched",
		"token":        rotated,
		"applications": result.Data,
		"total":        result.Total,
		"page":         result.Page,
		"total_pages":  result.TotalPages,
	})
}

// ===============================
// Update
// ===============================

type updateReq struct {
	actorRef
	ID uint `json:"id"`
	ApplicantInput
	OverallStatus string `json:"overall_status"`
}

// Update overwrites the applicant row. When only overall_status is supplied
// the call degrades to a status-only update.
func (h *Handler) Update(c *gin.Context) {
	var req updateReq
	if err := c.ShouldBindJSON(&req); err != nil || !req.valid() || req.ID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "id and _token are required"})
		return
	}

	kind, actorID := req.resolve()
	rotated, ok := access.Gate(c, h.access, kind, actorID, req.Token, resource, "edit")
	if !ok {
		return
	}

	if req.Name == "" && req.EmployeeID == "" && req.OverallStatus != "" {
		if err := h.service.UpdateStatus(c.Request.Context(), req.ID, req.OverallStatus, kind, actorID, clientIP(c)); err != nil {
			h.respondUpdateError(c, err, rotated)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": true, "message": "Status updated", "token": rotated})
		return
	}

	app, err := h.service.Update(c.Request.Context(), req.ID, req.ApplicantInput, kind, actorID, clientIP(c))
	if err != nil {
		h.respondUpdateError(c, err, rotated)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      true,
		"message":     "Application updated",
		"token":       rotated,
		"application": app,
	})
}

// ===============================
// Delete
// ===============================

func (h *Handler) Delete(c *gin.Context) {
	ref := actorRefFromQuery(c)
	id := queryUint(c, "id")
	if !ref.valid() || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "id and _token are required"})
		return
	}

	kind, actorID := ref.resolve()
	rotated, ok := access.Gate(c, h.access, kind, actorID, ref.Token, resource, "delete")
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, kind, actorID, clientIP(c)); err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Application not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to delete application"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Application deleted", "token": rotated})
}

// ===============================
// Upload
// ===============================

// Upload stores an applicant photo and/or supporting documents under the
// customer's directory. Filenames get a random suffix so concurrent uploads
// never clobber each other.
func (h *Handler) Upload(c *gin.Context) {
	ref := actorRef{
		AdminID:   formUint(c, "admin_id"),
		BranchID:  formUint(c, "branch_id"),
		SubUserID: formUint(c, "sub_user_id"),
		Token:     c.PostForm("_token"),
	}
	id := formUint(c, "id")
	if !ref.valid() || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "id and _token are required"})
		return
	}

	kind, actorID := ref.resolve()
	rotated, ok := access.Gate(c, h.access, kind, actorID, ref.Token, resource, "upload")
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Multipart form data is required"})
		return
	}

	app, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Application not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to load application"})
		return
	}

	dir := filepath.Join(h.uploadDir, fmt.Sprintf("customer_%d", app.CustomerID), "client_applications")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to prepare upload directory"})
		return
	}

	photoPath := ""
	if files := form.File["photo"]; len(files) > 0 {
		photoPath, err = h.saveFile(c, files[0], dir)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to store photo"})
			return
		}
	}

	var docPaths []string
	for _, f := range form.File["documents"] {
		p, err := h.saveFile(c, f, dir)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to store document"})
			return
		}
		docPaths = append(docPaths, p)
	}

	if photoPath == "" && len(docPaths) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "No photo or documents supplied"})
		return
	}

	app, err = h.service.SaveUploads(c.Request.Context(), id, photoPath, docPaths)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to save uploaded file paths"})
		return
	}

	resp := gin.H{
		"status":      true,
		"message":     "Files uploaded",
		"token":       rotated,
		"application": app,
	}
	if app.PhotoPath != "" {
		resp["photo_url"] = h.backend + "/uploads/" + app.PhotoPath
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) saveFile(c *gin.Context, file *multipart.FileHeader, dir string) (string, error) {
	name := uniqueFilename(file.Filename)
	dst := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		return "", err
	}
	// Stored path is relative to the upload root so links survive a move of
	// the root directory.
	rel, err := filepath.Rel(h.uploadDir, dst)
	if err != nil {
		return dst, nil
	}
	return filepath.ToSlash(rel), nil
}

// ===============================
// helpers
// ===============================

func (h *Handler) respondCreateError(c *gin.Context, err error, rotated string) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": vErr.Error(), "missing": vErr.Missing, "token": rotated})
	case errors.Is(err, ErrEmployeeIDExists):
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "An application with this employee id already exists", "token": rotated})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to create application"})
	}
}

func (h *Handler) respondUpdateError(c *gin.Context, err error, rotated string) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": vErr.Error(), "missing": vErr.Missing, "token": rotated})
	case errors.Is(err, ErrEmployeeIDExists):
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "An application with this employee id already exists", "token": rotated})
	case errors.Is(err, ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Application not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to update application"})
	}
}

func actorRefFromQuery(c *gin.Context) actorRef {
	return actorRef{
		AdminID:   queryUint(c, "admin_id"),
		BranchID:  queryUint(c, "branch_id"),
		SubUserID: queryUint(c, "sub_user_id"),
		Token:     c.Query("_token"),
	}
}

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
