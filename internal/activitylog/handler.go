package activitylog

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/bgv-verification-backend/internal/access"
)

type Handler struct {
	service Service
	access  access.Service
}

func NewHandler(service Service, accessSvc access.Service) *Handler {
	return &Handler{service: service, access: accessSvc}
}

// List handles GET /admin/activity-logs with filters and pagination.
// @Summary List activity logs
// @Tags ActivityLog
// @Produce json
// @Param actor_id query uint false "Filter by actor ID"
// @Param actor_kind query string false "admin, branch or sub_user"
// @Param module query string false "Filter by module (partial match)"
// @Param action query string false "Filter by action (partial match)"
// @Param result query int false "1 success, 0 failure"
// @Param from_date query string false "YYYY-MM-DD"
// @Param to_date query string false "YYYY-MM-DD"
// @Param page query int false "Page number (default 1)"
// @Param limit query int false "Records per page (default 20)"
// @Success 200 {object} PaginatedLogs
// @Router /admin/activity-logs [get]
func (h *Handler) List(c *gin.Context) {
	adminID64, _ := strconv.ParseUint(c.Query("admin_id"), 10, 32)
	adminID := uint(adminID64)
	token := c.Query("_token")
	if adminID == 0 || token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "admin_id and _token are required"})
		return
	}

	rotated, ok := access.Gate(c, h.access, access.ActorAdmin, adminID, token, "activity_log", "view")
	if !ok {
		return
	}

	filter := Filter{}

	if actorIDStr := c.Query("actor_id"); actorIDStr != "" {
		if actorID, err := strconv.ParseUint(actorIDStr, 10, 32); err == nil {
			id := uint(actorID)
			filter.ActorID = &id
		}
	}
	filter.ActorKind = c.Query("actor_kind")
	filter.Module = c.Query("module")
	filter.Action = c.Query("action")

	if resultStr := c.Query("result"); resultStr != "" {
		if result, err := strconv.Atoi(resultStr); err == nil {
			r := int16(result)
			filter.Result = &r
		}
	}

	if fromStr := c.Query("from_date"); fromStr != "" {
		from, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Invalid from_date format. Use YYYY-MM-DD"})
			return
		}
		filter.FromDate = &from
	}
	if toStr := c.Query("to_date"); toStr != "" {
		to, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Invalid to_date format. Use YYYY-MM-DD"})
			return
		}
		endOfDay := to.Add(23*time.Hour + 59*time.Minute + 59*time.Second)
		filter.ToDate = &endOfDay
	}

	filter.Page = 1
	if pageStr := c.Query("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil && page > 0 {
			filter.Page = page
		}
	}
	filter.Limit = 20
	if limitStr := c.Query("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to retrieve activity logs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Activity logs fetched successfully", "token": rotated, "data": result})
}
