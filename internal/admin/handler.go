package admin

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/bgv-verification-backend/internal/access"
)

type Handler struct{ service Service }

func NewHandler(s Service) *Handler { return &Handler{s} }

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates an admin and issues a session token.
// @Summary Admin login
// @Tags Admin
// @Accept json
// @Produce json
// @Router /admin/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Email and password are required"})
		return
	}

	result, err := h.service.Login(c.Request.Context(), req.Email, req.Password, clientIP(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Couldn't find your account"})
		case errors.Is(err, ErrWrongPassword):
			c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "Incorrect password"})
		case errors.Is(err, ErrAccountUnverified):
			c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Your account is not verified yet"})
		case errors.Is(err, ErrAccountSuspended):
			c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Your account has been suspended"})
		case errors.Is(err, access.ErrAlreadyLoggedIn):
			c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "You are already logged in from another session"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Login failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  true,
		"message": "Login successful",
		"token":   result.Token,
		"admin": gin.H{
			"id":    result.Admin.ID,
			"name":  result.Admin.Name,
			"email": result.Admin.Email,
			"role":  result.Admin.Role,
		},
	})
}

func (h *Handler) Logout(c *gin.Context) {
	adminID, _ := strconv.ParseUint(c.Query("admin_id"), 10, 32)
	token := c.Query("_token")
	if adminID == 0 || token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "admin_id and _token are required"})
		return
	}

	if err := h.service.Logout(c.Request.Context(), uint(adminID), token); err != nil {
		switch {
		case errors.Is(err, access.ErrActorNotFound):
			c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Account not found"})
		case errors.Is(err, access.ErrInvalidToken):
			c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "Invalid session token"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Logout failed"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Logged out successfully"})
}

type forgotPasswordReq struct {
	Email string `json:"email" binding:"required,email"`
}

func (h *Handler) ForgotPasswordRequest(c *gin.Context) {
	var req forgotPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "A valid email address is required"})
		return
	}

	err := h.service.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Could not start password reset, please try again later"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "If an account exists with this email, a reset link has been sent"})
}

type resetPasswordReq struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

func (h *Handler) ForgotPassword(c *gin.Context) {
	var req resetPasswordReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "Token and a password of at least 6 characters are required"})
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		if errors.Is(err, ErrResetTokenInvalid) {
			c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "This reset link is invalid or has expired"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Could not reset password, please try again later"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Password has been reset. Please log in with your new password"})
}

func clientIP(c *gin.Context) string {
	if ip, exists := c.Get("client_ip"); exists {
		if s, ok := ip.(string); ok {
			return s
		}
	}
	return c.ClientIP()
}
