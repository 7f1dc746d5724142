package branch

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/bgv-verification-backend/internal/access"
)

type Handler struct{ service Service }

func NewHandler(s Service) *Handler { return &Handler{s} }

// actorFromRequest resolves which actor row the request speaks for. A
// non-zero sub_user_id selects the sub-user table.
func actorFromRequest(branchID, subUserID uint) (access.ActorKind, uint) {
	if subUserID > 0 {
		return access.ActorSubUser, subUserID
	}
	return access.ActorBranch, branchID
}

// ===============================
// Login
// ===============================

type loginReq struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login authenticates a branch or sub-user and issues a session token.
// @Summary Branch login
// @Tags Branch
// @Accept json
// @Produce json
// @Router /branch/login [post]
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

	payload := gin.H{
		"id":          result.ActorID,
		"branch_id":   result.BranchID,
		"customer_id": result.CustomerID,
		"email":       result.Email,
		"type":        string(result.Kind),
	}
	if result.Name != "" {
		payload["name"] = result.Name
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  true,
		"message": "Login successful",
		"token":   result.Token,
		"branch":  payload,
	})
}

// ===============================
// Validate Login
// ===============================

type validateLoginReq struct {
	BranchID  uint   `json:"branch_id"`
	SubUserID uint   `json:"sub_user_id"`
	Token     string `json:"_token" binding:"required"`
}

// ValidateLogin confirms the session is still live and rotates the token.
func (h *Handler) ValidateLogin(c *gin.Context) {
	var req validateLoginReq
	if err := c.ShouldBindJSON(&req); err != nil || (req.BranchID == 0 && req.SubUserID == 0) {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "branch_id and _token are required"})
		return
	}

	kind, actorID := actorFromRequest(req.BranchID, req.SubUserID)
	rotated, err := h.service.ValidateLogin(c.Request.Context(), kind, actorID, req.Token)
	if err != nil {
		respondTokenError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Session is valid", "token": rotated})
}

// ===============================
// Logout
// ===============================

func (h *Handler) Logout(c *gin.Context) {
	branchID := queryUint(c, "branch_id")
	subUserID := queryUint(c, "sub_user_id")
	token := c.Query("_token")

	if (branchID == 0 && subUserID == 0) || token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": false, "message": "branch_id and _token are required"})
		return
	}

	kind, actorID := actorFromRequest(branchID, subUserID)
	if err := h.service.Logout(c.Request.Context(), kind, actorID, token); err != nil {
		respondTokenError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": true, "message": "Logged out successfully"})
}

// ===============================
// Forgot / Reset Password
// ===============================

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

	// Same response whether or not the account exists.
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

// ===============================
// helpers
// ===============================

func respondTokenError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, access.ErrActorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Account not found"})
	case errors.Is(err, access.ErrTokenExpired):
		c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "Session expired, please log in again"})
	case errors.Is(err, access.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "Invalid session token"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to verify session"})
	}
}

func queryUint(c *gin.Context, name string) uint {
	v, _ := strconv.ParseUint(c.Query(name), 10, 32)
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
