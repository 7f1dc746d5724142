package access

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Gate runs the authorization check followed by token validation, in that
// order, and writes the failure response itself. On success it returns the
// rotated token the handler must include in its response body.
func Gate(c *gin.Context, svc Service, kind ActorKind, actorID uint, token, resource, verb string) (string, bool) {
	ctx := c.Request.Context()

	if err := svc.Authorize(ctx, kind, actorID, resource, verb); err != nil {
		if errors.Is(err, ErrActorNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Account not found"})
			return "", false
		}
		c.JSON(http.StatusForbidden, gin.H{"status": false, "message": "You do not have permission to perform this action"})
		return "", false
	}

	rotated, err := svc.ValidateToken(ctx, kind, actorID, token)
	if err != nil {
		switch {
		case errors.Is(err, ErrActorNotFound):
			c.JSON(http.StatusNotFound, gin.H{"status": false, "message": "Account not found"})
		case errors.Is(err, ErrTokenExpired):
			c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "Session expired, please log in again"})
		case errors.Is(err, ErrInvalidToken):
			c.JSON(http.StatusUnauthorized, gin.H{"status": false, "message": "Invalid session token"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"status": false, "message": "Failed to verify session"})
		}
		return "", false
	}

	return rotated, true
}
