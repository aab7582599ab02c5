package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/qa-dashboard/backend/internal/models"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
)

// SetIdentity stores validated claims on the request context.
func SetIdentity(c *gin.Context, claims *Claims) {
	c.Set(ContextUserID, claims.UserID)
	c.Set(ContextUserRole, models.Role(claims.Role))
}

// UserID returns the authenticated user's ID, or nil for anonymous requests.
func UserID(c *gin.Context) *int64 {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return nil
	}
	id, ok := v.(int64)
	if !ok {
		return nil
	}
	return &id
}

// Role returns the authenticated user's role; anonymous requests are guests.
func Role(c *gin.Context) models.Role {
	if v, ok := c.Get(ContextUserRole); ok {
		if r, ok := v.(models.Role); ok {
			return r
		}
	}
	return models.RoleGuest
}
