package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nadir-hamid/fst-exams-api/internal/middleware"
	"github.com/nadir-hamid/fst-exams-api/internal/models"
)

// claimsFromContext extracts the authenticated claims set by the JWT middleware.
func claimsFromContext(c *gin.Context) (*models.JWTClaims, bool) {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}
