package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/scms-api/internal/middleware"
	"github.com/noah-isme/scms-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext rebuilds the acting user from the token claims so
// services can evaluate permissions without a database round trip.
func actorFromContext(c *gin.Context) *models.User {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil
	}
	return claims.Principal()
}
