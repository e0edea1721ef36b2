package mw

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"checkin-billboard-backend/internal/billboard"
)

const actorKey = "adminActor"

// AdminClaims are the claims of an admin bearer token.
type AdminClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// RequireAdmin rejects requests without a valid HS256 admin token and
// stores the token's subject as the acting admin.
func RequireAdmin(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if len(key) == 0 {
			log.Printf("Rejecting admin request: server.admin_jwt_secret is not configured")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin authentication required"})
			return
		}

		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "admin authentication required"})
			return
		}

		var claims AdminClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err == nil && claims.Subject == "" {
			err = errors.New("token has no subject")
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid admin token"})
			return
		}

		c.Set(actorKey, billboard.Actor{ID: claims.Subject, Name: claims.Name})
		c.Next()
	}
}

// Actor returns the admin set by RequireAdmin.
func Actor(c *gin.Context) billboard.Actor {
	if a, ok := c.Get(actorKey); ok {
		return a.(billboard.Actor)
	}
	return billboard.Actor{}
}

// SignAdminToken issues an admin token. Used by tooling and tests.
func SignAdminToken(secret string, actor billboard.Actor) (string, error) {
	claims := AdminClaims{
		Name:             actor.Name,
		RegisteredClaims: jwt.RegisteredClaims{Subject: actor.ID},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
