package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/strayhub/chat-core/pkg/log"
)

const (
	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
)

var errInvalidToken = errors.New("invalid token")

// IdentityClaims carries the caller identity the chat core needs. Full
// authentication lives in the platform's auth layer; here the token is
// only the source of (user id, display name).
type IdentityClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Identity verifies caller tokens and exposes identity to handlers.
type Identity struct {
	secret []byte
}

// NewIdentity creates an identity verifier with an HMAC secret.
func NewIdentity(secret string) *Identity {
	return &Identity{secret: []byte(secret)}
}

// Parse validates a token string and returns its claims.
func (i *Identity) Parse(tokenString string) (*IdentityClaims, error) {
	claims := &IdentityClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errInvalidToken
		}
		return i.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, errInvalidToken
	}
	return claims, nil
}

// RequireIdentity returns a Gin middleware that extracts the caller
// identity from the Authorization header.
func (i *Identity) RequireIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(authHeaderKey)
		if !strings.HasPrefix(header, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := i.Parse(strings.TrimPrefix(header, bearerPrefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(log.FieldUserID, claims.UserID)
		c.Set(log.FieldUsername, claims.Username)
		c.Next()
	}
}

// GetUserID returns the authenticated user id from the Gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString(log.FieldUserID)
}

// GetUsername returns the authenticated display name from the Gin context.
func GetUsername(c *gin.Context) string {
	return c.GetString(log.FieldUsername)
}
