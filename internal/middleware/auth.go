package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

const devUserID = "00000000-0000-0000-0000-000000000001"

// Claims represents the JWT claims issued by the identity provider
type Claims struct {
	UserID   string   `json:"user_id"`
	Email    string   `json:"email"`
	TenantID string   `json:"tenant_id"`
	Roles    []string `json:"roles"`
	Admin    bool     `json:"admin"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims grant catalog administration
func (c *Claims) IsAdmin() bool {
	if c.Admin {
		return true
	}
	for _, role := range c.Roles {
		if role == "admin" || role == "super_admin" {
			return true
		}
	}
	return false
}

// AuthMiddleware validates HMAC-signed bearer tokens
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "MISSING_TOKEN", "Authorization header is required")
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
			abortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN_FORMAT", "Authorization header must be in format: Bearer <token>")
			return
		}
		tokenString := tokenParts[1]

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			abortWithError(c, http.StatusUnauthorized, "INVALID_TOKEN", "Invalid or expired token")
			return
		}
		if claims.UserID == "" {
			claims.UserID = claims.Subject
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Set("user_roles", claims.Roles)
		c.Set("is_admin", claims.IsAdmin())
		c.Set("bearer_token", tokenString)
		if claims.TenantID != "" {
			c.Set("tenant_id", claims.TenantID)
		}
		c.Next()
	}
}

// DevelopmentAuthMiddleware trusts every caller as an admin. Only wired
// when no JWT secret is configured outside production.
func DevelopmentAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader("X-User-ID")
		if userID == "" {
			userID = devUserID
		}
		c.Set("user_id", userID)
		c.Set("user_roles", []string{"admin"})
		c.Set("is_admin", true)
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			c.Set("bearer_token", strings.TrimPrefix(authHeader, "Bearer "))
		}
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin claim or role
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !c.GetBool("is_admin") {
			abortWithError(c, http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "Admin access required")
			return
		}
		c.Next()
	}
}

// GetUserID retrieves the authenticated user ID from gin context
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// GetBearerToken retrieves the caller's raw bearer token from gin context
func GetBearerToken(c *gin.Context) string {
	return c.GetString("bearer_token")
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
