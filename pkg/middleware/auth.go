package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/metrics"
)

// Context keys set by AuthMiddleware.
const (
	ClaimsKey = "claims"
	UserKey   = "user"
	TokenKey  = "token"
)

// TokenValidator is the subset of tokens.Service the middleware depends on.
type TokenValidator interface {
	ExtractSubject(token string) (string, error)
	Validate(token, expectedSubject string) (bool, error)
}

// UserResolver loads the account named by a token subject. It returns
// (nil, nil) when no such account exists.
type UserResolver interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthMiddleware authenticates "Authorization: Bearer <token>" requests.
// Expired tokens get 401 "token expired" so clients know to log in again;
// every other failure, including an unknown account, gets 401 "invalid token".
func AuthMiddleware(tokens TokenValidator, users UserResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			metrics.AuthFailures.WithLabelValues("missing").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid Authorization header"})
			return
		}

		sub, err := tokens.ExtractSubject(raw)
		if err != nil {
			if errors.Is(err, apperr.ErrTokenExpired) {
				metrics.AuthFailures.WithLabelValues("expired").Inc()
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token expired"})
				return
			}
			metrics.AuthFailures.WithLabelValues("invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		u, err := users.GetByEmail(c.Request.Context(), sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "user lookup failed"})
			return
		}
		if u == nil {
			metrics.AuthFailures.WithLabelValues("unknown_user").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if valid, err := tokens.Validate(raw, u.Email); err != nil || !valid {
			metrics.AuthFailures.WithLabelValues("invalid").Inc()
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(ClaimsKey, map[string]interface{}{"sub": sub, "role": u.Role})
		c.Set(UserKey, u)
		c.Set(TokenKey, raw)
		c.Next()
	}
}

// RequireRole aborts with 403 unless the authenticated user has role.
// It must run after AuthMiddleware.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		if u.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware, or nil.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(UserKey)
	if !ok {
		return nil
	}
	u, _ := v.(*models.User)
	return u
}

// CurrentToken returns the raw bearer token accepted by AuthMiddleware.
func CurrentToken(c *gin.Context) string {
	return c.GetString(TokenKey)
}

func bearerToken(header string) (string, bool) {
	scheme, tok, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// QueryToken copies ?<param>=<token> into the Authorization header when the
// request has none. Browsers cannot set headers on websocket upgrades.
func QueryToken(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			if tok := strings.TrimSpace(c.Query(param)); tok != "" {
				c.Request.Header.Set("Authorization", "Bearer "+tok)
			}
		}
		c.Next()
	}
}
