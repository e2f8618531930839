package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/tokens"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/users"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/middleware"
)

// SignupRequest registers a local account.
type SignupRequest struct {
	UserName string `json:"userName" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginRequest is a local email/password login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// GoogleLoginRequest carries a Google ID token obtained by the frontend.
type GoogleLoginRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// LoginResponse is returned by every login flavour.
type LoginResponse struct {
	JWTToken  string       `json:"jwtToken"`
	ExpiresAt time.Time    `json:"expiresAt"`
	ExpiresIn int64        `json:"expiresIn"`
	User      *models.User `json:"user"`
}

// IDTokenVerifier is implemented by *oidc.Verifier.
type IDTokenVerifier interface {
	Verify(ctx context.Context, raw string) (map[string]interface{}, error)
}

// AuthHandler holds dependencies
type AuthHandler struct {
	usersSvc *users.Service
	tokens   *tokens.Service
	google   IDTokenVerifier
	logger   *zap.Logger
}

// NewAuthHandler wires the auth endpoints. google may be nil, in which case
// POST /auth/google is not registered.
func NewAuthHandler(u *users.Service, t *tokens.Service, google IDTokenVerifier, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{usersSvc: u, tokens: t, google: google, logger: logger}
}

// Register mounts the public auth routes on rg and GET /api/user behind auth.
func (h *AuthHandler) Register(rg *gin.RouterGroup, auth gin.HandlerFunc) {
	rg.POST("/signup", h.Signup)
	rg.POST("/login", h.Login)
	if h.google != nil {
		rg.POST("/auth/google", h.GoogleLogin)
	}
	rg.GET("/api/user", auth, h.Me)
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.usersSvc.Signup(c.Request.Context(), req.UserName, req.Email, req.Password)
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
			return
		}
		abortWith(c, h.logger, err)
		return
	}
	h.respondWithToken(c, u)
}

// GoogleLogin exchanges a verified Google ID token for a session token,
// creating the account on first sign-in.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req GoogleLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, err := h.google.Verify(c.Request.Context(), req.IDToken)
	if err != nil {
		h.logger.Debug("google id token rejected", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid id token"})
		return
	}
	u, err := h.usersSvc.UpsertFromClaims(c.Request.Context(), claims)
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "id token carries no verified email"})
		return
	}
	h.respondWithToken(c, u)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	u := middleware.CurrentUser(c)
	if u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h *AuthHandler) respondWithToken(c *gin.Context, u *models.User) {
	tok, err := h.tokens.IssueDefault(u.Email, map[string]any{"role": u.Role, "uid": u.ID})
	if err != nil {
		h.logger.Error("failed to issue token", zap.Int64("user_id", u.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}
	exp, err := h.tokens.ExtractExpiry(tok)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create token"})
		return
	}
	h.logger.Info("user logged in", zap.Int64("user_id", u.ID), zap.String("auth_type", u.AuthType))
	c.JSON(http.StatusOK, LoginResponse{
		JWTToken:  tok,
		ExpiresAt: exp.UTC(),
		ExpiresIn: int64(h.tokens.TTL() / time.Second),
		User:      u,
	})
}
