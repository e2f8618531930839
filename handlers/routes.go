package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/middleware"
)

// Routes groups the handlers and the middleware they run behind.
type Routes struct {
	Auth          *AuthHandler
	Conversations *ConversationHandler
	Chat          *ChatSocket
	Stress        *StressHandler

	Tokens middleware.TokenValidator
	Users  middleware.UserResolver
	// Limiter is optional. Authenticated routes are limited per user,
	// public ones per client IP.
	Limiter middleware.Limiter
}

// Mount registers every API route on r.
func (rt Routes) Mount(r *gin.Engine) {
	auth := middleware.AuthMiddleware(rt.Tokens, rt.Users)
	limit := func(hs ...gin.HandlerFunc) []gin.HandlerFunc {
		if rt.Limiter != nil {
			hs = append(hs, middleware.RateLimit(rt.Limiter))
		}
		return hs
	}

	public := r.Group("", limit()...)
	if rt.Auth != nil {
		rt.Auth.Register(public, auth)
	}
	if rt.Stress != nil {
		rt.Stress.Register(public)
	}

	authed := r.Group("", limit(auth)...)
	if rt.Conversations != nil {
		rt.Conversations.Register(authed)
		rt.Conversations.RegisterAdmin(authed.Group("", middleware.RequireRole(models.RoleAdmin)))
	}

	if rt.Chat != nil {
		rt.Chat.Register(r.Group("", limit(middleware.QueryToken("access_token"), auth)...))
	}
}
