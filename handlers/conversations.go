package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/conversation"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/conversation/repository"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/middleware"
)

type CreateConversationRequest struct {
	Name string `json:"name"`
}

type MessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// ConversationHandler serves conversations and their transcripts.
type ConversationHandler struct {
	convs    *conversation.Service
	pipeline *conversation.Pipeline
	exporter *conversation.Exporter
	logger   *zap.Logger
}

// NewConversationHandler wires the conversation endpoints. exporter may be nil,
// in which case the export route is not registered.
func NewConversationHandler(convs *conversation.Service, p *conversation.Pipeline, exporter *conversation.Exporter, logger *zap.Logger) *ConversationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationHandler{convs: convs, pipeline: p, exporter: exporter, logger: logger}
}

// Register mounts the user routes on rg, which must already run AuthMiddleware.
func (h *ConversationHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/conversation")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/search", h.Search)
	g.GET("/:id/messages", h.Transcript)
	g.POST("/:id/messages", h.SendMessage)
	if h.exporter != nil {
		g.POST("/:id/export", h.Export)
	}
}

// RegisterAdmin mounts the cross-user routes. rg must run AuthMiddleware and
// RequireRole(models.RoleAdmin).
func (h *ConversationHandler) RegisterAdmin(rg *gin.RouterGroup) {
	a := rg.Group("/admin")
	a.GET("/conversations", h.ListAll)
	a.GET("/conversations/search", h.SearchAll)
	a.GET("/messages", h.ListAllMessages)
	a.DELETE("/conversations/:id", h.Delete)
}

func (h *ConversationHandler) Create(c *gin.Context) {
	var req CreateConversationRequest
	// an empty body is allowed and yields the default title
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	u := middleware.CurrentUser(c)
	conv, err := h.convs.Create(c.Request.Context(), u.ID, req.Name)
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (h *ConversationHandler) List(c *gin.Context) {
	u := middleware.CurrentUser(c)
	out, err := h.convs.ListByUser(c.Request.Context(), u.ID)
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(out))
}

func (h *ConversationHandler) Search(c *gin.Context) {
	u := middleware.CurrentUser(c)
	out, err := h.convs.Search(c.Request.Context(), u.ID, c.Query("term"))
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(out))
}

func (h *ConversationHandler) Transcript(c *gin.Context) {
	conv, ok := h.owned(c)
	if !ok {
		return
	}
	msgs, err := h.pipeline.GetTranscript(c.Request.Context(), conv.ID)
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(msgs))
}

// SendMessage stores the user's message and the AI reply (or the fallback)
// and returns the whole transcript.
func (h *ConversationHandler) SendMessage(c *gin.Context) {
	conv, ok := h.owned(c)
	if !ok {
		return
	}
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msgs, err := h.pipeline.CreateMessage(c.Request.Context(), conv.ID, req.Content)
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, msgs)
}

func (h *ConversationHandler) Export(c *gin.Context) {
	conv, ok := h.owned(c)
	if !ok {
		return
	}
	res, err := h.exporter.Export(c.Request.Context(), conv)
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *ConversationHandler) ListAll(c *gin.Context) {
	out, err := h.convs.ListAll(c.Request.Context())
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(out))
}

func (h *ConversationHandler) SearchAll(c *gin.Context) {
	out, err := h.convs.Search(c.Request.Context(), repository.AllUsers, c.Query("term"))
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(out))
}

func (h *ConversationHandler) ListAllMessages(c *gin.Context) {
	out, err := h.convs.ListAllMessages(c.Request.Context())
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(out))
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	if err := h.convs.Delete(c.Request.Context(), id); err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// owned resolves :id to a conversation the caller may access. It writes the
// error response itself and reports false on failure.
func (h *ConversationHandler) owned(c *gin.Context) (*models.Conversation, bool) {
	id, ok := conversationID(c)
	if !ok {
		return nil, false
	}
	conv, err := h.convs.GetForUser(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		abortWith(c, h.logger, err)
		return nil, false
	}
	return conv, true
}

func conversationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return id, true
}

// nonNil keeps empty lists rendering as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
