package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/conversation"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/middleware"
)

const (
	chatMaxMessageSize = 16 << 10
	chatReadTimeout    = 5 * time.Minute
	chatWriteTimeout   = 10 * time.Second
)

// ChatFrame is one server-to-client websocket frame. Exactly one of
// Messages and Error is set.
type ChatFrame struct {
	Type     string      `json:"type"`
	Messages interface{} `json:"messages,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// TokenExpiry reads the exp claim of a session token.
type TokenExpiry interface {
	ExtractExpiry(token string) (time.Time, error)
}

// ChatSocket runs the send pipeline over a websocket, one request frame
// ({"content": "..."}) at a time. A socket lives no longer than the token
// it was opened with.
type ChatSocket struct {
	convs    *conversation.Service
	pipeline *conversation.Pipeline
	tokens   TokenExpiry
	upgrader websocket.Upgrader
	now      func() time.Time
	logger   *zap.Logger
}

type ChatOption func(*ChatSocket)

// WithChatClock overrides the clock compared against token expiry.
func WithChatClock(now func() time.Time) ChatOption {
	return func(s *ChatSocket) { s.now = now }
}

// NewChatSocket accepts upgrades from allowedOrigin only. An empty
// allowedOrigin accepts same-host requests, the gorilla default.
func NewChatSocket(convs *conversation.Service, p *conversation.Pipeline, tokens TokenExpiry, allowedOrigin string, logger *zap.Logger, opts ...ChatOption) *ChatSocket {
	if logger == nil {
		logger = zap.NewNop()
	}
	up := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024}
	if allowedOrigin != "" {
		allowed := strings.TrimRight(allowedOrigin, "/")
		up.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || strings.EqualFold(strings.TrimRight(origin, "/"), allowed)
		}
	}
	s := &ChatSocket{convs: convs, pipeline: p, tokens: tokens, upgrader: up, now: time.Now, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register mounts GET /conversation/:id/ws on rg, which must run AuthMiddleware.
func (s *ChatSocket) Register(rg *gin.RouterGroup) {
	rg.GET("/conversation/:id/ws", s.Handle)
}

func (s *ChatSocket) Handle(c *gin.Context) {
	id, ok := conversationID(c)
	if !ok {
		return
	}
	conv, err := s.convs.GetForUser(c.Request.Context(), id, middleware.CurrentUser(c))
	if err != nil {
		abortWith(c, s.logger, err)
		return
	}
	expiresAt, err := s.tokens.ExtractExpiry(middleware.CurrentToken(c))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	log := s.logger.With(zap.Int64("conversation_id", conv.ID))
	ws.SetReadLimit(chatMaxMessageSize)
	ctx := c.Request.Context()

	for {
		_ = ws.SetReadDeadline(time.Now().Add(chatReadTimeout))
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		if !s.now().Before(expiresAt) {
			log.Info("closing chat socket: token expired")
			s.write(ws, ChatFrame{Type: "error", Error: "token expired"})
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "token expired"),
				time.Now().Add(chatWriteTimeout))
			return
		}

		var req MessageRequest
		if err := json.Unmarshal(data, &req); err != nil {
			if !s.write(ws, ChatFrame{Type: "error", Error: "invalid JSON message"}) {
				return
			}
			continue
		}

		msgs, err := s.pipeline.CreateMessage(ctx, conv.ID, req.Content)
		frame := ChatFrame{Type: "transcript", Messages: msgs}
		if err != nil {
			code := statusFor(err)
			frame = ChatFrame{Type: "error", Error: err.Error()}
			if code >= http.StatusInternalServerError {
				log.Error("chat send failed", zap.Error(err))
				frame.Error = http.StatusText(code)
			}
		}
		if !s.write(ws, frame) {
			return
		}
	}
}

func (s *ChatSocket) write(ws *websocket.Conn, f ChatFrame) bool {
	_ = ws.SetWriteDeadline(time.Now().Add(chatWriteTimeout))
	if err := ws.WriteJSON(f); err != nil {
		s.logger.Warn("websocket write failed", zap.Error(err))
		return false
	}
	return true
}
