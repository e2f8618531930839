package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/stress"
)

// StressRequest carries PSS-10 answers in question order, each 0-4.
type StressRequest struct {
	Responses []int          `json:"responses" binding:"required"`
	UserInfo  map[string]any `json:"user_info"`
}

// StressHandler serves the PSS-10 questionnaire and its scoring.
type StressHandler struct {
	analyzer *stress.Analyzer
	logger   *zap.Logger
}

func NewStressHandler(a *stress.Analyzer, logger *zap.Logger) *StressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StressHandler{analyzer: a, logger: logger}
}

func (h *StressHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/api")
	g.GET("/questions", h.Questions)
	g.POST("/analyze", h.Analyze)
	g.POST("/quick-score", h.QuickScore)
}

func (h *StressHandler) Questions(c *gin.Context) {
	c.JSON(http.StatusOK, stress.GetQuestionnaire())
}

func (h *StressHandler) Analyze(c *gin.Context) {
	var req StressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	out, err := h.analyzer.Analyze(req.Responses, req.UserInfo)
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// QuickScore returns only the total and band.
func (h *StressHandler) QuickScore(c *gin.Context) {
	var req StressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := stress.Score(req.Responses)
	if err != nil {
		abortWith(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
