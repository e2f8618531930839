// Package conversation implements the message-send pipeline and the
// conversation management around it.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/conversation/repository"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/metrics"
)

// FallbackText is stored as the AI reply when generation fails.
const FallbackText = "AI failed to generate a response, please try again"

// TextGenerator is satisfied by *generator.Generator.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Pipeline runs one send at a time per call: validate, resolve the
// conversation, persist the user message, generate, persist the AI reply or
// the fallback, read the transcript back. Calls for the same conversation
// are not serialised; concurrent sends may interleave in the transcript.
type Pipeline struct {
	repo   repository.Repository
	gen    TextGenerator
	now    func() time.Time
	logger *zap.Logger
}

type PipelineOption func(*Pipeline)

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) { p.now = now }
}

func WithLogger(l *zap.Logger) PipelineOption {
	return func(p *Pipeline) { p.logger = l }
}

func NewPipeline(repo repository.Repository, gen TextGenerator, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		repo:   repo,
		gen:    gen,
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// CreateMessage stores content as a USER message, asks the generator for a
// reply and returns the full transcript, oldest first.
//
// Generation failures never surface: they produce a persisted fallback
// message instead. Errors are apperr.ErrInvalidInput for blank content,
// apperr.ErrNotFound for an unknown conversation and apperr.ErrPersistence
// for any storage failure.
func (p *Pipeline) CreateMessage(ctx context.Context, conversationID int64, content string) ([]*models.Message, error) {
	text := strings.TrimSpace(content)
	if text == "" {
		return nil, fmt.Errorf("%w: message content is empty", apperr.ErrInvalidInput)
	}

	log := p.logger.With(zap.Int64("conversation_id", conversationID))

	if _, err := p.resolve(ctx, conversationID); err != nil {
		return nil, err
	}

	userMsg, err := p.repo.SaveMessage(ctx, &models.Message{
		ConversationID: conversationID,
		Content:        text,
		SenderType:     models.SenderUser,
		CreatedAt:      p.now(),
	})
	if err != nil {
		log.Error("failed to save user message", zap.Error(err))
		return nil, fmt.Errorf("%w: save user message: %w", apperr.ErrPersistence, err)
	}
	metrics.MessagesCreated.WithLabelValues(string(models.SenderUser)).Inc()
	log.Info("user message saved", zap.Int64("message_id", userMsg.ID))

	reply, genErr := p.gen.Generate(ctx, content)
	if genErr == nil && strings.TrimSpace(reply) == "" {
		genErr = errors.New("generator returned empty text")
	}
	if genErr != nil {
		log.Warn("generation failed, storing fallback reply", zap.Error(genErr))
		reply = FallbackText
		metrics.FallbackMessages.Inc()
	}

	// The user message is already stored, so the reply is written even if
	// the caller has gone away.
	detached := context.WithoutCancel(ctx)

	aiAt := p.now()
	if aiAt.Before(userMsg.CreatedAt) {
		aiAt = userMsg.CreatedAt
	}
	aiMsg, err := p.repo.SaveMessage(detached, &models.Message{
		ConversationID: conversationID,
		Content:        strings.TrimSpace(reply),
		SenderType:     models.SenderAI,
		CreatedAt:      aiAt,
	})
	if err != nil {
		log.Error("failed to save AI message", zap.Bool("fallback", genErr != nil), zap.Error(err))
		return nil, fmt.Errorf("%w: save AI message: %w", apperr.ErrPersistence, err)
	}
	metrics.MessagesCreated.WithLabelValues(string(models.SenderAI)).Inc()
	log.Info("AI message saved", zap.Int64("message_id", aiMsg.ID), zap.Bool("fallback", genErr != nil))

	return p.transcript(detached, conversationID)
}

// GetTranscript returns every message of the conversation, oldest first.
func (p *Pipeline) GetTranscript(ctx context.Context, conversationID int64) ([]*models.Message, error) {
	if _, err := p.resolve(ctx, conversationID); err != nil {
		return nil, err
	}
	return p.transcript(ctx, conversationID)
}

func (p *Pipeline) resolve(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	c, err := p.repo.FindConversationByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, fmt.Errorf("%w: conversation %d", apperr.ErrNotFound, conversationID)
		}
		return nil, fmt.Errorf("%w: find conversation: %w", apperr.ErrPersistence, err)
	}
	return c, nil
}

func (p *Pipeline) transcript(ctx context.Context, conversationID int64) ([]*models.Message, error) {
	msgs, err := p.repo.FindMessagesByConversation(ctx, conversationID, true)
	if err != nil {
		return nil, fmt.Errorf("%w: read transcript: %w", apperr.ErrPersistence, err)
	}
	return msgs, nil
}
