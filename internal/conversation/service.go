package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/conversation/repository"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
)

// DefaultTitle names conversations started without a title.
const DefaultTitle = "New conversation"

// Service manages conversations outside the send pipeline.
type Service struct {
	repo   repository.Repository
	logger *zap.Logger
}

func NewService(repo repository.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// Create starts a DOCTOR conversation owned by userID.
func (s *Service) Create(ctx context.Context, userID int64, title string) (*models.Conversation, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: owner is required", apperr.ErrInvalidInput)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}
	c, err := s.repo.CreateConversation(ctx, &models.Conversation{
		UserID:      userID,
		Name:        title,
		SessionType: models.SessionDoctor,
	})
	if err != nil {
		return nil, persistence("create conversation", err)
	}
	s.logger.Info("conversation created", zap.Int64("conversation_id", c.ID), zap.Int64("user_id", userID))
	return c, nil
}

// GetForUser returns the conversation if u owns it or is an admin. Other
// callers get apperr.ErrNotFound so IDs of other users are not disclosed.
func (s *Service) GetForUser(ctx context.Context, id int64, u *models.User) (*models.Conversation, error) {
	if u == nil {
		return nil, apperr.ErrForbidden
	}
	c, err := s.repo.FindConversationByID(ctx, id)
	if err != nil {
		return nil, persistence("find conversation", err)
	}
	if c.UserID != u.ID && !u.IsAdmin() {
		return nil, fmt.Errorf("%w: conversation %d", apperr.ErrNotFound, id)
	}
	return c, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	out, err := s.repo.ListConversationsByUser(ctx, userID)
	if err != nil {
		return nil, persistence("list conversations", err)
	}
	return out, nil
}

// Search matches conversation names case-insensitively. Pass
// repository.AllUsers to search across owners.
func (s *Service) Search(ctx context.Context, userID int64, term string) ([]*models.Conversation, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("%w: search term is empty", apperr.ErrInvalidInput)
	}
	out, err := s.repo.SearchConversations(ctx, userID, term)
	if err != nil {
		return nil, persistence("search conversations", err)
	}
	return out, nil
}

func (s *Service) ListAll(ctx context.Context) ([]*models.Conversation, error) {
	out, err := s.repo.ListConversations(ctx)
	if err != nil {
		return nil, persistence("list all conversations", err)
	}
	return out, nil
}

func (s *Service) ListAllMessages(ctx context.Context) ([]*models.Message, error) {
	out, err := s.repo.ListMessages(ctx)
	if err != nil {
		return nil, persistence("list all messages", err)
	}
	return out, nil
}

// Delete removes a conversation and its messages.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.DeleteConversation(ctx, id); err != nil {
		return persistence("delete conversation", err)
	}
	s.logger.Info("conversation deleted", zap.Int64("conversation_id", id))
	return nil
}

// persistence passes ErrNotFound through and wraps everything else as a
// persistence error.
func persistence(op string, err error) error {
	if errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", apperr.ErrPersistence, op, err)
}
