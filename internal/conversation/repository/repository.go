// Package repository persists conversations and their messages.
package repository

import (
	"context"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
)

// Repository is the storage contract used by the conversation pipeline and
// service. Lookups of a missing conversation return apperr.ErrNotFound.
// Message listings are ordered by CreatedAt, then ID.
type Repository interface {
	CreateConversation(ctx context.Context, c *models.Conversation) (*models.Conversation, error)
	FindConversationByID(ctx context.Context, id int64) (*models.Conversation, error)
	ListConversationsByUser(ctx context.Context, userID int64) ([]*models.Conversation, error)
	SearchConversations(ctx context.Context, userID int64, term string) ([]*models.Conversation, error)
	ListConversations(ctx context.Context) ([]*models.Conversation, error)
	// DeleteConversation removes the conversation and all of its messages.
	DeleteConversation(ctx context.Context, id int64) error

	// SaveMessage assigns an ID when the message has none.
	SaveMessage(ctx context.Context, m *models.Message) (*models.Message, error)
	FindMessagesByConversation(ctx context.Context, conversationID int64, ascending bool) ([]*models.Message, error)
	ListMessages(ctx context.Context) ([]*models.Message, error)
}

// AllUsers disables the owner filter of SearchConversations.
const AllUsers int64 = 0
