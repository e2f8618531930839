package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/ids"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
)

// MemoryRepo keeps conversations and messages in process memory. It backs
// unit tests and runs the service when no MONGODB_URI is configured.
// Values are copied in and out so callers never share state with the store.
type MemoryRepo struct {
	mu            sync.RWMutex
	conversations map[int64]models.Conversation
	messages      map[int64][]models.Message
}

var _ Repository = (*MemoryRepo)(nil)

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		conversations: make(map[int64]models.Conversation),
		messages:      make(map[int64][]models.Message),
	}
}

func (m *MemoryRepo) CreateConversation(ctx context.Context, c *models.Conversation) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = ids.Next()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if _, exists := m.conversations[c.ID]; exists {
		return nil, apperr.ErrConflict
	}
	m.conversations[c.ID] = *c
	out := *c
	return &out, nil
}

func (m *MemoryRepo) FindConversationByID(ctx context.Context, id int64) (*models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.conversations[id]; ok {
		return &c, nil
	}
	return nil, apperr.ErrNotFound
}

func (m *MemoryRepo) ListConversationsByUser(ctx context.Context, userID int64) ([]*models.Conversation, error) {
	return m.filterConversations(func(c models.Conversation) bool { return c.UserID == userID }), nil
}

func (m *MemoryRepo) SearchConversations(ctx context.Context, userID int64, term string) ([]*models.Conversation, error) {
	term = strings.ToLower(term)
	return m.filterConversations(func(c models.Conversation) bool {
		if userID != AllUsers && c.UserID != userID {
			return false
		}
		return strings.Contains(strings.ToLower(c.Name), term)
	}), nil
}

func (m *MemoryRepo) ListConversations(ctx context.Context) ([]*models.Conversation, error) {
	return m.filterConversations(func(models.Conversation) bool { return true }), nil
}

// filterConversations returns matches newest first.
func (m *MemoryRepo) filterConversations(keep func(models.Conversation) bool) []*models.Conversation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Conversation, 0)
	for _, c := range m.conversations {
		if keep(c) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *MemoryRepo) DeleteConversation(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[id]; !ok {
		return apperr.ErrNotFound
	}
	delete(m.conversations, id)
	delete(m.messages, id)
	return nil
}

func (m *MemoryRepo) SaveMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.conversations[msg.ConversationID]; !ok {
		return nil, apperr.ErrNotFound
	}
	if msg.ID == 0 {
		msg.ID = ids.Next()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], *msg)
	out := *msg
	return &out, nil
}

func (m *MemoryRepo) FindMessagesByConversation(ctx context.Context, conversationID int64, ascending bool) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.messages[conversationID]
	out := make([]*models.Message, 0, len(stored))
	for i := range stored {
		msg := stored[i]
		out = append(out, &msg)
	}
	sortMessages(out, ascending)
	return out, nil
}

func (m *MemoryRepo) ListMessages(ctx context.Context) ([]*models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Message, 0)
	for _, stored := range m.messages {
		for i := range stored {
			msg := stored[i]
			out = append(out, &msg)
		}
	}
	sortMessages(out, true)
	return out, nil
}

func sortMessages(msgs []*models.Message, ascending bool) {
	sort.SliceStable(msgs, func(i, j int) bool {
		a, b := msgs[i], msgs[j]
		if !ascending {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
