package users

import (
	"context"
	"sync"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
)

// MemoryUserRepository keeps users in process memory, keyed by email.
type MemoryUserRepository struct {
	mu      sync.RWMutex
	byEmail map[string]models.User
}

var _ UserRepository = (*MemoryUserRepository)(nil)

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{byEmail: make(map[string]models.User)}
}

func (r *MemoryUserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[u.Email]; exists {
		return nil, apperr.ErrConflict
	}
	prepare(u)
	r.byEmail[u.Email] = *u
	out := *u
	return &out, nil
}

func (r *MemoryUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byEmail[email]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *MemoryUserRepository) UpsertByEmail(ctx context.Context, u *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.byEmail[u.Email]; ok {
		return &existing, nil
	}
	prepare(u)
	r.byEmail[u.Email] = *u
	out := *u
	return &out, nil
}
