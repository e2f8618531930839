package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
)

const (
	AuthLocal  = "LOCAL"
	AuthGoogle = "GOOGLE"

	MinPasswordLength = 8
)

// Service encapsulates user-related business logic
type Service struct {
	repo        UserRepository
	adminEmails map[string]bool
	cost        int
	dummyHash   []byte
	logger      *zap.Logger
}

type Option func(*Service)

// WithAdminEmails grants ADMIN to accounts created with one of these emails.
func WithAdminEmails(emails []string) Option {
	return func(s *Service) {
		for _, e := range emails {
			s.adminEmails[NormalizeEmail(e)] = true
		}
	}
}

// WithBcryptCost overrides bcrypt.DefaultCost. Tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(r UserRepository, opts ...Option) *Service {
	s := &Service{repo: r, adminEmails: map[string]bool{}, cost: bcrypt.DefaultCost, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.cost)
	return s
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Signup registers a local account.
func (s *Service) Signup(ctx context.Context, username, email, password string) (*models.User, error) {
	email = NormalizeEmail(email)
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", apperr.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: email is invalid", apperr.ErrInvalidInput)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", apperr.ErrInvalidInput, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, &models.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		Role:         s.roleFor(email),
		AuthType:     AuthLocal,
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return nil, fmt.Errorf("%w: email already registered", apperr.ErrConflict)
		}
		return nil, fmt.Errorf("%w: create user: %w", apperr.ErrPersistence, err)
	}
	s.logger.Info("user signed up", zap.Int64("user_id", u.ID), zap.String("role", u.Role))
	return u, nil
}

// Authenticate checks a local password. Unknown emails and wrong passwords
// both return apperr.ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("%w: lookup user: %w", apperr.ErrPersistence, err)
	}
	if u == nil || u.PasswordHash == "" {
		// burn a comparison so unknown accounts take as long as known ones
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, apperr.ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, apperr.ErrInvalidCredentials
	}
	return u, nil
}

// GetByEmail returns (nil, nil) for unknown emails.
func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	u, err := s.repo.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("%w: lookup user: %w", apperr.ErrPersistence, err)
	}
	return u, nil
}

// UpsertFromClaims creates or returns the account for a verified Google ID
// token. Claims without a verified email yield (nil, nil).
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	email, _ := claims["email"].(string)
	email = NormalizeEmail(email)
	if email == "" {
		return nil, nil
	}
	if verified, ok := claims["email_verified"].(bool); ok && !verified {
		return nil, nil
	}
	name, _ := claims["name"].(string)
	if name == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	u, err := s.repo.UpsertByEmail(ctx, &models.User{
		Username: name,
		Email:    email,
		Role:     s.roleFor(email),
		AuthType: AuthGoogle,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: upsert user: %w", apperr.ErrPersistence, err)
	}
	return u, nil
}

func (s *Service) roleFor(email string) string {
	if s.adminEmails[email] {
		return models.RoleAdmin
	}
	return models.RoleUser
}
