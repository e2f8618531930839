// Package tokens issues and validates stateless HS256 session tokens.
//
// A token carries sub, iat and exp plus any caller-supplied claims. Nothing is
// stored server side: a token is valid for as long as its signature verifies
// and its exp lies in the future.
package tokens

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
)

// MinSecretBytes is the minimum decoded key length accepted for HS256.
const MinSecretBytes = 32

// Service signs and verifies tokens with a single symmetric key.
// It holds no mutable state and is safe for concurrent use.
type Service struct {
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Service)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService decodes secretB64 (standard or URL-safe base64) and returns a
// Service whose default lifetime is ttl.
func NewService(secretB64 string, ttl time.Duration, opts ...Option) (*Service, error) {
	key, err := decodeSecret(secretB64)
	if err != nil {
		return nil, err
	}
	if len(key) < MinSecretBytes {
		return nil, fmt.Errorf("%w: signing secret must decode to at least %d bytes, got %d", apperr.ErrInvalidInput, MinSecretBytes, len(key))
	}
	s := &Service{key: key, ttl: ttl, now: time.Now, logger: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

func decodeSecret(v string) ([]byte, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, fmt.Errorf("%w: signing secret is empty", apperr.ErrInvalidInput)
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if b, err := enc.DecodeString(v); err == nil {
			return b, nil
		}
	}
	return nil, fmt.Errorf("%w: signing secret is not valid base64", apperr.ErrInvalidInput)
}

// TTL returns the default token lifetime.
func (s *Service) TTL() time.Duration { return s.ttl }

// MinTTL is the shortest lifetime Issue accepts. exp is a NumericDate with
// one-second resolution.
const MinTTL = time.Second

// IssueDefault signs a token with the configured default lifetime.
func (s *Service) IssueDefault(subject string, extra map[string]any) (string, error) {
	return s.Issue(subject, extra, s.ttl)
}

// Issue signs a token for subject that expires ttl from now. Extra claims
// are embedded as-is, except sub, iat and exp which are always set by the
// service.
func (s *Service) Issue(subject string, extra map[string]any, ttl time.Duration) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", fmt.Errorf("%w: subject is required", apperr.ErrInvalidInput)
	}
	if ttl < MinTTL {
		return "", fmt.Errorf("%w: token ttl must be at least %s, got %s", apperr.ErrInvalidInput, MinTTL, ttl)
	}

	now := s.now()
	claims := jwt.MapClaims{}
	for k, v := range extra {
		claims[k] = v
	}
	claims["sub"] = subject
	claims["iat"] = now.Unix()
	// truncating to whole seconds never extends the lifetime past now+ttl
	claims["exp"] = now.Add(ttl).Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate reports whether token is correctly signed, unexpired and issued
// for expectedSubject. Ordinary authentication failures (bad signature,
// expiry, subject mismatch) return false with a nil error. Only structurally
// malformed input returns an error.
func (s *Service) Validate(token, expectedSubject string) (bool, error) {
	claims, err := s.parse(token, true)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return false, fmt.Errorf("%w: %v", apperr.ErrTokenInvalid, err)
		}
		s.logger.Debug("token rejected", zap.Error(err))
		return false, nil
	}
	sub, _ := claims["sub"].(string)
	return sub != "" && sub == expectedSubject, nil
}

// ExtractSubject returns the sub claim of a verified, unexpired token.
func (s *Service) ExtractSubject(token string) (string, error) {
	claims, err := s.verified(token)
	if err != nil {
		return "", err
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: missing subject", apperr.ErrTokenInvalid)
	}
	return sub, nil
}

// ExtractClaim returns the named claim, or nil when the token does not carry
// it. Numeric claims come back as float64, as decoded from JSON.
func (s *Service) ExtractClaim(token, key string) (any, error) {
	claims, err := s.verified(token)
	if err != nil {
		return nil, err
	}
	return claims[key], nil
}

// ExtractExpiry returns the exp claim. The signature is verified but the
// token's lifetime is not, so the expiry of a lapsed token can be read.
func (s *Service) ExtractExpiry(token string) (time.Time, error) {
	claims, err := s.parse(token, false)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", apperr.ErrTokenInvalid, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, fmt.Errorf("%w: missing expiry", apperr.ErrTokenInvalid)
	}
	return exp.Time, nil
}

// IsExpired compares the token's expiry with the current time.
func (s *Service) IsExpired(token string) (bool, error) {
	exp, err := s.ExtractExpiry(token)
	if err != nil {
		return false, err
	}
	return !s.now().Before(exp), nil
}

// verified parses with full validation and maps failures onto the
// TokenExpired / TokenInvalid split.
func (s *Service) verified(token string) (jwt.MapClaims, error) {
	claims, err := s.parse(token, true)
	if err == nil {
		return claims, nil
	}
	// jwt reports expiry alongside signature failures; only a verified
	// signature makes an expired token "expired" rather than "invalid".
	if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
		return nil, fmt.Errorf("%w: %v", apperr.ErrTokenExpired, err)
	}
	return nil, fmt.Errorf("%w: %v", apperr.ErrTokenInvalid, err)
}

func (s *Service) parse(token string, validateTimes bool) (jwt.MapClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if validateTimes {
		opts = append(opts, jwt.WithExpirationRequired(), jwt.WithIssuedAt())
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(token), claims, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
