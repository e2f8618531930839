package tokens

import (
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
)

var testSecret = base64.StdEncoding.EncodeToString([]byte("test-secret-32-bytes-should-be-long-enough"))

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestService(t *testing.T) (*Service, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	s, err := NewService(testSecret, time.Hour, WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewService error: %v", err)
	}
	return s, clk
}

func TestNewService_RejectsShortOrInvalidSecret(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("too-short"))
	if _, err := NewService(short, time.Hour); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for short secret, got %v", err)
	}
	if _, err := NewService("%%% not base64 %%%", time.Hour); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for non-base64 secret, got %v", err)
	}
	if _, err := NewService("", time.Hour); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestIssue_ValidateRoundTrip(t *testing.T) {
	s, _ := newTestService(t)

	tok, err := s.Issue("alice@example.com", map[string]any{"role": "USER"}, 10*time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if n := len(strings.Split(tok, ".")); n != 3 {
		t.Fatalf("expected 3 token segments, got %d", n)
	}

	ok, err := s.Validate(tok, "alice@example.com")
	if err != nil || !ok {
		t.Fatalf("expected token to validate, ok=%v err=%v", ok, err)
	}
	ok, err = s.Validate(tok, "bob@example.com")
	if err != nil || ok {
		t.Fatalf("expected subject mismatch to return false without error, ok=%v err=%v", ok, err)
	}

	sub, err := s.ExtractSubject(tok)
	if err != nil || sub != "alice@example.com" {
		t.Fatalf("unexpected subject %q err=%v", sub, err)
	}
	role, err := s.ExtractClaim(tok, "role")
	if err != nil || role != "USER" {
		t.Fatalf("unexpected role claim %v err=%v", role, err)
	}
	missing, err := s.ExtractClaim(tok, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for absent claim, got %v err=%v", missing, err)
	}
}

func TestIssue_ReservedClaimsCannotBeOverridden(t *testing.T) {
	s, clk := newTestService(t)

	tok, err := s.Issue("alice@example.com", map[string]any{"sub": "mallory", "exp": 9999999999}, time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	sub, _ := s.ExtractSubject(tok)
	if sub != "alice@example.com" {
		t.Fatalf("extra claims must not override sub, got %q", sub)
	}
	exp, err := s.ExtractExpiry(tok)
	if err != nil {
		t.Fatalf("ExtractExpiry error: %v", err)
	}
	if want := clk.Now().Add(time.Minute).Unix(); exp.Unix() != want {
		t.Fatalf("exp = %d, want %d", exp.Unix(), want)
	}
	iat, _ := s.ExtractClaim(tok, "iat")
	if iat.(float64) >= float64(exp.Unix()) {
		t.Fatalf("expiry must be after issued-at")
	}
}

func TestIssueDefault_UsesConfiguredTTL(t *testing.T) {
	s, clk := newTestService(t)

	tok, err := s.IssueDefault("alice@example.com", nil)
	if err != nil {
		t.Fatalf("IssueDefault error: %v", err)
	}
	exp, _ := s.ExtractExpiry(tok)
	if !exp.Equal(clk.Now().Add(time.Hour)) {
		t.Fatalf("expected default ttl of 1h, exp=%v", exp)
	}
}

func TestIssue_RejectsInvalidInput(t *testing.T) {
	s, _ := newTestService(t)

	cases := []struct {
		name    string
		subject string
		ttl     time.Duration
	}{
		{"blank subject", "   ", time.Minute},
		{"zero ttl", "alice@example.com", 0},
		{"negative ttl", "alice@example.com", -time.Minute},
		{"sub-second ttl", "alice@example.com", 100 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Issue(tc.subject, nil, tc.ttl); !errors.Is(err, apperr.ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestIssue_InvalidOnceTTLElapsed(t *testing.T) {
	s, clk := newTestService(t)

	tok, err := s.Issue("alice@example.com", nil, time.Second)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if ok, _ := s.Validate(tok, "alice@example.com"); !ok {
		t.Fatalf("fresh token should validate")
	}

	clk.Advance(time.Second + time.Millisecond)
	if ok, _ := s.Validate(tok, "alice@example.com"); ok {
		t.Fatalf("token must not validate after issuance + ttl")
	}
}

func TestExpiry(t *testing.T) {
	s, clk := newTestService(t)

	tok, err := s.Issue("alice@example.com", nil, time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	if expired, _ := s.IsExpired(tok); expired {
		t.Fatalf("fresh token reported as expired")
	}

	clk.Advance(2 * time.Minute)

	ok, err := s.Validate(tok, "alice@example.com")
	if err != nil || ok {
		t.Fatalf("expected expired token to fail validation quietly, ok=%v err=%v", ok, err)
	}
	if _, err := s.ExtractSubject(tok); !errors.Is(err, apperr.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
	expired, err := s.IsExpired(tok)
	if err != nil || !expired {
		t.Fatalf("expected IsExpired=true, got %v err=%v", expired, err)
	}
}

// Tampering with the signature must fail verification
func TestTamperedSignature(t *testing.T) {
	s, _ := newTestService(t)
	tok, err := s.Issue("alice@example.com", nil, time.Minute)
	if err != nil {
		t.Fatalf("Issue error: %v", err)
	}
	parts := strings.Split(tok, ".")
	sig := []byte(parts[2])
	// flip a character in the middle; the trailing one may carry padding bits only
	i := len(sig) / 2
	if sig[i] == 'A' {
		sig[i] = 'B'
	} else {
		sig[i] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	ok, err := s.Validate(tampered, "alice@example.com")
	if err != nil || ok {
		t.Fatalf("expected tampered token to be rejected without error, ok=%v err=%v", ok, err)
	}
	if _, err := s.ExtractSubject(tampered); !errors.Is(err, apperr.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	if _, err := s.ExtractExpiry(tampered); !errors.Is(err, apperr.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid from ExtractExpiry, got %v", err)
	}
}

// Tampering with payload must fail signature verification
func TestTamperedPayload(t *testing.T) {
	s, _ := newTestService(t)
	tok, _ := s.Issue("user-t", nil, 5*time.Minute)

	parts := strings.Split(tok, ".")
	payload, _ := jwt.NewParser().DecodeSegment(parts[1])
	parts[1] = new(jwt.Token).EncodeSegment([]byte(strings.Replace(string(payload), "user-t", "attacker", 1)))
	tampered := strings.Join(parts, ".")

	if ok, _ := s.Validate(tampered, "attacker"); ok {
		t.Fatalf("tampered payload must not validate")
	}
	if _, err := s.ExtractClaim(tampered, "sub"); !errors.Is(err, apperr.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	s, clk := newTestService(t)
	other, _ := NewService(base64.StdEncoding.EncodeToString([]byte("different-secret-xxxxxxxxxxxxxxxxxxxx")), time.Hour, WithClock(clk.Now))

	tok, _ := other.Issue("alice@example.com", nil, time.Minute)
	if ok, err := s.Validate(tok, "alice@example.com"); ok || err != nil {
		t.Fatalf("token from another key must be rejected quietly, ok=%v err=%v", ok, err)
	}
}

func TestMalformed(t *testing.T) {
	s, _ := newTestService(t)

	for _, tok := range []string{"", "not-a-jwt", "not.a.jwt"} {
		ok, err := s.Validate(tok, "x")
		if ok || !errors.Is(err, apperr.ErrTokenInvalid) {
			t.Fatalf("Validate(%q): expected ErrTokenInvalid, got ok=%v err=%v", tok, ok, err)
		}
		if _, err := s.ExtractSubject(tok); !errors.Is(err, apperr.ErrTokenInvalid) {
			t.Fatalf("ExtractSubject(%q): expected ErrTokenInvalid, got %v", tok, err)
		}
	}
}

// Rejected when alg=none (unsigned token)
func TestAlgNoneRejected(t *testing.T) {
	s, _ := newTestService(t)
	header := new(jwt.Token).EncodeSegment([]byte(`{"alg":"none","typ":"JWT"}`))
	payload := new(jwt.Token).EncodeSegment([]byte(`{"sub":"u-none","exp":9999999999,"iat":1}`))
	tok := header + "." + payload + "."

	if ok, _ := s.Validate(tok, "u-none"); ok {
		t.Fatalf("alg=none token must not validate")
	}
	if _, err := s.ExtractSubject(tok); !errors.Is(err, apperr.ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}
