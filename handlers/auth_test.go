package handlers

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
)

func TestSignupAndLogin(t *testing.T) {
	s := newTestServer(t, nil)

	rw := s.do(t, http.MethodPost, "/signup", "", SignupRequest{UserName: "alice", Email: " Alice@Example.com ", Password: "correct-horse"})
	require.Equal(t, http.StatusCreated, rw.Code)
	u := decode[models.User](t, rw)
	require.Equal(t, "alice@example.com", u.Email)
	require.Equal(t, models.RoleUser, u.Role)
	require.NotContains(t, rw.Body.String(), "correct-horse")
	require.NotContains(t, rw.Body.String(), "passwordHash")

	rw = s.do(t, http.MethodPost, "/login", "", LoginRequest{Email: "alice@example.com", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rw.Code)
	resp := decode[LoginResponse](t, rw)
	require.NotEmpty(t, resp.JWTToken)
	require.Equal(t, int64(3600), resp.ExpiresIn)
	require.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, 5*time.Second)
	require.Equal(t, "alice@example.com", resp.User.Email)

	sub, err := s.tokens.ExtractSubject(resp.JWTToken)
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", sub)
}

func TestSignup_Duplicate(t *testing.T) {
	s := newTestServer(t, nil)
	s.signupAndLogin(t, "alice", "alice@example.com")

	rw := s.do(t, http.MethodPost, "/signup", "", SignupRequest{UserName: "again", Email: "ALICE@example.com", Password: "another-pass"})
	require.Equal(t, http.StatusConflict, rw.Code)
}

func TestSignup_InvalidInput(t *testing.T) {
	s := newTestServer(t, nil)

	rw := s.do(t, http.MethodPost, "/signup", "", SignupRequest{UserName: "bob", Email: "not-an-email", Password: "correct-horse"})
	require.Equal(t, http.StatusBadRequest, rw.Code)

	rw = s.do(t, http.MethodPost, "/signup", "", SignupRequest{UserName: "bob", Email: "bob@example.com", Password: "short"})
	require.Equal(t, http.StatusBadRequest, rw.Code)

	rw = s.do(t, http.MethodPost, "/signup", "", map[string]string{"email": "bob@example.com"})
	require.Equal(t, http.StatusBadRequest, rw.Code)
}

func TestLogin_WrongPasswordAndUnknownUserLookAlike(t *testing.T) {
	s := newTestServer(t, nil)
	s.signupAndLogin(t, "alice", "alice@example.com")

	wrong := s.do(t, http.MethodPost, "/login", "", LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	unknown := s.do(t, http.MethodPost, "/login", "", LoginRequest{Email: "nobody@example.com", Password: "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, http.StatusUnauthorized, unknown.Code)
	require.Equal(t, wrong.Body.String(), unknown.Body.String())
}

func TestAdminRoleFromConfiguredEmails(t *testing.T) {
	s := newTestServer(t, nil)
	tok := s.signupAndLogin(t, "root", "root@example.com")

	rw := s.do(t, http.MethodGet, "/api/user", tok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, models.RoleAdmin, decode[models.User](t, rw).Role)
}

func TestMe(t *testing.T) {
	s := newTestServer(t, nil)
	tok := s.signupAndLogin(t, "alice", "alice@example.com")

	rw := s.do(t, http.MethodGet, "/api/user", tok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "alice", decode[models.User](t, rw).Username)

	rw = s.do(t, http.MethodGet, "/api/user", "", nil)
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	rw = s.do(t, http.MethodGet, "/api/user", tok+"x", nil)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestMe_TokenForDeletedOrUnknownAccount(t *testing.T) {
	s := newTestServer(t, nil)
	// correctly signed, but nobody signed up with this email
	tok, err := s.tokens.Issue("ghost@example.com", nil, time.Minute)
	require.NoError(t, err)

	rw := s.do(t, http.MethodGet, "/api/user", tok, nil)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestGoogleLogin(t *testing.T) {
	s := newTestServer(t, nil)

	rw := s.do(t, http.MethodPost, "/auth/google", "", GoogleLoginRequest{IDToken: "google-ok"})
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	resp := decode[LoginResponse](t, rw)
	require.Equal(t, "alice.g@example.com", resp.User.Email)
	require.Equal(t, "GOOGLE", resp.User.AuthType)

	// second sign-in resolves to the same account
	rw = s.do(t, http.MethodPost, "/auth/google", "", GoogleLoginRequest{IDToken: "google-ok"})
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, resp.User.ID, decode[LoginResponse](t, rw).User.ID)

	// federated accounts cannot use the password login
	rw = s.do(t, http.MethodPost, "/login", "", LoginRequest{Email: "alice.g@example.com", Password: "anything-at-all"})
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	rw = s.do(t, http.MethodPost, "/auth/google", "", GoogleLoginRequest{IDToken: "forged"})
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	rw = s.do(t, http.MethodPost, "/auth/google", "", GoogleLoginRequest{IDToken: "google-unverified"})
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}
