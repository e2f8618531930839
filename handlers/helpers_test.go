package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/conversation"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/conversation/repository"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/generator"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/llm"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/storage"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/stress"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/tokens"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/users"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testSecret = base64.StdEncoding.EncodeToString([]byte("handlers-test-secret-0123456789abcdef"))

// fakeGoogle accepts "google-ok" as an ID token for alice.
type fakeGoogle struct{}

func (fakeGoogle) Verify(ctx context.Context, raw string) (map[string]interface{}, error) {
	switch raw {
	case "google-ok":
		return map[string]interface{}{"email": "alice.g@example.com", "email_verified": true, "name": "Alice G"}, nil
	case "google-unverified":
		return map[string]interface{}{"email": "eve@example.com", "email_verified": false}, nil
	}
	return nil, errors.New("bad id token")
}

type failingBackend struct{ calls int }

func (f *failingBackend) Complete(ctx context.Context, model, prompt string) (*generator.Completion, error) {
	f.calls++
	return nil, errors.New("503 service unavailable")
}

type testServer struct {
	router *gin.Engine
	tokens *tokens.Service
	users  *users.Service
	repo   *repository.MemoryRepo
	store  *storage.MemoryStorage
}

func newTestServer(t *testing.T, backend generator.Backend) *testServer {
	t.Helper()
	return newTestServerWithClock(t, backend, time.Now)
}

// newTestServerWithClock shares now between token issuance and the chat
// socket's expiry check.
func newTestServerWithClock(t *testing.T, backend generator.Backend, now func() time.Time) *testServer {
	t.Helper()
	if backend == nil {
		backend = llm.NewMockBackend()
	}
	toks, err := tokens.NewService(testSecret, time.Hour, tokens.WithClock(now))
	require.NoError(t, err)

	usersSvc := users.NewService(users.NewMemoryUserRepository(),
		users.WithAdminEmails([]string{"root@example.com"}),
		users.WithBcryptCost(bcrypt.MinCost))

	repo := repository.NewMemoryRepo()
	gen := generator.New(backend, "test-model",
		generator.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, AttemptTimeout: time.Second},
		generator.WithSleeper(func(ctx context.Context, d time.Duration) error { return nil }))
	pipeline := conversation.NewPipeline(repo, gen)
	convs := conversation.NewService(repo, nil)
	store := storage.NewMemoryStorage()

	r := gin.New()
	Routes{
		Auth:          NewAuthHandler(usersSvc, toks, fakeGoogle{}, nil),
		Conversations: NewConversationHandler(convs, pipeline, conversation.NewExporter(pipeline, store, nil), nil),
		Stress:        NewStressHandler(stress.NewAnalyzer(stress.WithClock(now)), nil),
		Chat:          NewChatSocket(convs, pipeline, toks, "", nil, WithChatClock(now)),
		Tokens:        toks,
		Users:         usersSvc,
	}.Mount(r)

	return &testServer{router: r, tokens: toks, users: usersSvc, repo: repo, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rw := httptest.NewRecorder()
	s.router.ServeHTTP(rw, req)
	return rw
}

// signupAndLogin registers an account and returns its session token.
func (s *testServer) signupAndLogin(t *testing.T, name, email string) string {
	t.Helper()
	rw := s.do(t, http.MethodPost, "/signup", "", SignupRequest{UserName: name, Email: email, Password: "correct-horse"})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())

	rw = s.do(t, http.MethodPost, "/login", "", LoginRequest{Email: email, Password: "correct-horse"})
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	var resp LoginResponse
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &resp))
	return resp.JWTToken
}

func decode[T any](t *testing.T, rw *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &v), rw.Body.String())
	return v
}
