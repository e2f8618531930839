package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/conversation/repository"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/generator"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/models"
)

type fakeGen struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (f *fakeGen) Generate(ctx context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

// failingRepo wraps a MemoryRepo and fails SaveMessage on the listed call numbers.
type failingRepo struct {
	*repository.MemoryRepo
	failOn map[int]bool
	saves  int
}

func (r *failingRepo) SaveMessage(ctx context.Context, m *models.Message) (*models.Message, error) {
	r.saves++
	if r.failOn[r.saves] {
		return nil, errors.New("disk full")
	}
	return r.MemoryRepo.SaveMessage(ctx, m)
}

type backendFunc func(ctx context.Context, model, prompt string) (*generator.Completion, error)

func (f backendFunc) Complete(ctx context.Context, model, prompt string) (*generator.Completion, error) {
	return f(ctx, model, prompt)
}

func noSleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

func newConversation(t *testing.T, repo repository.Repository) *models.Conversation {
	t.Helper()
	c, err := repo.CreateConversation(context.Background(), &models.Conversation{UserID: 1, Name: "Checkup", SessionType: models.SessionDoctor})
	require.NoError(t, err)
	return c
}

func TestCreateMessage_HealthyBackend(t *testing.T) {
	repo := repository.NewMemoryRepo()
	c := newConversation(t, repo)
	gen := &fakeGen{reply: "  Try resting and hydrating  "}
	p := NewPipeline(repo, gen, WithLogger(zaptest.NewLogger(t)))

	transcript, err := p.CreateMessage(context.Background(), c.ID, "  I have a headache ")
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	require.Equal(t, models.SenderUser, transcript[0].SenderType)
	require.Equal(t, "I have a headache", transcript[0].Content)
	require.Equal(t, models.SenderAI, transcript[1].SenderType)
	require.Equal(t, "Try resting and hydrating", transcript[1].Content)
	require.Equal(t, c.ID, transcript[1].ConversationID)
	require.Equal(t, []string{"  I have a headache "}, gen.prompts)
}

func TestCreateMessage_BackendAlwaysFailsStoresFallback(t *testing.T) {
	repo := repository.NewMemoryRepo()
	c := newConversation(t, repo)
	calls := 0
	backend := backendFunc(func(ctx context.Context, model, prompt string) (*generator.Completion, error) {
		calls++
		return nil, errors.New("503 service unavailable")
	})
	gen := generator.New(backend, "m", generator.Policy{MaxAttempts: 3, BaseDelay: time.Second}, generator.WithSleeper(noSleep))
	p := NewPipeline(repo, gen)

	transcript, err := p.CreateMessage(context.Background(), c.ID, "I have a headache")
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Len(t, transcript, 2)
	require.Equal(t, models.SenderUser, transcript[0].SenderType)
	require.Equal(t, models.SenderAI, transcript[1].SenderType)
	require.Equal(t, FallbackText, transcript[1].Content)
}

func TestCreateMessage_EmptyGeneratorTextStoresFallback(t *testing.T) {
	repo := repository.NewMemoryRepo()
	c := newConversation(t, repo)
	p := NewPipeline(repo, &fakeGen{reply: "   "})

	transcript, err := p.CreateMessage(context.Background(), c.ID, "hi")
	require.NoError(t, err)
	require.Equal(t, FallbackText, transcript[1].Content)
}

func TestCreateMessage_BlankContent(t *testing.T) {
	repo := repository.NewMemoryRepo()
	c := newConversation(t, repo)
	gen := &fakeGen{reply: "x"}
	p := NewPipeline(repo, gen)

	for _, content := range []string{"", "   ", "\n\t "} {
		_, err := p.CreateMessage(context.Background(), c.ID, content)
		require.ErrorIs(t, err, apperr.ErrInvalidInput)
	}
	msgs, _ := repo.FindMessagesByConversation(context.Background(), c.ID, true)
	require.Empty(t, msgs)
	require.Empty(t, gen.prompts)
}

func TestCreateMessage_UnknownConversation(t *testing.T) {
	repo := repository.NewMemoryRepo()
	gen := &fakeGen{reply: "x"}
	p := NewPipeline(repo, gen)

	_, err := p.CreateMessage(context.Background(), 424242, "hello")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	require.Empty(t, gen.prompts)
	all, _ := repo.ListMessages(context.Background())
	require.Empty(t, all)
}

func TestCreateMessage_UserMessagePersistFailureSkipsGeneration(t *testing.T) {
	repo := &failingRepo{MemoryRepo: repository.NewMemoryRepo(), failOn: map[int]bool{1: true}}
	c := newConversation(t, repo)
	gen := &fakeGen{reply: "x"}
	p := NewPipeline(repo, gen)

	_, err := p.CreateMessage(context.Background(), c.ID, "hello")
	require.ErrorIs(t, err, apperr.ErrPersistence)
	require.Empty(t, gen.prompts)
}

func TestCreateMessage_FallbackPersistFailureSurfaces(t *testing.T) {
	repo := &failingRepo{MemoryRepo: repository.NewMemoryRepo(), failOn: map[int]bool{2: true}}
	c := newConversation(t, repo)
	p := NewPipeline(repo, &fakeGen{err: apperr.ErrUpstreamUnavailable})

	_, err := p.CreateMessage(context.Background(), c.ID, "hello")
	require.ErrorIs(t, err, apperr.ErrPersistence)
	require.NotErrorIs(t, err, apperr.ErrUpstreamUnavailable)

	// the user message stays
	msgs, _ := repo.FindMessagesByConversation(context.Background(), c.ID, true)
	require.Len(t, msgs, 1)
	require.Equal(t, models.SenderUser, msgs[0].SenderType)
}

func TestCreateMessage_CanceledRequestStillStoresReply(t *testing.T) {
	repo := repository.NewMemoryRepo()
	c := newConversation(t, repo)
	ctx, cancel := context.WithCancel(context.Background())

	backend := backendFunc(func(context.Context, string, string) (*generator.Completion, error) {
		cancel()
		return nil, errors.New("connection reset")
	})
	gen := generator.New(backend, "m", generator.Policy{MaxAttempts: 3, BaseDelay: time.Hour})
	p := NewPipeline(repo, gen)

	transcript, err := p.CreateMessage(ctx, c.ID, "hello")
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	require.Equal(t, FallbackText, transcript[1].Content)
}

func TestTranscriptOrderingAcrossSends(t *testing.T) {
	repo := repository.NewMemoryRepo()
	c := newConversation(t, repo)

	// a coarse clock that never advances: IDs keep the order stable
	frozen := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	p := NewPipeline(repo, &fakeGen{reply: "noted"}, WithClock(func() time.Time { return frozen }))

	const sends = 4
	for i := 0; i < sends; i++ {
		_, err := p.CreateMessage(context.Background(), c.ID, fmt.Sprintf("msg %d", i))
		require.NoError(t, err)
	}

	transcript, err := p.GetTranscript(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 2*sends)
	for i, m := range transcript {
		if i%2 == 0 {
			require.Equal(t, models.SenderUser, m.SenderType)
			require.Equal(t, fmt.Sprintf("msg %d", i/2), m.Content)
		} else {
			require.Equal(t, models.SenderAI, m.SenderType)
		}
		if i > 0 {
			require.False(t, m.CreatedAt.Before(transcript[i-1].CreatedAt))
		}
	}

	again, err := p.GetTranscript(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, transcript, again)
}

func TestCreateMessage_ReplyNeverPrecedesUserMessage(t *testing.T) {
	repo := repository.NewMemoryRepo()
	c := newConversation(t, repo)

	// the second reading is earlier than the first
	readings := []time.Time{
		time.Date(2024, 3, 1, 9, 0, 1, 0, time.UTC),
		time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	i := 0
	now := func() time.Time { ts := readings[i%len(readings)]; i++; return ts }
	p := NewPipeline(repo, &fakeGen{reply: "ok"}, WithClock(now))

	transcript, err := p.CreateMessage(context.Background(), c.ID, "hello")
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	require.Equal(t, models.SenderUser, transcript[0].SenderType)
	require.Equal(t, transcript[0].CreatedAt, transcript[1].CreatedAt)
}

func TestTranscriptMonotonicWithForwardClock(t *testing.T) {
	repo := repository.NewMemoryRepo()
	c := newConversation(t, repo)
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	now := func() time.Time { clock = clock.Add(time.Second); return clock }
	p := NewPipeline(repo, &fakeGen{reply: "ok"}, WithClock(now))

	for i := 0; i < 3; i++ {
		_, err := p.CreateMessage(context.Background(), c.ID, "m")
		require.NoError(t, err)
	}
	transcript, _ := p.GetTranscript(context.Background(), c.ID)
	for i := 1; i < len(transcript); i++ {
		require.False(t, transcript[i].CreatedAt.Before(transcript[i-1].CreatedAt))
	}
}

func TestGetTranscript_UnknownConversation(t *testing.T) {
	p := NewPipeline(repository.NewMemoryRepo(), &fakeGen{})
	_, err := p.GetTranscript(context.Background(), 1)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
