package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/generator"
)

// MockBackend returns deterministic replies without calling a provider.
// It is selected with AI_PROVIDER=mock for local development and demos.
type MockBackend struct{}

var _ generator.Backend = (*MockBackend)(nil)

func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (m *MockBackend) Complete(ctx context.Context, model, prompt string) (*generator.Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &generator.Completion{Text: m.reply(prompt)}, nil
}

func (m *MockBackend) reply(prompt string) string {
	p := strings.ToLower(prompt)
	switch {
	case strings.Contains(p, "headache"):
		return "Try resting and hydrating. If the headache persists or is severe, please see a doctor."
	case strings.Contains(p, "fever"):
		return "Monitor your temperature and stay hydrated. Seek care if it goes above 39°C or lasts more than three days."
	default:
		return fmt.Sprintf("Thanks for sharing. Could you tell me more about %q?", strings.TrimSpace(prompt))
	}
}
