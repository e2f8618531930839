// Package llm adapts langchaingo chat models to generator.Backend.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/config"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/generator"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderMock      = "mock"
)

// Backend sends the prompt as a single human message.
type Backend struct {
	llm llms.Model
}

var _ generator.Backend = (*Backend)(nil)

func NewBackend(model llms.Model) *Backend {
	return &Backend{llm: model}
}

// Complete returns nil when the model produced no choices so the generator
// treats it as an empty response.
func (b *Backend) Complete(ctx context.Context, model, prompt string) (*generator.Completion, error) {
	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, strings.TrimSpace(prompt)),
	}
	var opts []llms.CallOption
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	resp, err := b.llm.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, wrapFatalError(fmt.Errorf("generate content: %w", err))
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return nil, nil
	}
	return &generator.Completion{Text: resp.Choices[0].Content}, nil
}

// New builds the backend selected by cfg.Provider.
func New(cfg config.AIConfig, logger *zap.Logger) (generator.Backend, error) {
	var (
		model llms.Model
		err   error
	)

	switch cfg.Provider {
	case ProviderMock:
		logger.Warn("AI_PROVIDER=mock, using canned AI responses")
		return NewMockBackend(), nil

	case ProviderOllama:
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		model, err = ollama.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		model, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case ProviderAnthropic:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		opts := []anthropic.Option{anthropic.WithToken(cfg.APIKey), anthropic.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		model, err = anthropic.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}

	logger.Info("AI backend configured", zap.String("provider", cfg.Provider), zap.String("model", cfg.Model))
	return NewBackend(model), nil
}
