// Package generator obtains text from an AI backend under a bounded retry
// policy with linear backoff.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aldebaran/aldebaranhealth/backend/go-services/internal/apperr"
	"github.com/aldebaran/aldebaranhealth/backend/go-services/pkg/metrics"
)

// Completion is a backend response. A nil Completion or blank Text counts
// as a failed attempt.
type Completion struct {
	Text string
}

// Backend is a single text-generation call. Only Generator calls it.
type Backend interface {
	Complete(ctx context.Context, model, prompt string) (*Completion, error)
}

var errEmptyResponse = errors.New("empty response from backend")

type Generator struct {
	backend Backend
	model   string
	policy  Policy
	sleep   Sleeper
	logger  *zap.Logger
}

type Option func(*Generator)

// WithSleeper replaces the backoff wait, mainly so tests avoid wall-clock delays.
func WithSleeper(s Sleeper) Option {
	return func(g *Generator) { g.sleep = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

func New(backend Backend, model string, policy Policy, opts ...Option) *Generator {
	g := &Generator{
		backend: backend,
		model:   model,
		policy:  policy,
		sleep:   sleepWithCtx,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Generate returns the trimmed backend text for prompt.
//
// Transient errors and empty responses are retried up to Policy.MaxAttempts
// times. Permanent errors stop the loop at once. Both exhaustion and
// permanent failure return an error matching apperr.ErrUpstreamUnavailable.
// A blank prompt fails with apperr.ErrInvalidInput without calling the backend.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", apperr.ErrInvalidInput)
	}

	log := g.logger.With(zap.String("request_id", uuid.NewString()), zap.String("model", g.model))
	limit := g.policy.attempts()
	var lastErr error

	for attempt := 1; attempt <= limit; attempt++ {
		if err := ctx.Err(); err != nil {
			metrics.GeneratorAttempts.WithLabelValues("canceled").Inc()
			return "", fmt.Errorf("%w: canceled before attempt %d: %w", apperr.ErrUpstreamUnavailable, attempt, err)
		}

		text, err := g.attempt(ctx, prompt, attempt, log)
		if err == nil {
			return text, nil
		}
		lastErr = err

		if errors.Is(err, apperr.ErrInvalidInput) || IsPermanent(err) {
			metrics.GeneratorAttempts.WithLabelValues("permanent").Inc()
			log.Warn("generation failed permanently", zap.Int("attempt", attempt), zap.Error(err))
			return "", fmt.Errorf("%w: permanent backend error: %w", apperr.ErrUpstreamUnavailable, err)
		}
		if ctx.Err() != nil {
			metrics.GeneratorAttempts.WithLabelValues("canceled").Inc()
			return "", fmt.Errorf("%w: canceled during attempt %d: %w", apperr.ErrUpstreamUnavailable, attempt, ctx.Err())
		}

		if errors.Is(err, errEmptyResponse) {
			metrics.GeneratorAttempts.WithLabelValues("empty").Inc()
		} else {
			metrics.GeneratorAttempts.WithLabelValues("transient").Inc()
		}

		if attempt == limit {
			break
		}
		delay := g.policy.Delay(attempt)
		log.Warn("generation attempt failed, backing off",
			zap.Int("attempt", attempt), zap.Int("max_attempts", limit),
			zap.Duration("delay", delay), zap.Error(err))
		if serr := g.sleep(ctx, delay); serr != nil {
			return "", fmt.Errorf("%w: canceled during backoff after attempt %d: %w", apperr.ErrUpstreamUnavailable, attempt, serr)
		}
	}

	log.Error("generation attempts exhausted", zap.Int("attempts", limit), zap.Error(lastErr))
	return "", fmt.Errorf("%w: after %d attempts: %v", apperr.ErrUpstreamUnavailable, limit, lastErr)
}

func (g *Generator) attempt(ctx context.Context, prompt string, n int, log *zap.Logger) (string, error) {
	actx := ctx
	if g.policy.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, g.policy.AttemptTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.backend.Complete(actx, g.model, prompt)
	elapsed := time.Since(start)
	metrics.GeneratorAttemptDuration.Observe(elapsed.Seconds())
	log.Debug("generation attempt", zap.Int("attempt", n), zap.Duration("latency", elapsed), zap.Bool("ok", err == nil))

	if err != nil {
		return "", err
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", errEmptyResponse
	}
	metrics.GeneratorAttempts.WithLabelValues("success").Inc()
	return strings.TrimSpace(resp.Text), nil
}
