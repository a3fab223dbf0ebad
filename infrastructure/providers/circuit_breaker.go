package providers

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
	apperrors "engram-backend/pkg/errors"
)

// BreakerConfig holds circuit breaker tuning for provider calls
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the settings used for provider breakers
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

func newBreaker(config BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
}

func mapBreakerError(err error, message string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewTransient(message, err)
	}
	return err
}

// BreakerEmbeddingProvider wraps an EmbeddingProvider in a circuit breaker.
// An open circuit surfaces as a transient error, so queued refresh jobs
// retry once the provider recovers.
type BreakerEmbeddingProvider struct {
	inner   ports.EmbeddingProvider
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerEmbeddingProvider wraps the provider with the given breaker
// settings
func NewBreakerEmbeddingProvider(inner ports.EmbeddingProvider, config BreakerConfig, logger *zap.Logger) *BreakerEmbeddingProvider {
	return &BreakerEmbeddingProvider{
		inner:   inner,
		breaker: newBreaker(config, logger),
	}
}

var _ ports.EmbeddingProvider = (*BreakerEmbeddingProvider)(nil)

// Embed delegates through the breaker
func (p *BreakerEmbeddingProvider) Embed(ctx context.Context, text string) (valueobjects.Embedding, error) {
	result, err := p.breaker.Execute(func() (any, error) {
		return p.inner.Embed(ctx, text)
	})
	if err != nil {
		return nil, mapBreakerError(err, "embedding provider unavailable")
	}
	return result.(valueobjects.Embedding), nil
}

// BreakerSummarizer wraps a Summarizer in a circuit breaker
type BreakerSummarizer struct {
	inner   ports.Summarizer
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerSummarizer wraps the summarizer with the given breaker settings
func NewBreakerSummarizer(inner ports.Summarizer, config BreakerConfig, logger *zap.Logger) *BreakerSummarizer {
	return &BreakerSummarizer{
		inner:   inner,
		breaker: newBreaker(config, logger),
	}
}

var _ ports.Summarizer = (*BreakerSummarizer)(nil)

// Summarize delegates through the breaker
func (s *BreakerSummarizer) Summarize(ctx context.Context, contents []string) (string, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		return s.inner.Summarize(ctx, contents)
	})
	if err != nil {
		return "", mapBreakerError(err, "summarizer unavailable")
	}
	return result.(string), nil
}
