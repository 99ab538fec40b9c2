package llm

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/Veraticus/spice-insight/internal/common"
)

// BreakerSettings configures the per-capability circuit breaker.
type BreakerSettings struct {
	OpenTimeout     time.Duration
	FailureRatio    float64
	MinRequests     uint32
	HalfOpenMaxCall uint32
	Enabled         bool
}

func newBreaker(name string, s BreakerSettings, logger *slog.Logger) *gobreaker.CircuitBreaker[any] {
	if !s.Enabled {
		return nil
	}
	if s.MinRequests == 0 {
		s.MinRequests = 5
	}
	if s.FailureRatio <= 0 || s.FailureRatio > 1 {
		s.FailureRatio = 0.5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 30 * time.Second
	}
	if s.HalfOpenMaxCall == 0 {
		s.HalfOpenMaxCall = 1
	}

	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        name,
		MaxRequests: s.HalfOpenMaxCall,
		Timeout:     s.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			// A malformed request is our fault, not the provider's.
			var retryable *common.RetryableError
			if errors.As(err, &retryable) && !retryable.Retryable {
				return true
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"capability", name,
				"from", from.String(),
				"to", to.String())
		},
	})
}

// isBreakerOpen reports whether err came from a tripped breaker.
func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
