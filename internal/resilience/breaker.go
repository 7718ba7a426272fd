// Package resilience wraps sony/gobreaker with the settings shared by the
// outbound clients (Google Sheets, AMQP).
package resilience

import (
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerConfig tunes a circuit breaker. Zero values fall back to defaults.
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MinRequests uint32
	// FailureRatio trips the breaker once MinRequests were seen.
	FailureRatio float64
	// Counts decides whether an error counts against the breaker. Errors for
	// which it returns false are passed through without tripping.
	Counts func(err error) bool
	// OnStateChange is called on every transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.MaxRequests == 0 {
		c.MaxRequests = 3
	}
	if c.Interval == 0 {
		c.Interval = 30 * time.Second
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MinRequests == 0 {
		c.MinRequests = 5
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.6
	}
	return c
}

// NewCircuitBreaker creates a breaker that opens after a failure ratio over
// a minimum number of requests and half-opens after Timeout.
func NewCircuitBreaker(cfg BreakerConfig) *gobreaker.CircuitBreaker {
	cfg = cfg.withDefaults()
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureRatio
		},
		OnStateChange: cfg.OnStateChange,
	}
	if cfg.Counts != nil {
		counts := cfg.Counts
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !counts(err)
		}
	}
	return gobreaker.NewCircuitBreaker(settings)
}

// IsOpen reports whether err was produced by a breaker refusing the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// Do runs fn through the breaker for callers that only need an error.
func Do(cb *gobreaker.CircuitBreaker, fn func() error) error {
	_, err := cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}
