// Package breaker builds the circuit breakers guarding outbound calls.
package breaker

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
)

// Options tunes New. Zero values take the defaults.
type Options struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// New returns a breaker that opens after consecutive failures and half-opens after OpenTimeout.
func New[T any](name string, logger *logrus.Logger, opts ...Options) *gobreaker.CircuitBreaker[T] {
	o := Options{ConsecutiveFailures: 5, OpenTimeout: 30 * time.Second}
	if len(opts) > 0 {
		if opts[0].ConsecutiveFailures > 0 {
			o.ConsecutiveFailures = opts[0].ConsecutiveFailures
		}
		if opts[0].OpenTimeout > 0 {
			o.OpenTimeout = opts[0].OpenTimeout
		}
	}

	return gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     o.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= o.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("circuit breaker state changed")
			}
		},
	})
}

// IsOpen reports whether err was returned because the breaker rejected the call.
func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
