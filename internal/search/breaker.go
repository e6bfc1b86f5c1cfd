// internal/search/breaker.go
package search

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

type BreakerConfig struct {
	Name string
	// ConsecutiveFailures opens the breaker; 0 disables it.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
}

// BreakerIndex guards FindSimilar with a circuit breaker so that an engine
// outage fails the remaining records fast. Writes pass straight through.
type BreakerIndex struct {
	Index
	cb *gobreaker.CircuitBreaker
}

func NewBreakerIndex(next Index, cfg BreakerConfig) Index {
	if cfg.ConsecutiveFailures == 0 {
		return next
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Search circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// Cancellation says nothing about the engine's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerIndex{Index: next, cb: cb}
}

func (b *BreakerIndex) FindSimilar(ctx context.Context, seed string, limit int) ([]string, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.Index.FindSimilar(ctx, seed, limit)
	})
	if err != nil {
		return nil, err
	}
	return result.([]string), nil
}

func (b *BreakerIndex) State() gobreaker.State { return b.cb.State() }
